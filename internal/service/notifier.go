package service

import (
	"context"
	"time"

	"github.com/Dan9191/bank-cards/internal/models"
)

// Notifier informs card owners about events on their cards
type Notifier interface {
	CardBlocked(ctx context.Context, owner models.User, maskedNumber string) error
	TransferCompleted(ctx context.Context, owner models.User, receipt models.TransferReceipt) error
	CardExpiring(ctx context.Context, owner models.User, maskedNumber string, expiresOn time.Time) error
}

// NopNotifier drops every notification
type NopNotifier struct{}

func (NopNotifier) CardBlocked(context.Context, models.User, string) error { return nil }

func (NopNotifier) TransferCompleted(context.Context, models.User, models.TransferReceipt) error {
	return nil
}

func (NopNotifier) CardExpiring(context.Context, models.User, string, time.Time) error { return nil }
