package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dan9191/bank-cards/internal/models"
	"github.com/Dan9191/bank-cards/internal/repository"
	"github.com/Dan9191/bank-cards/internal/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// IssueCard creates an active card for the owner with the given opening balance
func (s *Service) IssueCard(ctx context.Context, ownerID uuid.UUID, initialBalance decimal.Decimal) (*models.CardView, error) {
	if err := validateAmount(initialBalance, true); err != nil {
		return nil, err
	}

	var view models.CardView
	err := s.store.WithinTx(ctx, func(r repository.Repositories) error {
		owner, err := r.Users.FindByID(ctx, ownerID)
		if err != nil {
			if errors.Is(err, utils.ErrNotFound) {
				return fmt.Errorf("%w: user %s", utils.ErrNotFound, ownerID)
			}
			return err
		}

		number, digest, err := s.generator.Generate(ctx, r.Cards)
		if err != nil {
			return err
		}
		encrypted, err := s.cipher.Encrypt(number)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		card := &models.Card{
			ID:              uuid.New(),
			OwnerID:         owner.ID,
			EncryptedNumber: encrypted,
			NumberDigest:    digest,
			ExpirationDate:  utils.ExpirationDate(now),
			Status:          models.CardStatusActive,
			Balance:         initialBalance,
			CreatedAt:       now,
		}
		if err := r.Cards.Create(ctx, card); err != nil {
			return err
		}
		view = newCardView(card, owner.FullName, utils.MaskCardNumber(number))
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"card_id":  view.ID,
		"owner_id": ownerID,
		"balance":  view.Balance.StringFixed(2),
	}).Info("Card issued")
	return &view, nil
}
