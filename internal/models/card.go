package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/Dan9191/bank-cards/internal/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CardStatus is the lifecycle state of a card
type CardStatus string

const (
	CardStatusActive  CardStatus = "ACTIVE"
	CardStatusBlocked CardStatus = "BLOCKED"
	CardStatusExpired CardStatus = "EXPIRED"
)

// ParseCardStatus parses a status name case-insensitively
func ParseCardStatus(value string) (CardStatus, error) {
	switch CardStatus(strings.ToUpper(strings.TrimSpace(value))) {
	case CardStatusActive:
		return CardStatusActive, nil
	case CardStatusBlocked:
		return CardStatusBlocked, nil
	case CardStatusExpired:
		return CardStatusExpired, nil
	}
	if value == "" {
		return "", fmt.Errorf("%w: status cannot be empty, allowed [ACTIVE, BLOCKED, EXPIRED]", utils.ErrInvalidArgument)
	}
	return "", fmt.Errorf("%w: unknown status %q", utils.ErrInvalidArgument, value)
}

// Card represents a bank card as stored
type Card struct {
	ID              uuid.UUID       `db:"id"`
	OwnerID         uuid.UUID       `db:"owner_id"`
	EncryptedNumber string          `db:"encrypted_number"`
	NumberDigest    string          `db:"number_digest"`
	ExpirationDate  time.Time       `db:"expiration_date"`
	Status          CardStatus      `db:"status"`
	Balance         decimal.Decimal `db:"balance"`
	CreatedAt       time.Time       `db:"created_at"`
	Version         int64           `db:"version"`
}

// CardView is the representation returned to callers
type CardView struct {
	ID             uuid.UUID       `json:"id"`
	OwnerName      string          `json:"owner_name"`
	CardNumber     string          `json:"card_number"`
	ExpirationDate string          `json:"expiration_date"` // YYYY-MM-DD
	Status         CardStatus      `json:"status"`
	Balance        decimal.Decimal `json:"balance"`
}

// CardFilter narrows card listings. Nil fields are not applied.
type CardFilter struct {
	OwnerID *uuid.UUID
	Status  *CardStatus
}
