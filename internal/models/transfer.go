package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transfer records a completed card-to-card transfer
type Transfer struct {
	ID         uuid.UUID       `db:"id" json:"id"`
	FromCardID uuid.UUID       `db:"from_card_id" json:"from_card_id"`
	ToCardID   uuid.UUID       `db:"to_card_id" json:"to_card_id"`
	Amount     decimal.Decimal `db:"amount" json:"amount"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// TransferReceipt is returned to the caller after a successful transfer
type TransferReceipt struct {
	ID             uuid.UUID       `json:"id"`
	FromCardNumber string          `json:"from_card_number"` // Masked
	ToCardNumber   string          `json:"to_card_number"`   // Masked
	Amount         decimal.Decimal `json:"amount"`
	Timestamp      time.Time       `json:"timestamp"`
}
