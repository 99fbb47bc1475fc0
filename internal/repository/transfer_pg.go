package repository

import (
	"context"
	"fmt"

	"github.com/Dan9191/bank-cards/internal/models"
	"github.com/google/uuid"
)

type transferRepository struct {
	q DBExecutor
}

// Create records a transfer
func (r *transferRepository) Create(ctx context.Context, t *models.Transfer) error {
	query := `
		INSERT INTO card_transfers (id, from_card_id, to_card_id, amount, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.q.ExecContext(ctx, query, t.ID, t.FromCardID, t.ToCardID, t.Amount, t.CreatedAt); err != nil {
		return fmt.Errorf("failed to create transfer: %w", err)
	}
	return nil
}

// ListByCard retrieves a page of transfers touching the card.
// It performs two queries: one for the data and one for the total count.
func (r *transferRepository) ListByCard(ctx context.Context, cardID uuid.UUID, page models.PageRequest) ([]models.Transfer, int64, error) {
	transfers := []models.Transfer{}
	query := `
		SELECT id, from_card_id, to_card_id, amount, created_at
		FROM card_transfers
		WHERE from_card_id = $1 OR to_card_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`
	if err := r.q.SelectContext(ctx, &transfers, query, cardID, page.Size, page.Offset()); err != nil {
		return nil, 0, fmt.Errorf("failed to fetch transfers for card %s: %w", cardID, err)
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM card_transfers WHERE from_card_id = $1 OR to_card_id = $1`
	if err := r.q.GetContext(ctx, &total, countQuery, cardID); err != nil {
		return nil, 0, fmt.Errorf("failed to count transfers for card %s: %w", cardID, err)
	}
	return transfers, total, nil
}
