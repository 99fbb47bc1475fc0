package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Dan9191/bank-cards/internal/models"
	"github.com/Dan9191/bank-cards/internal/utils"
	"github.com/google/uuid"
)

const cardColumns = `id, owner_id, encrypted_number, number_digest, expiration_date, status, balance, created_at, version`

type cardRepository struct {
	q DBExecutor
}

// Create inserts a new card
func (r *cardRepository) Create(ctx context.Context, card *models.Card) error {
	query := `
		INSERT INTO cards (` + cardColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.q.ExecContext(ctx, query,
		card.ID, card.OwnerID, card.EncryptedNumber, card.NumberDigest,
		card.ExpirationDate, card.Status, card.Balance, card.CreatedAt, card.Version)
	if err != nil {
		switch pqErrorCode(err) {
		case pqUniqueViolation:
			return fmt.Errorf("%w: card number already issued", utils.ErrDuplicateEntry)
		case pqForeignKeyViolation:
			return fmt.Errorf("%w: owner %s", utils.ErrNotFound, card.OwnerID)
		}
		return fmt.Errorf("failed to create card: %w", err)
	}
	return nil
}

// FindByID retrieves a card by its ID
func (r *cardRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Card, error) {
	return r.get(ctx, `SELECT `+cardColumns+` FROM cards WHERE id = $1`, id)
}

// FindByIDForUpdate retrieves a card and takes a row lock on it
func (r *cardRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Card, error) {
	return r.get(ctx, `SELECT `+cardColumns+` FROM cards WHERE id = $1 FOR UPDATE`, id)
}

func (r *cardRepository) get(ctx context.Context, query string, id uuid.UUID) (*models.Card, error) {
	var card models.Card
	if err := r.q.GetContext(ctx, &card, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, utils.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get card by ID %s: %w", id, err)
	}
	return &card, nil
}

// List returns a page of cards and the total number of matching cards
func (r *cardRepository) List(ctx context.Context, filter models.CardFilter, page models.PageRequest) ([]models.Card, int64, error) {
	where, args := cardWhere(filter)

	var total int64
	if err := r.q.GetContext(ctx, &total, `SELECT COUNT(*) FROM cards`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count cards: %w", err)
	}

	cards := []models.Card{}
	query := fmt.Sprintf(`SELECT %s FROM cards%s ORDER BY created_at, id LIMIT $%d OFFSET $%d`,
		cardColumns, where, len(args)+1, len(args)+2)
	if err := r.q.SelectContext(ctx, &cards, query, append(args, page.Size, page.Offset())...); err != nil {
		return nil, 0, fmt.Errorf("failed to list cards: %w", err)
	}
	return cards, total, nil
}

// ListAll returns every card matching filter in a single query
func (r *cardRepository) ListAll(ctx context.Context, filter models.CardFilter) ([]models.Card, error) {
	where, args := cardWhere(filter)
	cards := []models.Card{}
	query := `SELECT ` + cardColumns + ` FROM cards` + where + ` ORDER BY created_at, id`
	if err := r.q.SelectContext(ctx, &cards, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}
	return cards, nil
}

func cardWhere(filter models.CardFilter) (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.OwnerID != nil {
		args = append(args, *filter.OwnerID)
		conds = append(conds, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ExistsByNumberDigest reports whether the digest is taken
func (r *cardRepository) ExistsByNumberDigest(ctx context.Context, digest string) (bool, error) {
	var exists bool
	err := r.q.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM cards WHERE number_digest = $1)`, digest)
	if err != nil {
		return false, fmt.Errorf("failed to check card number: %w", err)
	}
	return exists, nil
}

// Update writes status and balance with an optimistic version check
func (r *cardRepository) Update(ctx context.Context, card *models.Card) error {
	query := `
		UPDATE cards SET status = $1, balance = $2, version = version + 1
		WHERE id = $3 AND version = $4`
	result, err := r.q.ExecContext(ctx, query, card.Status, card.Balance, card.ID, card.Version)
	if err != nil {
		return fmt.Errorf("failed to update card %s: %w", card.ID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for card %s: %w", card.ID, err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: card %s was modified or deleted", utils.ErrConflict, card.ID)
	}
	card.Version++
	return nil
}

// Delete removes a card
func (r *cardRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.q.ExecContext(ctx, `DELETE FROM cards WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete card %s: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for card %s: %w", id, err)
	}
	if rows == 0 {
		return utils.ErrNotFound
	}
	return nil
}

// FindExpiring returns active cards expiring in [from, to)
func (r *cardRepository) FindExpiring(ctx context.Context, from, to time.Time) ([]models.Card, error) {
	cards := []models.Card{}
	query := `
		SELECT ` + cardColumns + ` FROM cards
		WHERE status = $1 AND expiration_date >= $2 AND expiration_date < $3
		ORDER BY expiration_date, id`
	if err := r.q.SelectContext(ctx, &cards, query, models.CardStatusActive, from, to); err != nil {
		return nil, fmt.Errorf("failed to find expiring cards: %w", err)
	}
	return cards, nil
}
