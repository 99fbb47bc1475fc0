package repository

import (
	"context"
	"time"

	"github.com/Dan9191/bank-cards/internal/models"
	"github.com/google/uuid"
)

// CardRepository persists cards. Lookups of missing rows return utils.ErrNotFound.
type CardRepository interface {
	// Create inserts a new card. A reused number digest yields utils.ErrDuplicateEntry.
	Create(ctx context.Context, card *models.Card) error
	// FindByID retrieves a card by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*models.Card, error)
	// FindByIDForUpdate retrieves a card and locks it until the enclosing transaction ends
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Card, error)
	// List returns one page of cards matching filter, oldest first, and the total count
	List(ctx context.Context, filter models.CardFilter, page models.PageRequest) ([]models.Card, int64, error)
	// ListAll returns every card matching filter, oldest first, read in one statement
	ListAll(ctx context.Context, filter models.CardFilter) ([]models.Card, error)
	// ExistsByNumberDigest reports whether a card with this number digest exists
	ExistsByNumberDigest(ctx context.Context, digest string) (bool, error)
	// Update writes status and balance if the stored version still matches card.Version,
	// otherwise it returns utils.ErrConflict. On success card.Version is incremented.
	Update(ctx context.Context, card *models.Card) error
	// Delete removes a card
	Delete(ctx context.Context, id uuid.UUID) error
	// FindExpiring returns active cards whose expiration date is in [from, to)
	FindExpiring(ctx context.Context, from, to time.Time) ([]models.Card, error)
}

// UserRepository persists card owners and administrators
type UserRepository interface {
	// Create inserts a user. A taken username yields utils.ErrDuplicateEntry.
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	// List returns users whose full name contains fullName (case-insensitive, empty matches all)
	List(ctx context.Context, fullName string, page models.PageRequest) ([]models.User, int64, error)
	// Delete removes a user together with their cards
	Delete(ctx context.Context, id uuid.UUID) error
}

// TransferRepository persists the transfer history
type TransferRepository interface {
	Create(ctx context.Context, transfer *models.Transfer) error
	// ListByCard returns transfers where the card is source or destination, newest first
	ListByCard(ctx context.Context, cardID uuid.UUID, page models.PageRequest) ([]models.Transfer, int64, error)
}

// Repositories groups the repositories bound to one connection or transaction
type Repositories struct {
	Cards     CardRepository
	Users     UserRepository
	Transfers TransferRepository
}

// Store hands out repositories and runs functions in a transaction
type Store interface {
	// Repositories returns repositories that operate outside any transaction
	Repositories() Repositories
	// WithinTx runs fn in a transaction. It commits if fn returns nil and
	// rolls back otherwise; fn's error is returned unchanged.
	WithinTx(ctx context.Context, fn func(r Repositories) error) error
}
