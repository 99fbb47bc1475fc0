// Package memory is an in-process implementation of repository.Store.
//
// All transactions are serialized by one mutex. A transaction works on a
// copy of the data which replaces the shared state only when it succeeds, so
// readers never see a half-applied transaction.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Dan9191/bank-cards/internal/models"
	"github.com/Dan9191/bank-cards/internal/repository"
	"github.com/Dan9191/bank-cards/internal/utils"
	"github.com/google/uuid"
)

type state struct {
	cards     map[uuid.UUID]models.Card
	digests   map[string]uuid.UUID
	users     map[uuid.UUID]models.User
	usernames map[string]uuid.UUID
	transfers []models.Transfer
}

func newState() *state {
	return &state{
		cards:     make(map[uuid.UUID]models.Card),
		digests:   make(map[string]uuid.UUID),
		users:     make(map[uuid.UUID]models.User),
		usernames: make(map[string]uuid.UUID),
	}
}

func (s *state) clone() *state {
	c := &state{
		cards:     make(map[uuid.UUID]models.Card, len(s.cards)),
		digests:   make(map[string]uuid.UUID, len(s.digests)),
		users:     make(map[uuid.UUID]models.User, len(s.users)),
		usernames: make(map[string]uuid.UUID, len(s.usernames)),
		transfers: make([]models.Transfer, len(s.transfers)),
	}
	for k, v := range s.cards {
		c.cards[k] = v
	}
	for k, v := range s.digests {
		c.digests[k] = v
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.usernames {
		c.usernames[k] = v
	}
	copy(c.transfers, s.transfers)
	return c
}

// Store keeps all records in memory
type Store struct {
	mu   sync.RWMutex
	data *state
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{data: newState()}
}

// Repositories returns repositories that lock the store per call
func (s *Store) Repositories() repository.Repositories {
	return s.repositories(&view{store: s})
}

// WithinTx runs fn against a private copy and publishes it if fn succeeds
func (s *Store) WithinTx(ctx context.Context, fn func(r repository.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := s.data.clone()
	if err := fn(s.repositories(&view{store: s, tx: staged})); err != nil {
		return err
	}
	s.data = staged
	return nil
}

func (s *Store) repositories(v *view) repository.Repositories {
	return repository.Repositories{
		Cards:     &cardRepository{v},
		Users:     &userRepository{v},
		Transfers: &transferRepository{v},
	}
}

// view resolves the state a repository call works on: the staged copy of a
// transaction, or the shared state under the store lock.
type view struct {
	store *Store
	tx    *state
}

func (v *view) read(fn func(st *state) error) error {
	if v.tx != nil {
		return fn(v.tx)
	}
	v.store.mu.RLock()
	defer v.store.mu.RUnlock()
	return fn(v.store.data)
}

func (v *view) write(fn func(st *state) error) error {
	if v.tx != nil {
		return fn(v.tx)
	}
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	return fn(v.store.data)
}

type cardRepository struct{ v *view }

func (r *cardRepository) Create(_ context.Context, card *models.Card) error {
	return r.v.write(func(st *state) error {
		if _, ok := st.users[card.OwnerID]; !ok {
			return utils.ErrNotFound
		}
		if _, ok := st.digests[card.NumberDigest]; ok {
			return utils.ErrDuplicateEntry
		}
		if _, ok := st.cards[card.ID]; ok {
			return utils.ErrDuplicateEntry
		}
		st.cards[card.ID] = *card
		st.digests[card.NumberDigest] = card.ID
		return nil
	})
}

func (r *cardRepository) FindByID(_ context.Context, id uuid.UUID) (*models.Card, error) {
	var card models.Card
	err := r.v.read(func(st *state) error {
		c, ok := st.cards[id]
		if !ok {
			return utils.ErrNotFound
		}
		card = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &card, nil
}

// FindByIDForUpdate needs no extra locking: transactions are already serialized
func (r *cardRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Card, error) {
	return r.FindByID(ctx, id)
}

func (r *cardRepository) List(_ context.Context, filter models.CardFilter, page models.PageRequest) ([]models.Card, int64, error) {
	matched := r.matching(filter)
	return paginate(matched, page), int64(len(matched)), nil
}

func (r *cardRepository) ListAll(_ context.Context, filter models.CardFilter) ([]models.Card, error) {
	return r.matching(filter), nil
}

func (r *cardRepository) matching(filter models.CardFilter) []models.Card {
	matched := []models.Card{}
	_ = r.v.read(func(st *state) error {
		for _, c := range st.cards {
			if filter.OwnerID != nil && c.OwnerID != *filter.OwnerID {
				continue
			}
			if filter.Status != nil && c.Status != *filter.Status {
				continue
			}
			matched = append(matched, c)
		}
		return nil
	})
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return matched[i].ID.String() < matched[j].ID.String()
	})
	return matched
}

func (r *cardRepository) ExistsByNumberDigest(_ context.Context, digest string) (bool, error) {
	var exists bool
	_ = r.v.read(func(st *state) error {
		_, exists = st.digests[digest]
		return nil
	})
	return exists, nil
}

func (r *cardRepository) Update(_ context.Context, card *models.Card) error {
	return r.v.write(func(st *state) error {
		stored, ok := st.cards[card.ID]
		if !ok || stored.Version != card.Version {
			return utils.ErrConflict
		}
		stored.Status = card.Status
		stored.Balance = card.Balance
		stored.Version++
		st.cards[card.ID] = stored
		card.Version = stored.Version
		return nil
	})
}

func (r *cardRepository) Delete(_ context.Context, id uuid.UUID) error {
	return r.v.write(func(st *state) error {
		c, ok := st.cards[id]
		if !ok {
			return utils.ErrNotFound
		}
		delete(st.cards, id)
		delete(st.digests, c.NumberDigest)
		return nil
	})
}

func (r *cardRepository) FindExpiring(_ context.Context, from, to time.Time) ([]models.Card, error) {
	cards := []models.Card{}
	_ = r.v.read(func(st *state) error {
		for _, c := range st.cards {
			if c.Status != models.CardStatusActive {
				continue
			}
			if c.ExpirationDate.Before(from) || !c.ExpirationDate.Before(to) {
				continue
			}
			cards = append(cards, c)
		}
		return nil
	})
	sort.Slice(cards, func(i, j int) bool {
		return cards[i].ExpirationDate.Before(cards[j].ExpirationDate)
	})
	return cards, nil
}

type userRepository struct{ v *view }

func (r *userRepository) Create(_ context.Context, user *models.User) error {
	return r.v.write(func(st *state) error {
		if _, ok := st.usernames[user.Username]; ok {
			return utils.ErrDuplicateEntry
		}
		st.users[user.ID] = *user
		st.usernames[user.Username] = user.ID
		return nil
	})
}

func (r *userRepository) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := r.v.read(func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return utils.ErrNotFound
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByUsername(_ context.Context, username string) (*models.User, error) {
	var user models.User
	err := r.v.read(func(st *state) error {
		id, ok := st.usernames[username]
		if !ok {
			return utils.ErrNotFound
		}
		user = st.users[id]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) List(_ context.Context, fullName string, page models.PageRequest) ([]models.User, int64, error) {
	needle := strings.ToLower(fullName)
	var matched []models.User
	_ = r.v.read(func(st *state) error {
		for _, u := range st.users {
			if strings.Contains(strings.ToLower(u.FullName), needle) {
				matched = append(matched, u)
			}
		}
		return nil
	})
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return matched[i].ID.String() < matched[j].ID.String()
	})
	return paginate(matched, page), int64(len(matched)), nil
}

func (r *userRepository) Delete(_ context.Context, id uuid.UUID) error {
	return r.v.write(func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return utils.ErrNotFound
		}
		for cid, c := range st.cards {
			if c.OwnerID == id {
				delete(st.cards, cid)
				delete(st.digests, c.NumberDigest)
			}
		}
		delete(st.users, id)
		delete(st.usernames, u.Username)
		return nil
	})
}

type transferRepository struct{ v *view }

func (r *transferRepository) Create(_ context.Context, t *models.Transfer) error {
	return r.v.write(func(st *state) error {
		st.transfers = append(st.transfers, *t)
		return nil
	})
}

func (r *transferRepository) ListByCard(_ context.Context, cardID uuid.UUID, page models.PageRequest) ([]models.Transfer, int64, error) {
	var matched []models.Transfer
	_ = r.v.read(func(st *state) error {
		// newest first
		for i := len(st.transfers) - 1; i >= 0; i-- {
			t := st.transfers[i]
			if t.FromCardID == cardID || t.ToCardID == cardID {
				matched = append(matched, t)
			}
		}
		return nil
	})
	return paginate(matched, page), int64(len(matched)), nil
}

func paginate[T any](items []T, page models.PageRequest) []T {
	out := []T{}
	start := page.Offset()
	if start >= len(items) || page.Size <= 0 {
		return out
	}
	end := start + page.Size
	if end > len(items) {
		end = len(items)
	}
	return append(out, items[start:end]...)
}
