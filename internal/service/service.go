package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dan9191/bank-cards/internal/config"
	"github.com/Dan9191/bank-cards/internal/models"
	"github.com/Dan9191/bank-cards/internal/repository"
	"github.com/Dan9191/bank-cards/internal/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// Service handles business logic
type Service struct {
	store        repository.Store
	cipher       utils.CardCipher
	generator    *NumberGenerator
	presenter    *Presenter
	notifier     Notifier
	log          *logrus.Logger
	config       *config.Config
	now          func() time.Time
	passwordCost int
}

// NewService initializes a new service. A nil notifier disables notifications.
func NewService(
	store repository.Store,
	cipher utils.CardCipher,
	index utils.NumberIndex,
	notifier Notifier,
	log *logrus.Logger,
	cfg *config.Config,
) *Service {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Service{
		store:        store,
		cipher:       cipher,
		generator:    NewNumberGenerator(index, cfg.CardNumberAttempts),
		presenter:    NewPresenter(cipher),
		notifier:     notifier,
		log:          log,
		config:       cfg,
		now:          time.Now,
		passwordCost: bcrypt.DefaultCost,
	}
}

// validateAmount rejects negative amounts, zero unless allowZero, and more
// than two fractional digits
func validateAmount(amount decimal.Decimal, allowZero bool) error {
	if amount.IsNegative() || (!allowZero && amount.IsZero()) {
		return fmt.Errorf("%w: amount must be positive, got %s", utils.ErrInvalidArgument, amount)
	}
	if !amount.Equal(amount.Round(2)) {
		return fmt.Errorf("%w: amount %s has more than two decimal places", utils.ErrInvalidArgument, amount)
	}
	return nil
}

// ownerNames resolves and caches owner names while building views
type ownerNames struct {
	users repository.UserRepository
	names map[uuid.UUID]string
}

func newOwnerNames(users repository.UserRepository) *ownerNames {
	return &ownerNames{users: users, names: make(map[uuid.UUID]string)}
}

func (o *ownerNames) lookup(ctx context.Context, id uuid.UUID) (string, error) {
	if name, ok := o.names[id]; ok {
		return name, nil
	}
	user, err := o.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return "", fmt.Errorf("%w: owner %s", utils.ErrNotFound, id)
		}
		return "", err
	}
	o.names[id] = user.FullName
	return user.FullName, nil
}

func (s *Service) views(ctx context.Context, users repository.UserRepository, cards []models.Card) ([]models.CardView, error) {
	names := newOwnerNames(users)
	views := make([]models.CardView, 0, len(cards))
	for i := range cards {
		name, err := names.lookup(ctx, cards[i].OwnerID)
		if err != nil {
			return nil, err
		}
		view, err := s.presenter.View(&cards[i], name, false)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

// notifyOwner loads the card owner and runs send. Failures are logged only.
func (s *Service) notifyOwner(ctx context.Context, ownerID uuid.UUID, event string, send func(owner models.User) error) {
	owner, err := s.store.Repositories().Users.FindByID(ctx, ownerID)
	if err != nil {
		s.log.WithError(err).WithField("user_id", ownerID).Warnf("Failed to load owner for %s notification", event)
		return
	}
	if err := send(*owner); err != nil {
		s.log.WithError(err).WithField("user_id", ownerID).Warnf("Failed to send %s notification", event)
	}
}
