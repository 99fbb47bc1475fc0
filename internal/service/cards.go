package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dan9191/bank-cards/internal/models"
	"github.com/Dan9191/bank-cards/internal/repository"
	"github.com/Dan9191/bank-cards/internal/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// GetCard returns one of the caller's cards, with the full number if raw is set
func (s *Service) GetCard(ctx context.Context, callerID, cardID uuid.UUID, raw bool) (*models.CardView, error) {
	card, err := s.findOwnedCard(ctx, callerID, cardID)
	if err != nil {
		return nil, err
	}
	return s.cardView(ctx, card, raw)
}

// GetCardAsAdmin returns any card, masked
func (s *Service) GetCardAsAdmin(ctx context.Context, cardID uuid.UUID) (*models.CardView, error) {
	card, err := s.findCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	return s.cardView(ctx, card, false)
}

// ListCards returns a page of masked cards. A nil ownerID lists all cards;
// an empty status applies no status filter.
func (s *Service) ListCards(ctx context.Context, ownerID *uuid.UUID, status string, page models.PageRequest) (*models.Page[models.CardView], error) {
	if err := page.Validate(); err != nil {
		return nil, err
	}
	filter := models.CardFilter{OwnerID: ownerID}
	if status != "" {
		st, err := models.ParseCardStatus(status)
		if err != nil {
			return nil, err
		}
		filter.Status = &st
	}

	repos := s.store.Repositories()
	if ownerID != nil {
		if _, err := repos.Users.FindByID(ctx, *ownerID); err != nil {
			if errors.Is(err, utils.ErrNotFound) {
				return nil, fmt.Errorf("%w: user %s", utils.ErrNotFound, *ownerID)
			}
			return nil, err
		}
	}

	cards, total, err := repos.Cards.List(ctx, filter, page)
	if err != nil {
		return nil, err
	}
	views, err := s.views(ctx, repos.Users, cards)
	if err != nil {
		return nil, err
	}
	result := models.NewPage(views, page, total)
	return &result, nil
}

// Balance returns the balance of one of the caller's cards
func (s *Service) Balance(ctx context.Context, callerID, cardID uuid.UUID) (decimal.Decimal, error) {
	card, err := s.findOwnedCard(ctx, callerID, cardID)
	if err != nil {
		return decimal.Zero, err
	}
	return card.Balance, nil
}

// ListTransfers returns the transfer history of one of the caller's cards
func (s *Service) ListTransfers(ctx context.Context, callerID, cardID uuid.UUID, page models.PageRequest) (*models.Page[models.Transfer], error) {
	if err := page.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.findOwnedCard(ctx, callerID, cardID); err != nil {
		return nil, err
	}
	transfers, total, err := s.store.Repositories().Transfers.ListByCard(ctx, cardID, page)
	if err != nil {
		return nil, err
	}
	result := models.NewPage(transfers, page, total)
	return &result, nil
}

// DeleteCard permanently removes a card
func (s *Service) DeleteCard(ctx context.Context, cardID uuid.UUID) error {
	if err := s.store.Repositories().Cards.Delete(ctx, cardID); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return fmt.Errorf("%w: card %s", utils.ErrNotFound, cardID)
		}
		return err
	}
	s.log.WithField("card_id", cardID).Info("Card deleted")
	return nil
}

// ExportCards returns every card with the given status (all if empty), masked.
// The cards are read in one statement so concurrent writes cannot shift the result.
func (s *Service) ExportCards(ctx context.Context, status string) ([]models.CardView, error) {
	filter := models.CardFilter{}
	if status != "" {
		st, err := models.ParseCardStatus(status)
		if err != nil {
			return nil, err
		}
		filter.Status = &st
	}

	var views []models.CardView
	err := s.store.WithinTx(ctx, func(r repository.Repositories) error {
		cards, err := r.Cards.ListAll(ctx, filter)
		if err != nil {
			return err
		}
		views, err = s.views(ctx, r.Users, cards)
		return err
	})
	if err != nil {
		return nil, err
	}
	return views, nil
}

// RemindExpiringCards notifies owners of active cards expiring within the
// given number of days and returns how many reminders were sent. Card status
// is never changed.
func (s *Service) RemindExpiringCards(ctx context.Context, withinDays int) (int, error) {
	if withinDays < 0 {
		return 0, fmt.Errorf("%w: days must be >= 0", utils.ErrInvalidArgument)
	}
	now := s.now().UTC()
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, withinDays+1)

	repos := s.store.Repositories()
	cards, err := repos.Cards.FindExpiring(ctx, from, to)
	if err != nil {
		return 0, err
	}

	sent := 0
	for i := range cards {
		card := &cards[i]
		owner, err := repos.Users.FindByID(ctx, card.OwnerID)
		if err != nil {
			s.log.WithError(err).WithField("card_id", card.ID).Warn("Failed to load card owner")
			continue
		}
		if owner.Email == "" {
			s.log.WithField("user_id", owner.ID).Debug("Skipping expiry reminder, no email")
			continue
		}
		masked, err := s.presenter.MaskedNumber(card)
		if err != nil {
			return sent, err
		}
		if err := s.notifier.CardExpiring(ctx, *owner, masked, card.ExpirationDate); err != nil {
			s.log.WithError(err).WithField("card_id", card.ID).Warn("Failed to send expiry reminder")
			continue
		}
		sent++
	}

	s.log.WithFields(logrus.Fields{"candidates": len(cards), "sent": sent}).Info("Expiry reminders processed")
	return sent, nil
}

func (s *Service) findCard(ctx context.Context, cardID uuid.UUID) (*models.Card, error) {
	card, err := s.store.Repositories().Cards.FindByID(ctx, cardID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, fmt.Errorf("%w: card %s", utils.ErrNotFound, cardID)
		}
		return nil, err
	}
	return card, nil
}

func (s *Service) findOwnedCard(ctx context.Context, callerID, cardID uuid.UUID) (*models.Card, error) {
	card, err := s.findCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if card.OwnerID != callerID {
		return nil, fmt.Errorf("%w: card %s belongs to another user", utils.ErrForbidden, cardID)
	}
	return card, nil
}

func (s *Service) cardView(ctx context.Context, card *models.Card, raw bool) (*models.CardView, error) {
	name, err := newOwnerNames(s.store.Repositories().Users).lookup(ctx, card.OwnerID)
	if err != nil {
		return nil, err
	}
	view, err := s.presenter.View(card, name, raw)
	if err != nil {
		return nil, err
	}
	return &view, nil
}
