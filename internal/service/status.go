package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dan9191/bank-cards/internal/models"
	"github.com/Dan9191/bank-cards/internal/repository"
	"github.com/Dan9191/bank-cards/internal/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// BlockCard blocks an active card owned by the caller
func (s *Service) BlockCard(ctx context.Context, callerID, cardID uuid.UUID) error {
	var masked string
	err := s.store.WithinTx(ctx, func(r repository.Repositories) error {
		card, err := findCardForUpdate(ctx, r.Cards, cardID)
		if err != nil {
			return err
		}
		if card.OwnerID != callerID {
			return fmt.Errorf("%w: card %s belongs to another user", utils.ErrForbidden, cardID)
		}
		if card.Status != models.CardStatusActive {
			return fmt.Errorf("%w: card is already %s", utils.ErrInvalidState, card.Status)
		}

		card.Status = models.CardStatusBlocked
		if err := r.Cards.Update(ctx, card); err != nil {
			return err
		}
		masked, err = s.presenter.MaskedNumber(card)
		return err
	})
	if err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{"card_id": cardID, "user_id": callerID}).Info("Card blocked by owner")
	s.notifyOwner(ctx, callerID, "card blocked", func(owner models.User) error {
		return s.notifier.CardBlocked(ctx, owner, masked)
	})
	return nil
}

// SetCardStatus sets any status on a card. Administrators may reactivate
// blocked or expired cards.
func (s *Service) SetCardStatus(ctx context.Context, cardID uuid.UUID, status string) (*models.CardView, error) {
	var view models.CardView
	err := s.store.WithinTx(ctx, func(r repository.Repositories) error {
		card, err := findCardForUpdate(ctx, r.Cards, cardID)
		if err != nil {
			return err
		}
		newStatus, err := models.ParseCardStatus(status)
		if err != nil {
			return err
		}

		previous := card.Status
		card.Status = newStatus
		if err := r.Cards.Update(ctx, card); err != nil {
			return err
		}

		ownerName, err := newOwnerNames(r.Users).lookup(ctx, card.OwnerID)
		if err != nil {
			return err
		}
		if view, err = s.presenter.View(card, ownerName, false); err != nil {
			return err
		}

		s.log.WithFields(logrus.Fields{
			"card_id": cardID,
			"from":    previous,
			"to":      newStatus,
		}).Info("Card status changed")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

func findCardForUpdate(ctx context.Context, cards repository.CardRepository, id uuid.UUID) (*models.Card, error) {
	card, err := cards.FindByIDForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, fmt.Errorf("%w: card %s", utils.ErrNotFound, id)
		}
		return nil, err
	}
	return card, nil
}
