package service

import (
	"bytes"
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

// Transfer moves amount between two active cards of the caller. Both balances
// and the transfer record are written in one transaction.
func (s *Service) Transfer(ctx context.Context, callerID, fromID, toID uuid.UUID, amount decimal.Decimal) (*models.TransferReceipt, error) {
	if fromID == toID {
		return nil, fmt.Errorf("%w: cannot transfer to the same card", utils.ErrInvalidArgument)
	}
	if err := validateAmount(amount, false); err != nil {
		return nil, err
	}

	var receipt models.TransferReceipt
	err := s.store.WithinTx(ctx, func(r repository.Repositories) error {
		from, to, err := lockCardPair(ctx, r.Cards, fromID, toID)
		if err != nil {
			return err
		}
		if from == nil {
			return fmt.Errorf("%w: source card %s", utils.ErrNotFound, fromID)
		}
		if to == nil {
			return fmt.Errorf("%w: destination card %s", utils.ErrNotFound, toID)
		}
		if from.OwnerID != callerID || to.OwnerID != callerID {
			return fmt.Errorf("%w: both cards must belong to the caller", utils.ErrForbidden)
		}
		if from.Status != models.CardStatusActive {
			return fmt.Errorf("%w: source card is %s", utils.ErrInvalidState, from.Status)
		}
		if to.Status != models.CardStatusActive {
			return fmt.Errorf("%w: destination card is %s", utils.ErrInvalidState, to.Status)
		}
		if from.Balance.LessThan(amount) {
			return fmt.Errorf("%w: balance %s, requested %s", utils.ErrInsufficientFunds, from.Balance.StringFixed(2), amount.StringFixed(2))
		}

		from.Balance = from.Balance.Sub(amount)
		to.Balance = to.Balance.Add(amount)
		if err := r.Cards.Update(ctx, from); err != nil {
			return err
		}
		if err := r.Cards.Update(ctx, to); err != nil {
			return err
		}

		transfer := &models.Transfer{
			ID:         uuid.New(),
			FromCardID: from.ID,
			ToCardID:   to.ID,
			Amount:     amount,
			CreatedAt:  s.now().UTC(),
		}
		if err := r.Transfers.Create(ctx, transfer); err != nil {
			return err
		}

		fromMasked, err := s.presenter.MaskedNumber(from)
		if err != nil {
			return err
		}
		toMasked, err := s.presenter.MaskedNumber(to)
		if err != nil {
			return err
		}
		receipt = models.TransferReceipt{
			ID:             transfer.ID,
			FromCardNumber: fromMasked,
			ToCardNumber:   toMasked,
			Amount:         amount,
			Timestamp:      transfer.CreatedAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"transfer_id":  receipt.ID,
		"from_card_id": fromID,
		"to_card_id":   toID,
		"amount":       amount.StringFixed(2),
	}).Info("Transfer completed")

	s.notifyOwner(ctx, callerID, "transfer", func(owner models.User) error {
		return s.notifier.TransferCompleted(ctx, owner, receipt)
	})
	return &receipt, nil
}

// lockCardPair locks both cards in ascending ID order. A missing card is
// returned as nil.
func lockCardPair(ctx context.Context, cards repository.CardRepository, fromID, toID uuid.UUID) (*models.Card, *models.Card, error) {
	first, second := fromID, toID
	if bytes.Compare(first[:], second[:]) > 0 {
		first, second = second, first
	}

	locked := make(map[uuid.UUID]*models.Card, 2)
	for _, id := range []uuid.UUID{first, second} {
		card, err := cards.FindByIDForUpdate(ctx, id)
		if err != nil && !errors.Is(err, utils.ErrNotFound) {
			return nil, nil, err
		}
		locked[id] = card
	}
	return locked[fromID], locked[toID], nil
}
