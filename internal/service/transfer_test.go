package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Dan9191/bank-cards/internal/models"
	"github.com/Dan9191/bank-cards/internal/repository"
	"github.com/Dan9191/bank-cards/internal/repository/memory"
	"github.com/Dan9191/bank-cards/internal/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestTransfer_Success(t *testing.T) {
	notifier := new(MockNotifier)
	svc, _ := newTestService(t, notifier)
	owner := createTestUser(t, svc, "alice")
	from := issueTestCard(t, svc, owner.ID, "100.00")
	to := issueTestCard(t, svc, owner.ID, "50.00")
	ctx := context.Background()

	notifier.On("TransferCompleted", mock.Anything, mock.MatchedBy(func(u models.User) bool {
		return u.ID == owner.ID
	}), mock.AnythingOfType("models.TransferReceipt")).Return(nil).Once()

	receipt, err := svc.Transfer(ctx, owner.ID, from.ID, to.ID, decimal.RequireFromString("30.25"))
	require.NoError(t, err)

	assert.Equal(t, from.CardNumber, receipt.FromCardNumber)
	assert.Equal(t, to.CardNumber, receipt.ToCardNumber)
	assert.True(t, receipt.Amount.Equal(decimal.RequireFromString("30.25")))
	assert.Equal(t, testNow, receipt.Timestamp)

	requireBalance(t, svc, owner.ID, from.ID, "69.75")
	requireBalance(t, svc, owner.ID, to.ID, "80.25")

	history, err := svc.ListTransfers(ctx, owner.ID, to.ID, models.PageRequest{Size: 10})
	require.NoError(t, err)
	require.Len(t, history.Content, 1)
	assert.Equal(t, receipt.ID, history.Content[0].ID)
	assert.Equal(t, from.ID, history.Content[0].FromCardID)

	notifier.AssertExpectations(t)
}

func TestTransfer_WholeBalance(t *testing.T) {
	svc, _ := newTestService(t, nil)
	owner := createTestUser(t, svc, "alice")
	from := issueTestCard(t, svc, owner.ID, "100.00")
	to := issueTestCard(t, svc, owner.ID, "0")

	_, err := svc.Transfer(context.Background(), owner.ID, from.ID, to.ID, decimal.RequireFromString("100"))
	require.NoError(t, err)

	requireBalance(t, svc, owner.ID, from.ID, "0")
	requireBalance(t, svc, owner.ID, to.ID, "100")
}

func TestTransfer_Rejections(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	alice := createTestUser(t, svc, "alice")
	bob := createTestUser(t, svc, "bob")

	source := issueTestCard(t, svc, alice.ID, "100.00")
	dest := issueTestCard(t, svc, alice.ID, "10.00")
	bobs := issueTestCard(t, svc, bob.ID, "10.00")
	blocked := issueTestCard(t, svc, alice.ID, "100.00")
	require.NoError(t, svc.BlockCard(ctx, alice.ID, blocked.ID))
	missing := uuid.New()

	tests := []struct {
		name    string
		caller  uuid.UUID
		from    uuid.UUID
		to      uuid.UUID
		amount  string
		wantErr error
	}{
		{"self transfer", alice.ID, source.ID, source.ID, "10", utils.ErrInvalidArgument},
		{"self transfer on blocked card", alice.ID, blocked.ID, blocked.ID, "10", utils.ErrInvalidArgument},
		{"self transfer on unknown card", alice.ID, missing, missing, "10", utils.ErrInvalidArgument},
		{"zero amount", alice.ID, source.ID, dest.ID, "0", utils.ErrInvalidArgument},
		{"negative amount", alice.ID, source.ID, dest.ID, "-5", utils.ErrInvalidArgument},
		{"sub-cent amount", alice.ID, source.ID, dest.ID, "0.001", utils.ErrInvalidArgument},
		{"unknown source", alice.ID, uuid.New(), dest.ID, "10", utils.ErrNotFound},
		{"unknown destination", alice.ID, source.ID, uuid.New(), "10", utils.ErrNotFound},
		{"destination owned by another user", alice.ID, source.ID, bobs.ID, "10", utils.ErrForbidden},
		{"source owned by another user", alice.ID, bobs.ID, dest.ID, "5", utils.ErrForbidden},
		{"caller owns neither", bob.ID, source.ID, dest.ID, "10", utils.ErrForbidden},
		{"blocked source", alice.ID, blocked.ID, dest.ID, "10", utils.ErrInvalidState},
		{"blocked destination", alice.ID, source.ID, blocked.ID, "10", utils.ErrInvalidState},
		{"insufficient funds", alice.ID, source.ID, dest.ID, "100.01", utils.ErrInsufficientFunds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Transfer(ctx, tt.caller, tt.from, tt.to, decimal.RequireFromString(tt.amount))
			require.ErrorIs(t, err, tt.wantErr)

			requireBalance(t, svc, alice.ID, source.ID, "100.00")
			requireBalance(t, svc, alice.ID, dest.ID, "10.00")
			requireBalance(t, svc, alice.ID, blocked.ID, "100.00")
			requireBalance(t, svc, bob.ID, bobs.ID, "10.00")
		})
	}

	history, err := svc.ListTransfers(ctx, alice.ID, source.ID, models.PageRequest{Size: 10})
	require.NoError(t, err)
	assert.Zero(t, history.TotalElements)
}

func TestTransfer_ConcurrentDoubleSpend(t *testing.T) {
	svc, _ := newTestService(t, nil)
	owner := createTestUser(t, svc, "alice")
	from := issueTestCard(t, svc, owner.ID, "100.00")
	to := issueTestCard(t, svc, owner.ID, "10.00")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Transfer(context.Background(), owner.ID, from.ID, to.ID, decimal.RequireFromString("60"))
		}(i)
	}
	wg.Wait()

	succeeded, insufficient := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, utils.ErrInsufficientFunds):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, insufficient)
	requireBalance(t, svc, owner.ID, from.ID, "40")
	requireBalance(t, svc, owner.ID, to.ID, "70")
}

func TestTransfer_ConcurrentOpposingDirections(t *testing.T) {
	svc, _ := newTestService(t, nil)
	owner := createTestUser(t, svc, "alice")
	a := issueTestCard(t, svc, owner.ID, "500.00")
	b := issueTestCard(t, svc, owner.ID, "500.00")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := svc.Transfer(context.Background(), owner.ID, a.ID, b.ID, decimal.RequireFromString("3"))
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := svc.Transfer(context.Background(), owner.ID, b.ID, a.ID, decimal.RequireFromString("1"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	requireBalance(t, svc, owner.ID, a.ID, "400")
	requireBalance(t, svc, owner.ID, b.ID, "600")
}

// failingStore makes recording the transfer fail after both balance updates
type failingStore struct {
	*memory.Store
}

type failingTransfers struct {
	repository.TransferRepository
}

var errRecordFailed = errors.New("insert failed")

func (failingTransfers) Create(context.Context, *models.Transfer) error {
	return errRecordFailed
}

func (s failingStore) WithinTx(ctx context.Context, fn func(r repository.Repositories) error) error {
	return s.Store.WithinTx(ctx, func(r repository.Repositories) error {
		r.Transfers = failingTransfers{r.Transfers}
		return fn(r)
	})
}

func TestTransfer_NoPartialStateOnFailure(t *testing.T) {
	svc, store := newTestService(t, nil)
	owner := createTestUser(t, svc, "alice")
	from := issueTestCard(t, svc, owner.ID, "100.00")
	to := issueTestCard(t, svc, owner.ID, "0")

	svc.store = failingStore{store}
	_, err := svc.Transfer(context.Background(), owner.ID, from.ID, to.ID, decimal.RequireFromString("25"))
	require.ErrorIs(t, err, errRecordFailed)

	svc.store = store
	requireBalance(t, svc, owner.ID, from.ID, "100.00")
	requireBalance(t, svc, owner.ID, to.ID, "0")
}

func TestTransfer_NotificationFailureIsNotReturned(t *testing.T) {
	notifier := new(MockNotifier)
	svc, _ := newTestService(t, notifier)
	owner := createTestUser(t, svc, "alice")
	from := issueTestCard(t, svc, owner.ID, "100.00")
	to := issueTestCard(t, svc, owner.ID, "0")

	notifier.On("TransferCompleted", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("smtp down"))

	_, err := svc.Transfer(context.Background(), owner.ID, from.ID, to.ID, decimal.RequireFromString("1"))
	require.NoError(t, err)
	requireBalance(t, svc, owner.ID, from.ID, "99")
	notifier.AssertNumberOfCalls(t, "TransferCompleted", 1)
}
