package service

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/Dan9191/bank-cards/internal/config"
	"github.com/Dan9191/bank-cards/internal/models"
	"github.com/Dan9191/bank-cards/internal/repository/memory"
	"github.com/Dan9191/bank-cards/internal/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testKeyHex = "a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6"

var testNow = time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

// MockNotifier is a mock implementation of Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) CardBlocked(ctx context.Context, owner models.User, maskedNumber string) error {
	args := m.Called(ctx, owner, maskedNumber)
	return args.Error(0)
}

func (m *MockNotifier) TransferCompleted(ctx context.Context, owner models.User, receipt models.TransferReceipt) error {
	args := m.Called(ctx, owner, receipt)
	return args.Error(0)
}

func (m *MockNotifier) CardExpiring(ctx context.Context, owner models.User, maskedNumber string, expiresOn time.Time) error {
	args := m.Called(ctx, owner, maskedNumber, expiresOn)
	return args.Error(0)
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:          "test-secret",
		JWTTTL:             time.Hour,
		CardNumberAttempts: DefaultGenerationAttempts,
	}
}

func newTestService(t *testing.T, notifier Notifier) (*Service, *memory.Store) {
	t.Helper()
	cipher, err := utils.NewCardCipher(utils.CipherModeGCM, testKeyHex, "")
	require.NoError(t, err)

	store := memory.NewStore()
	svc := NewService(store, cipher, utils.NewHMACIndex("test-hmac"), notifier, testLogger(), testConfig())
	svc.now = func() time.Time { return testNow }
	svc.passwordCost = bcrypt.MinCost
	return svc, store
}

func createTestUser(t *testing.T, svc *Service, username string) *models.User {
	t.Helper()
	user, err := svc.Register(context.Background(), "Test "+username, username, "password", username+"@example.com")
	require.NoError(t, err)
	return user
}

func issueTestCard(t *testing.T, svc *Service, ownerID uuid.UUID, balance string) *models.CardView {
	t.Helper()
	view, err := svc.IssueCard(context.Background(), ownerID, decimal.RequireFromString(balance))
	require.NoError(t, err)
	return view
}

func requireBalance(t *testing.T, svc *Service, ownerID, cardID uuid.UUID, want string) {
	t.Helper()
	got, err := svc.Balance(context.Background(), ownerID, cardID)
	require.NoError(t, err)
	require.True(t, got.Equal(decimal.RequireFromString(want)), "balance %s, want %s", got, want)
}

func TestValidateAmount(t *testing.T) {
	tests := []struct {
		amount    string
		allowZero bool
		valid     bool
	}{
		{"10.00", false, true},
		{"0.01", false, true},
		{"0", false, false},
		{"0", true, true},
		{"-1", true, false},
		{"1.005", false, false},
		{"1.50", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			err := validateAmount(decimal.RequireFromString(tt.amount), tt.allowZero)
			if tt.valid {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, utils.ErrInvalidArgument)
			}
		})
	}
}
