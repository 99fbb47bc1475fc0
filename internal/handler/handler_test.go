package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Dan9191/bank-cards/internal/config"
	"github.com/Dan9191/bank-cards/internal/models"
	"github.com/Dan9191/bank-cards/internal/repository/memory"
	"github.com/Dan9191/bank-cards/internal/service"
	"github.com/Dan9191/bank-cards/internal/utils"
	"github.com/beevik/etree"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeyHex = "a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6"

type testAPI struct {
	router     *mux.Router
	store      *memory.Store
	adminToken string
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	cipher, err := utils.NewCardCipher(utils.CipherModeGCM, testKeyHex, "")
	require.NoError(t, err)
	cfg := &config.Config{JWTSecret: "test-secret", JWTTTL: time.Hour, CardNumberAttempts: 5}
	store := memory.NewStore()
	svc := service.NewService(store, cipher, utils.NewHMACIndex("test-hmac"), nil, log, cfg)

	_, err = svc.SeedAdmin(context.Background(), "admin", "admin-pw", "Administrator")
	require.NoError(t, err)

	api := &testAPI{router: NewRouter(NewHandler(svc, log)), store: store}
	api.adminToken = api.login(t, "admin", "admin-pw")
	return api
}

func (a *testAPI) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		payload, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)
	return rr
}

func (a *testAPI) register(t *testing.T, username string) models.User {
	t.Helper()
	rr := a.do(t, http.MethodPost, "/api/v1/auth/register", "", RegisterRequest{
		FullName: "User " + username,
		Username: username,
		Password: "password",
		Email:    username + "@example.com",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var user models.User
	decode(t, rr, &user)
	return user
}

func (a *testAPI) login(t *testing.T, username, password string) string {
	t.Helper()
	rr := a.do(t, http.MethodPost, "/api/v1/auth/login", "", LoginRequest{Username: username, Password: password})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var resp map[string]string
	decode(t, rr, &resp)
	require.NotEmpty(t, resp["token"])
	return resp["token"]
}

func (a *testAPI) issue(t *testing.T, ownerID uuid.UUID, balance string) models.CardView {
	t.Helper()
	rr := a.do(t, http.MethodPost, "/api/v1/admin/cards/new", a.adminToken, IssueCardRequest{
		OwnerID:        ownerID,
		InitialBalance: decimal.RequireFromString(balance),
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var view models.CardView
	decode(t, rr, &view)
	return view
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), dst), rr.Body.String())
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)
	rr := api.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestAuthEndpoints(t *testing.T) {
	api := newTestAPI(t)
	user := api.register(t, "alice")
	assert.Equal(t, models.RoleUser, user.Role)

	tests := []struct {
		name       string
		path       string
		body       interface{}
		wantStatus int
	}{
		{"duplicate username", "/api/v1/auth/register", RegisterRequest{FullName: "A", Username: "alice", Password: "x"}, http.StatusConflict},
		{"missing fields", "/api/v1/auth/register", RegisterRequest{Username: "bob"}, http.StatusBadRequest},
		{"malformed body", "/api/v1/auth/register", "{", http.StatusBadRequest},
		{"wrong password", "/api/v1/auth/login", LoginRequest{Username: "alice", Password: "nope"}, http.StatusUnauthorized},
		{"unknown user", "/api/v1/auth/login", LoginRequest{Username: "zed", Password: "password"}, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := api.do(t, http.MethodPost, tt.path, "", tt.body)
			assert.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
			assert.Contains(t, rr.Body.String(), `"error"`)
		})
	}

	assert.NotContains(t, api.do(t, http.MethodPost, "/api/v1/auth/register", "", RegisterRequest{
		FullName: "Carol", Username: "carol", Password: "secret-pw",
	}).Body.String(), "secret-pw")
}

func TestCardEndpoints(t *testing.T) {
	api := newTestAPI(t)
	alice := api.register(t, "alice")
	bob := api.register(t, "bob")
	aliceToken := api.login(t, "alice", "password")
	bobToken := api.login(t, "bob", "password")

	from := api.issue(t, alice.ID, "100.00")
	to := api.issue(t, alice.ID, "5.00")
	bobs := api.issue(t, bob.ID, "1.00")
	assert.True(t, strings.HasPrefix(from.CardNumber, "**** **** **** "))

	t.Run("list own cards", func(t *testing.T) {
		rr := api.do(t, http.MethodGet, "/api/v1/cards/all?size=1", aliceToken, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		var page models.Page[models.CardView]
		decode(t, rr, &page)
		assert.Equal(t, int64(2), page.TotalElements)
		assert.Equal(t, 2, page.TotalPages)
		assert.Len(t, page.Content, 1)
	})

	t.Run("get masked and raw", func(t *testing.T) {
		rr := api.do(t, http.MethodGet, "/api/v1/cards/"+from.ID.String(), aliceToken, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		var masked models.CardView
		decode(t, rr, &masked)
		assert.Equal(t, from.CardNumber, masked.CardNumber)
		assert.Equal(t, "User alice", masked.OwnerName)

		rr = api.do(t, http.MethodGet, "/api/v1/cards/raw/"+from.ID.String(), aliceToken, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		var raw models.CardView
		decode(t, rr, &raw)
		assert.Len(t, raw.CardNumber, 16)
		assert.True(t, utils.ValidLuhn(raw.CardNumber))
		assert.Equal(t, from.CardNumber, utils.MaskCardNumber(raw.CardNumber))
	})

	t.Run("transfer", func(t *testing.T) {
		rr := api.do(t, http.MethodPost, "/api/v1/cards/transfers", aliceToken, map[string]interface{}{
			"from_card_id": from.ID,
			"to_card_id":   to.ID,
			"amount":       "30.50",
		})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		var receipt models.TransferReceipt
		decode(t, rr, &receipt)
		assert.Equal(t, from.CardNumber, receipt.FromCardNumber)
		assert.True(t, receipt.Amount.Equal(decimal.RequireFromString("30.50")))

		rr = api.do(t, http.MethodGet, "/api/v1/cards/"+from.ID.String()+"/balance", aliceToken, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		var balance struct {
			Balance decimal.Decimal `json:"balance"`
		}
		decode(t, rr, &balance)
		assert.True(t, balance.Balance.Equal(decimal.RequireFromString("69.50")))

		rr = api.do(t, http.MethodGet, "/api/v1/cards/"+to.ID.String()+"/transfers", aliceToken, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		var history models.Page[models.Transfer]
		decode(t, rr, &history)
		require.Len(t, history.Content, 1)
		assert.Equal(t, receipt.ID, history.Content[0].ID)
	})

	t.Run("error mapping", func(t *testing.T) {
		transfer := func(fromID, toID uuid.UUID, amount string) map[string]interface{} {
			return map[string]interface{}{"from_card_id": fromID, "to_card_id": toID, "amount": amount}
		}

		tests := []struct {
			name       string
			method     string
			path       string
			token      string
			body       interface{}
			wantStatus int
		}{
			{"no token", http.MethodGet, "/api/v1/cards/all", "", nil, http.StatusUnauthorized},
			{"bad token", http.MethodGet, "/api/v1/cards/all", "garbage", nil, http.StatusUnauthorized},
			{"foreign card", http.MethodGet, "/api/v1/cards/" + from.ID.String(), bobToken, nil, http.StatusForbidden},
			{"foreign balance", http.MethodGet, "/api/v1/cards/" + from.ID.String() + "/balance", bobToken, nil, http.StatusForbidden},
			{"unknown card", http.MethodGet, "/api/v1/cards/" + uuid.NewString(), aliceToken, nil, http.StatusNotFound},
			{"malformed card id", http.MethodGet, "/api/v1/cards/not-a-uuid", aliceToken, nil, http.StatusBadRequest},
			{"bad status filter", http.MethodGet, "/api/v1/cards/all?status=LOST", aliceToken, nil, http.StatusBadRequest},
			{"bad page", http.MethodGet, "/api/v1/cards/all?page=x", aliceToken, nil, http.StatusBadRequest},
			{"oversized page", http.MethodGet, "/api/v1/cards/all?size=1000", aliceToken, nil, http.StatusBadRequest},
			{"self transfer", http.MethodPost, "/api/v1/cards/transfers", aliceToken, transfer(from.ID, from.ID, "1"), http.StatusBadRequest},
			{"missing card ids", http.MethodPost, "/api/v1/cards/transfers", aliceToken, map[string]string{"amount": "1"}, http.StatusBadRequest},
			{"insufficient funds", http.MethodPost, "/api/v1/cards/transfers", aliceToken, transfer(from.ID, to.ID, "1000"), http.StatusPaymentRequired},
			{"foreign destination", http.MethodPost, "/api/v1/cards/transfers", aliceToken, transfer(from.ID, bobs.ID, "1"), http.StatusForbidden},
			{"user on admin route", http.MethodGet, "/api/v1/admin/cards/all", aliceToken, nil, http.StatusForbidden},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rr := api.do(t, tt.method, tt.path, tt.token, tt.body)
				assert.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
			})
		}
	})

	t.Run("block", func(t *testing.T) {
		rr := api.do(t, http.MethodPost, "/api/v1/cards/block-request/"+to.ID.String(), aliceToken, nil)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		rr = api.do(t, http.MethodPost, "/api/v1/cards/block-request/"+to.ID.String(), aliceToken, nil)
		assert.Equal(t, http.StatusConflict, rr.Code)

		rr = api.do(t, http.MethodPost, "/api/v1/cards/transfers", aliceToken, map[string]interface{}{
			"from_card_id": from.ID, "to_card_id": to.ID, "amount": "1",
		})
		assert.Equal(t, http.StatusConflict, rr.Code)
	})
}

func TestAdminCardEndpoints(t *testing.T) {
	api := newTestAPI(t)
	alice := api.register(t, "alice")
	card := api.issue(t, alice.ID, "10.00")
	api.issue(t, alice.ID, "20.00")

	t.Run("issue validation", func(t *testing.T) {
		rr := api.do(t, http.MethodPost, "/api/v1/admin/cards/new", api.adminToken, map[string]interface{}{
			"owner_id": uuid.NewString(), "initial_balance": "1",
		})
		assert.Equal(t, http.StatusNotFound, rr.Code)

		rr = api.do(t, http.MethodPost, "/api/v1/admin/cards/new", api.adminToken, map[string]interface{}{
			"owner_id": alice.ID, "initial_balance": "-1",
		})
		assert.Equal(t, http.StatusBadRequest, rr.Code)

		rr = api.do(t, http.MethodPost, "/api/v1/admin/cards/new", api.adminToken, map[string]interface{}{
			"initial_balance": "1",
		})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("list and get", func(t *testing.T) {
		rr := api.do(t, http.MethodGet, "/api/v1/admin/cards/all", api.adminToken, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		var page models.Page[models.CardView]
		decode(t, rr, &page)
		assert.Equal(t, int64(2), page.TotalElements)

		rr = api.do(t, http.MethodGet, "/api/v1/admin/cards/all/"+alice.ID.String(), api.adminToken, nil)
		require.Equal(t, http.StatusOK, rr.Code)

		rr = api.do(t, http.MethodGet, "/api/v1/admin/cards/all/"+uuid.NewString(), api.adminToken, nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)

		rr = api.do(t, http.MethodGet, "/api/v1/admin/cards/"+card.ID.String(), api.adminToken, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		var view models.CardView
		decode(t, rr, &view)
		assert.Equal(t, card.CardNumber, view.CardNumber)
	})

	t.Run("set status", func(t *testing.T) {
		path := "/api/v1/admin/cards/" + card.ID.String() + "/status"

		rr := api.do(t, http.MethodPatch, path+"?status=blocked", api.adminToken, nil)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		var view models.CardView
		decode(t, rr, &view)
		assert.Equal(t, models.CardStatusBlocked, view.Status)

		rr = api.do(t, http.MethodPatch, path+"?status=ACTIVE", api.adminToken, nil)
		require.Equal(t, http.StatusOK, rr.Code)

		rr = api.do(t, http.MethodPatch, path, api.adminToken, nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)

		rr = api.do(t, http.MethodPatch, "/api/v1/admin/cards/"+uuid.NewString()+"/status?status=BLOCKED", api.adminToken, nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("export", func(t *testing.T) {
		rr := api.do(t, http.MethodGet, "/api/v1/admin/cards/export", api.adminToken, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Header().Get("Content-Type"), "application/xml")

		doc := etree.NewDocument()
		require.NoError(t, doc.ReadFromBytes(rr.Body.Bytes()))
		cards := doc.FindElements("//cards/card")
		require.Len(t, cards, 2)
		for _, c := range cards {
			assert.True(t, strings.HasPrefix(c.FindElement("./number").Text(), "**** **** **** "))
		}
	})

	t.Run("delete", func(t *testing.T) {
		path := "/api/v1/admin/cards/" + card.ID.String() + "/delete"
		rr := api.do(t, http.MethodDelete, path, api.adminToken, nil)
		assert.Equal(t, http.StatusNoContent, rr.Code)

		rr = api.do(t, http.MethodDelete, path, api.adminToken, nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestAdminUserEndpoints(t *testing.T) {
	api := newTestAPI(t)
	alice := api.register(t, "alice")
	api.issue(t, alice.ID, "10.00")

	rr := api.do(t, http.MethodPost, "/api/v1/admin/users/create", api.adminToken, CreateUserRequest{
		FullName: "Second Admin", Username: "admin2", Password: "pw", Role: "admin",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var admin2 models.User
	decode(t, rr, &admin2)
	assert.Equal(t, models.RoleAdmin, admin2.Role)

	rr = api.do(t, http.MethodPost, "/api/v1/admin/users/create", api.adminToken, CreateUserRequest{
		FullName: "X", Username: "x", Password: "pw", Role: "owner",
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = api.do(t, http.MethodGet, "/api/v1/admin/users/all?full_name=alice", api.adminToken, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var page models.Page[models.User]
	decode(t, rr, &page)
	require.Len(t, page.Content, 1)
	assert.Equal(t, alice.ID, page.Content[0].ID)

	rr = api.do(t, http.MethodGet, "/api/v1/admin/users/"+alice.ID.String(), api.adminToken, nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = api.do(t, http.MethodDelete, "/api/v1/admin/users/"+alice.ID.String(), api.adminToken, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = api.do(t, http.MethodGet, "/api/v1/admin/users/"+alice.ID.String(), api.adminToken, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = api.do(t, http.MethodGet, "/api/v1/admin/cards/all", api.adminToken, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var cards models.Page[models.CardView]
	decode(t, rr, &cards)
	assert.Zero(t, cards.TotalElements)
}

func TestRevokedAdminTokens(t *testing.T) {
	createAdmin := func(t *testing.T, api *testAPI, username string) (models.User, string) {
		t.Helper()
		rr := api.do(t, http.MethodPost, "/api/v1/admin/users/create", api.adminToken, CreateUserRequest{
			FullName: "Admin " + username, Username: username, Password: "pw", Role: "ADMIN",
		})
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		var user models.User
		decode(t, rr, &user)
		token := api.login(t, username, "pw")

		rr = api.do(t, http.MethodGet, "/api/v1/admin/users/all", token, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		return user, token
	}

	t.Run("deleted account", func(t *testing.T) {
		api := newTestAPI(t)
		admin2, token := createAdmin(t, api, "admin2")

		rr := api.do(t, http.MethodDelete, "/api/v1/admin/users/"+admin2.ID.String(), api.adminToken, nil)
		require.Equal(t, http.StatusNoContent, rr.Code)

		rr = api.do(t, http.MethodGet, "/api/v1/admin/users/all", token, nil)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		rr = api.do(t, http.MethodGet, "/api/v1/cards/all", token, nil)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("demoted account", func(t *testing.T) {
		api := newTestAPI(t)
		admin2, token := createAdmin(t, api, "admin2")

		ctx := context.Background()
		users := api.store.Repositories().Users
		stored, err := users.FindByID(ctx, admin2.ID)
		require.NoError(t, err)
		stored.Role = models.RoleUser
		require.NoError(t, users.Delete(ctx, admin2.ID))
		require.NoError(t, users.Create(ctx, stored))

		rr := api.do(t, http.MethodGet, "/api/v1/admin/users/all", token, nil)
		assert.Equal(t, http.StatusForbidden, rr.Code)
		rr = api.do(t, http.MethodGet, "/api/v1/cards/all", token, nil)
		assert.Equal(t, http.StatusOK, rr.Code)
	})
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{utils.ErrNotFound, http.StatusNotFound},
		{utils.ErrForbidden, http.StatusForbidden},
		{utils.ErrInvalidState, http.StatusConflict},
		{utils.ErrInvalidArgument, http.StatusBadRequest},
		{utils.ErrInsufficientFunds, http.StatusPaymentRequired},
		{utils.ErrGenerationExhausted, http.StatusInternalServerError},
		{utils.ErrCryptoFailure, http.StatusInternalServerError},
		{utils.ErrConflict, http.StatusConflict},
		{utils.ErrDuplicateEntry, http.StatusConflict},
		{utils.ErrUnauthorized, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusCode(tt.err))
		})
	}
}

func TestRespondWithError_HidesServerErrors(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	h := NewHandler(nil, log)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	h.respondWithError(rr, req, utils.ErrCryptoFailure)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, rr.Body.String())
}
