package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/Dan9191/bank-cards/internal/models"
	"github.com/Dan9191/bank-cards/internal/report"
	"github.com/Dan9191/bank-cards/internal/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// IssueCardRequest represents the request body for issuing a card
type IssueCardRequest struct {
	OwnerID        uuid.UUID       `json:"owner_id"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
}

// CreateUserRequest represents the request body for creating a user
type CreateUserRequest struct {
	FullName string `json:"full_name"`
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// AdminListCards returns all cards, masked
// GET /api/v1/admin/cards/all?status=&page=&size=
func (h *Handler) AdminListCards(w http.ResponseWriter, r *http.Request) {
	page, err := pageRequest(r)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	result, err := h.svc.ListCards(r.Context(), nil, r.URL.Query().Get("status"), page)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, result)
}

// AdminListUserCards returns the cards of one user, masked
// GET /api/v1/admin/cards/all/{userId}?status=&page=&size=
func (h *Handler) AdminListUserCards(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUUID(r, "userId")
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	page, err := pageRequest(r)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	result, err := h.svc.ListCards(r.Context(), &userID, r.URL.Query().Get("status"), page)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, result)
}

// AdminExportCards returns all cards as an XML document
// GET /api/v1/admin/cards/export?status=
func (h *Handler) AdminExportCards(w http.ResponseWriter, r *http.Request) {
	cards, err := h.svc.ExportCards(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := report.WriteCardsXML(&buf, cards, time.Now()); err != nil {
		h.respondWithError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", report.ContentTypeXML)
	w.Header().Set("Content-Disposition", `attachment; filename="cards.xml"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// AdminGetCard returns any card, masked
// GET /api/v1/admin/cards/{cardId}
func (h *Handler) AdminGetCard(w http.ResponseWriter, r *http.Request) {
	cardID, err := pathUUID(r, "cardId")
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	view, err := h.svc.GetCardAsAdmin(r.Context(), cardID)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, view)
}

// AdminIssueCard issues a card to a user
// POST /api/v1/admin/cards/new
func (h *Handler) AdminIssueCard(w http.ResponseWriter, r *http.Request) {
	var req IssueCardRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondWithError(w, r, err)
		return
	}
	if req.OwnerID == uuid.Nil {
		h.respondWithError(w, r, fmt.Errorf("%w: owner_id is required", utils.ErrInvalidArgument))
		return
	}

	view, err := h.svc.IssueCard(r.Context(), req.OwnerID, req.InitialBalance)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusCreated, view)
}

// AdminSetCardStatus sets the status of a card
// PATCH /api/v1/admin/cards/{cardId}/status?status=
func (h *Handler) AdminSetCardStatus(w http.ResponseWriter, r *http.Request) {
	cardID, err := pathUUID(r, "cardId")
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	view, err := h.svc.SetCardStatus(r.Context(), cardID, r.URL.Query().Get("status"))
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, view)
}

// AdminDeleteCard deletes a card
// DELETE /api/v1/admin/cards/{cardId}/delete
func (h *Handler) AdminDeleteCard(w http.ResponseWriter, r *http.Request) {
	cardID, err := pathUUID(r, "cardId")
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	if err := h.svc.DeleteCard(r.Context(), cardID); err != nil {
		h.respondWithError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AdminListUsers returns users filtered by full name
// GET /api/v1/admin/users/all?full_name=&page=&size=
func (h *Handler) AdminListUsers(w http.ResponseWriter, r *http.Request) {
	page, err := pageRequest(r)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	result, err := h.svc.ListUsers(r.Context(), r.URL.Query().Get("full_name"), page)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, result)
}

// AdminGetUser returns one user
// GET /api/v1/admin/users/{userId}
func (h *Handler) AdminGetUser(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUUID(r, "userId")
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	user, err := h.svc.GetUser(r.Context(), userID)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, user)
}

// AdminDeleteUser deletes a user and their cards
// DELETE /api/v1/admin/users/{userId}
func (h *Handler) AdminDeleteUser(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUUID(r, "userId")
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	if err := h.svc.DeleteUser(r.Context(), userID); err != nil {
		h.respondWithError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AdminCreateUser creates a user with the given role
// POST /api/v1/admin/users/create
func (h *Handler) AdminCreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondWithError(w, r, err)
		return
	}
	if req.Role == "" {
		req.Role = string(models.RoleUser)
	}
	user, err := h.svc.CreateUser(r.Context(), req.FullName, req.Username, req.Password, req.Email, req.Role)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusCreated, user)
}
