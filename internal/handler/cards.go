package handler

import (
	"fmt"
	"net/http"

	"github.com/Dan9191/bank-cards/internal/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransferRequest represents the request body for a transfer between own cards
type TransferRequest struct {
	FromCardID uuid.UUID       `json:"from_card_id"`
	ToCardID   uuid.UUID       `json:"to_card_id"`
	Amount     decimal.Decimal `json:"amount"`
}

// ListMyCards returns the caller's cards, masked
// GET /api/v1/cards/all?status=&page=&size=
func (h *Handler) ListMyCards(w http.ResponseWriter, r *http.Request) {
	p, err := caller(r)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	page, err := pageRequest(r)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	result, err := h.svc.ListCards(r.Context(), &p.UserID, r.URL.Query().Get("status"), page)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, result)
}

// GetCard returns one of the caller's cards, masked
// GET /api/v1/cards/{cardId}
func (h *Handler) GetCard(w http.ResponseWriter, r *http.Request) {
	h.getCard(w, r, false)
}

// GetRawCard returns one of the caller's cards with the full number
// GET /api/v1/cards/raw/{cardId}
func (h *Handler) GetRawCard(w http.ResponseWriter, r *http.Request) {
	h.getCard(w, r, true)
}

func (h *Handler) getCard(w http.ResponseWriter, r *http.Request, raw bool) {
	p, err := caller(r)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	cardID, err := pathUUID(r, "cardId")
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	view, err := h.svc.GetCard(r.Context(), p.UserID, cardID, raw)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, view)
}

// Balance returns the balance of one of the caller's cards
// GET /api/v1/cards/{cardId}/balance
func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	p, err := caller(r)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	cardID, err := pathUUID(r, "cardId")
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	balance, err := h.svc.Balance(r.Context(), p.UserID, cardID)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"card_id": cardID,
		"balance": balance,
	})
}

// ListTransfers returns the transfer history of one of the caller's cards
// GET /api/v1/cards/{cardId}/transfers?page=&size=
func (h *Handler) ListTransfers(w http.ResponseWriter, r *http.Request) {
	p, err := caller(r)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	cardID, err := pathUUID(r, "cardId")
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	page, err := pageRequest(r)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	result, err := h.svc.ListTransfers(r.Context(), p.UserID, cardID, page)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, result)
}

// BlockCard blocks one of the caller's cards
// POST /api/v1/cards/block-request/{cardId}
func (h *Handler) BlockCard(w http.ResponseWriter, r *http.Request) {
	p, err := caller(r)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	cardID, err := pathUUID(r, "cardId")
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}

	if err := h.svc.BlockCard(r.Context(), p.UserID, cardID); err != nil {
		h.respondWithError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Card blocked",
		"card_id": cardID,
	})
}

// Transfer moves money between two of the caller's cards
// POST /api/v1/cards/transfers
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	p, err := caller(r)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	var req TransferRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondWithError(w, r, err)
		return
	}
	if req.FromCardID == uuid.Nil || req.ToCardID == uuid.Nil {
		h.respondWithError(w, r, fmt.Errorf("%w: from_card_id and to_card_id are required", utils.ErrInvalidArgument))
		return
	}

	receipt, err := h.svc.Transfer(r.Context(), p.UserID, req.FromCardID, req.ToCardID, req.Amount)
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, receipt)
}
