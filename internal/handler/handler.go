package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/Dan9191/bank-cards/internal/middleware"
	"github.com/Dan9191/bank-cards/internal/models"
	"github.com/Dan9191/bank-cards/internal/service"
	"github.com/Dan9191/bank-cards/internal/utils"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Handler serves the HTTP API
type Handler struct {
	svc *service.Service
	log *logrus.Logger
}

// NewHandler creates a new handler
func NewHandler(svc *service.Service, log *logrus.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// Health reports that the service is up
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		h.log.Errorf("Failed to marshal JSON response: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

// respondWithError maps application errors to status codes. Messages of
// server errors are not exposed.
func (h *Handler) respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusCode(err)
	message := err.Error()

	entry := h.log.WithFields(logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
		"status": code,
	}).WithError(err)
	if code >= http.StatusInternalServerError {
		entry.Error("Request failed")
		message = "Internal server error"
	} else {
		entry.Warn("Request rejected")
	}

	h.respondWithJSON(w, code, map[string]string{"error": message})
}

func statusCode(err error) int {
	switch {
	case errors.Is(err, utils.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, utils.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, utils.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, utils.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, utils.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, utils.ErrInvalidState),
		errors.Is(err, utils.ErrConflict),
		errors.Is(err, utils.ErrDuplicateEntry):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", utils.ErrInvalidArgument, err)
	}
	return nil
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s must be a UUID", utils.ErrInvalidArgument, name)
	}
	return id, nil
}

// pageRequest reads the page and size query parameters
func pageRequest(r *http.Request) (models.PageRequest, error) {
	page := models.PageRequest{Page: 0, Size: models.DefaultPageSize}
	q := r.URL.Query()
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return page, fmt.Errorf("%w: page must be an integer", utils.ErrInvalidArgument)
		}
		page.Page = n
	}
	if v := q.Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return page, fmt.Errorf("%w: size must be an integer", utils.ErrInvalidArgument)
		}
		page.Size = n
	}
	return page, nil
}

func caller(r *http.Request) (models.Principal, error) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		return models.Principal{}, fmt.Errorf("%w: no authenticated caller", utils.ErrUnauthorized)
	}
	return p, nil
}
