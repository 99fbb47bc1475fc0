package handler

import (
	"net/http"

	"github.com/Dan9191/bank-cards/internal/middleware"
	"github.com/Dan9191/bank-cards/internal/models"
	"github.com/gorilla/mux"
)

// NewRouter registers all routes
func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	// Public routes
	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/auth/register", h.Register).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", h.Login).Methods(http.MethodPost)

	// Card owner routes
	cards := api.PathPrefix("/cards").Subrouter()
	cards.Use(middleware.AuthMiddleware(h.svc, h.log))
	cards.HandleFunc("/all", h.ListMyCards).Methods(http.MethodGet)
	cards.HandleFunc("/transfers", h.Transfer).Methods(http.MethodPost)
	cards.HandleFunc("/raw/{cardId}", h.GetRawCard).Methods(http.MethodGet)
	cards.HandleFunc("/block-request/{cardId}", h.BlockCard).Methods(http.MethodPost)
	cards.HandleFunc("/{cardId}/balance", h.Balance).Methods(http.MethodGet)
	cards.HandleFunc("/{cardId}/transfers", h.ListTransfers).Methods(http.MethodGet)
	cards.HandleFunc("/{cardId}", h.GetCard).Methods(http.MethodGet)

	// Admin routes
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.AuthMiddleware(h.svc, h.log), middleware.RequireRole(models.RoleAdmin))
	admin.HandleFunc("/cards/all", h.AdminListCards).Methods(http.MethodGet)
	admin.HandleFunc("/cards/all/{userId}", h.AdminListUserCards).Methods(http.MethodGet)
	admin.HandleFunc("/cards/export", h.AdminExportCards).Methods(http.MethodGet)
	admin.HandleFunc("/cards/new", h.AdminIssueCard).Methods(http.MethodPost)
	admin.HandleFunc("/cards/{cardId}/status", h.AdminSetCardStatus).Methods(http.MethodPatch)
	admin.HandleFunc("/cards/{cardId}/delete", h.AdminDeleteCard).Methods(http.MethodDelete)
	admin.HandleFunc("/cards/{cardId}", h.AdminGetCard).Methods(http.MethodGet)
	admin.HandleFunc("/users/all", h.AdminListUsers).Methods(http.MethodGet)
	admin.HandleFunc("/users/create", h.AdminCreateUser).Methods(http.MethodPost)
	admin.HandleFunc("/users/{userId}", h.AdminGetUser).Methods(http.MethodGet)
	admin.HandleFunc("/users/{userId}", h.AdminDeleteUser).Methods(http.MethodDelete)

	return r
}
