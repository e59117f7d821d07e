package bank

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/lifelink/lifelink/internal/identity"
	"github.com/lifelink/lifelink/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the bank registry.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	auth      identity.Middleware
	validator *validator.Validate
}

// NewHandler constructs bank handler.
func NewHandler(logger *slog.Logger, service *Service, auth identity.Middleware) *Handler {
	return &Handler{logger: logger, service: service, auth: auth, validator: validator.New()}
}

// MountRoutes registers bank routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/banks", h.handleList)
	r.Get("/banks/{bankID}", h.handleGet)
	r.Group(func(r chi.Router) {
		r.Use(h.auth.RequireAdmin)
		r.Post("/banks", h.handleCreate)
	})
}

type createRequest struct {
	Name     string `json:"name" validate:"required"`
	Location string `json:"location" validate:"required"`
	Phone    string `json:"phone"`
	Hours    string `json:"hours"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	banks, err := h.service.List(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		h.logger.Error("list banks", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"banks": banks})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "bankID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "bank id must be numeric")
		return
	}
	bank, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"bank": bank.BloodBank, "inventory": bank.Inventory})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "name and location are required")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actor, _ := identity.FromContext(r.Context())
	bank, err := h.service.Create(r.Context(), CreateInput{
		Name:     req.Name,
		Location: req.Location,
		Phone:    req.Phone,
		Hours:    req.Hours,
		ActorID:  actor.UserID,
	})
	if err != nil {
		h.logger.Error("create bank", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"bank": bank})
}
