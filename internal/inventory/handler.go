package inventory

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/lifelink/lifelink/internal/identity"
	"github.com/lifelink/lifelink/internal/observability"
	"github.com/lifelink/lifelink/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the inventory module.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	auth      identity.Middleware
	metrics   *observability.Metrics
	validator *validator.Validate
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service, auth identity.Middleware, metrics *observability.Metrics) *Handler {
	return &Handler{logger: logger, service: service, auth: auth, metrics: metrics, validator: validator.New()}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/inventory/{bankID}", h.handleList)
	r.Group(func(r chi.Router) {
		r.Use(h.auth.RequireBankAccess("bankID"))
		r.Patch("/inventory/{bankID}", h.handlePatch)
	})
}

type deltaRequest struct {
	BloodType string `json:"bloodType" validate:"required"`
	Units     *int   `json:"units" validate:"required"`
	Action    string `json:"action" validate:"omitempty,oneof=set add subtract"`
}

type inventoryResponse struct {
	Inventory []Record `json:"inventory"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	bankID, err := strconv.ParseInt(chi.URLParam(r, "bankID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "bank id must be numeric")
		return
	}
	records, err := h.service.List(r.Context(), bankID)
	if err != nil {
		h.logger.Error("list inventory", slog.Int64("bank_id", bankID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inventoryResponse{Inventory: records})
}

// handlePatch applies one delta and responds with the bank's full inventory.
func (h *Handler) handlePatch(w http.ResponseWriter, r *http.Request) {
	bankID, err := strconv.ParseInt(chi.URLParam(r, "bankID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "bank id must be numeric")
		return
	}
	var req deltaRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "blood type and units are required")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	action := Action(req.Action)
	if req.Action == "" {
		action = ActionSet
	}
	actor, _ := identity.FromContext(r.Context())
	records, err := h.service.ApplyDelta(r.Context(), DeltaInput{
		BankID:    bankID,
		BloodType: req.BloodType,
		Action:    action,
		Amount:    *req.Units,
		ActorID:   actor.UserID,
	})
	if err != nil {
		h.logger.Error("apply inventory delta",
			slog.Int64("bank_id", bankID),
			slog.String("blood_type", req.BloodType),
			slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.metrics.CountInventoryUpdate(string(action))
	httpx.JSON(w, http.StatusOK, inventoryResponse{Inventory: records})
}
