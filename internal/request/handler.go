package request

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/lifelink/lifelink/internal/identity"
	"github.com/lifelink/lifelink/internal/platform/httpx"
)

// Handler wires HTTP endpoints for blood requests.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	auth      identity.Middleware
	validator *validator.Validate
}

// NewHandler constructs request handler.
func NewHandler(logger *slog.Logger, service *Service, auth identity.Middleware) *Handler {
	return &Handler{logger: logger, service: service, auth: auth, validator: validator.New()}
}

// MountRoutes registers request routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/requests", h.handleList)
	r.Get("/requests/{requestID}", h.handleGet)
	r.Group(func(r chi.Router) {
		r.Use(h.auth.RequireAuth)
		r.Post("/requests", h.handleCreate)
		r.Patch("/requests/{requestID}", h.handleUpdate)
		r.Delete("/requests/{requestID}", h.handleDelete)
	})
}

type createRequest struct {
	PatientName string `json:"patientName" validate:"required"`
	BloodType   string `json:"bloodType" validate:"required"`
	UnitsNeeded int    `json:"unitsNeeded" validate:"gte=0"`
	Hospital    string `json:"hospital" validate:"required"`
	Location    string `json:"location"`
	Urgency     string `json:"urgency" validate:"omitempty,oneof=normal urgent critical"`
	UrgencyNote string `json:"urgencyNote"`
}

type updateRequest struct {
	Status      string `json:"status" validate:"omitempty,oneof=pending fulfilled cancelled"`
	UnitsNeeded int    `json:"unitsNeeded" validate:"gte=0"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	requests, err := h.service.List(r.Context(), Filter{
		BloodType: q.Get("bloodType"),
		Status:    q.Get("status"),
		Urgency:   q.Get("urgency"),
	})
	if err != nil {
		h.logger.Error("list requests", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"requests": requests})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "requestID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "request id must be numeric")
		return
	}
	req, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"request": req})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "patient name, blood type and hospital are required")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actor, _ := identity.FromContext(r.Context())
	created, err := h.service.Create(r.Context(), CreateInput{
		UserID:      actor.UserID,
		PatientName: req.PatientName,
		BloodType:   req.BloodType,
		UnitsNeeded: req.UnitsNeeded,
		Hospital:    req.Hospital,
		Location:    req.Location,
		Urgency:     req.Urgency,
		UrgencyNote: req.UrgencyNote,
	})
	if err != nil {
		h.logger.Error("create request", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"request": created})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "requestID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "request id must be numeric")
		return
	}
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actor, _ := identity.FromContext(r.Context())
	updated, err := h.service.Update(r.Context(), UpdateInput{
		RequestID:   id,
		Status:      req.Status,
		UnitsNeeded: req.UnitsNeeded,
		ActorID:     actor.UserID,
		ActorRole:   actor.Role,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"request": updated})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "requestID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "request id must be numeric")
		return
	}
	actor, _ := identity.FromContext(r.Context())
	if err := h.service.Delete(r.Context(), id, actor.UserID, actor.Role); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "request deleted"})
}
