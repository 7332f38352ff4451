package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/ruteri/be-registry/api"
	"github.com/ruteri/be-registry/interfaces"
)

// RequestError provides structured error information for HTTP responses.
// It includes both an HTTP status code and the underlying error.
type RequestError struct {
	// StatusCode is the HTTP status code to return.
	StatusCode int

	// Err is the underlying error.
	Err error
}

// Error returns the error message from the underlying error.
func (e *RequestError) Error() string {
	return e.Err.Error()
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Handler serves the registry API on top of an interfaces.EntityRegistry.
type Handler struct {
	registry    interfaces.EntityRegistry
	log         *slog.Logger
	maxBodySize int64
}

// NewHandler creates a new HTTP request handler for registry.
func NewHandler(registry interfaces.EntityRegistry, log *slog.Logger) *Handler {
	return &Handler{
		registry:    registry,
		log:         log,
		maxBodySize: api.DefaultMaxRequestBodyBytes,
	}
}

// SetMaxBodySize overrides the request body limit. Non-positive values are ignored.
func (h *Handler) SetMaxBodySize(n int64) {
	if n > 0 {
		h.maxBodySize = n
	}
}

// RegisterRoutes mounts the registry API on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post(api.EntitiesPath, h.HandleRegisterBE)
	r.Get(api.EntitiesPath, h.HandleGetAllBEs)
	r.Get(api.EntitiesPath+"/{address}", h.HandleGetBE)
	r.Put(api.EntitiesPath+"/{address}", h.HandleUpdateBE)
	r.Post(api.EntitiesPath+"/{address}/status", h.HandleChangeBEStatus)
	r.Delete(api.EntitiesPath+"/{address}", h.HandleDeleteBE)
	r.Get("/api/v1/users/{address}/entities", h.HandleGetBEsByUser)
	r.Get(api.LogicPath, h.HandleLogicInfo)
}

// HandleRegisterBE registers the entity in the request body.
//
// URL format: POST /api/v1/entities
// Response: {"address": "0x..."}
func (h *Handler) HandleRegisterBE(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFromRequest(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var data interfaces.BusinessEntity
	if err := h.decodeBody(w, r, &data); err != nil {
		h.writeError(w, r, err)
		return
	}

	address, err := h.registry.RegisterBE(r.Context(), caller, data)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, api.RegisterResponse{Address: address})
}

// HandleGetAllBEs lists every entity that has not been deleted.
//
// URL format: GET /api/v1/entities
func (h *Handler) HandleGetAllBEs(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFromRequest(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	entities, err := h.registry.GetAllBEs(r.Context(), caller)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if entities == nil {
		entities = []interfaces.BusinessEntity{}
	}

	h.writeJSON(w, http.StatusOK, entities)
}

// HandleGetBE returns a single entity.
//
// URL format: GET /api/v1/entities/{address}
func (h *Handler) HandleGetBE(w http.ResponseWriter, r *http.Request) {
	caller, address, err := callerAndAddress(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	entity, err := h.registry.GetBE(r.Context(), caller, address)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, entity)
}

// HandleGetBEsByUser returns the entities of a user split by expiry.
//
// URL format: GET /api/v1/users/{address}/entities
// Response: {"notExpired": [...], "expired": [...]}
func (h *Handler) HandleGetBEsByUser(w http.ResponseWriter, r *http.Request) {
	caller, user, err := callerAndAddress(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.registry.GetBEsByUser(r.Context(), caller, user)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if res.NotExpired == nil {
		res.NotExpired = []interfaces.BusinessEntity{}
	}
	if res.Expired == nil {
		res.Expired = []interfaces.BusinessEntity{}
	}

	h.writeJSON(w, http.StatusOK, res)
}

// HandleUpdateBE replaces the payload of an entity.
//
// URL format: PUT /api/v1/entities/{address}
func (h *Handler) HandleUpdateBE(w http.ResponseWriter, r *http.Request) {
	caller, address, err := callerAndAddress(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var data interfaces.BusinessEntity
	if err := h.decodeBody(w, r, &data); err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.registry.UpdateBE(r.Context(), caller, address, data); err != nil {
		h.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleChangeBEStatus changes the status of an entity.
//
// URL format: POST /api/v1/entities/{address}/status
// Request body: {"status": "Deregistered"}
func (h *Handler) HandleChangeBEStatus(w http.ResponseWriter, r *http.Request) {
	caller, address, err := callerAndAddress(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req api.ChangeStatusRequest
	if err := h.decodeBody(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.registry.ChangeBEStatus(r.Context(), caller, address, req.Status); err != nil {
		h.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleDeleteBE deletes an entity.
//
// URL format: DELETE /api/v1/entities/{address}
func (h *Handler) HandleDeleteBE(w http.ResponseWriter, r *http.Request) {
	caller, address, err := callerAndAddress(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.registry.DeleteBE(r.Context(), caller, address); err != nil {
		h.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleLogicInfo reports the registry address and logic version.
//
// URL format: GET /api/v1/logic
func (h *Handler) HandleLogicInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.registry.LogicInfo(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, info)
}

// callerFromRequest reads the caller address header. A missing header means
// the zero address.
func callerFromRequest(r *http.Request) (common.Address, error) {
	value := r.Header.Get(api.CallerHeader)
	if value == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(value) {
		return common.Address{}, &RequestError{
			StatusCode: http.StatusBadRequest,
			Err:        fmt.Errorf("invalid %s header %q", api.CallerHeader, value),
		}
	}
	return common.HexToAddress(value), nil
}

func callerAndAddress(r *http.Request) (common.Address, common.Address, error) {
	caller, err := callerFromRequest(r)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}

	value := chi.URLParam(r, "address")
	if !common.IsHexAddress(value) {
		return common.Address{}, common.Address{}, &RequestError{
			StatusCode: http.StatusBadRequest,
			Err:        fmt.Errorf("invalid address %q", value),
		}
	}
	return caller, common.HexToAddress(value), nil
}

func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, out any) error {
	body := http.MaxBytesReader(w, r.Body, h.maxBodySize)
	if err := json.NewDecoder(body).Decode(out); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &RequestError{StatusCode: http.StatusRequestEntityTooLarge, Err: err}
		}
		return &RequestError{
			StatusCode: http.StatusBadRequest,
			Err:        fmt.Errorf("invalid request body: %w", err),
		}
	}
	return nil
}

// statusCode maps registry errors onto HTTP status codes.
func statusCode(err error) int {
	var reqErr *RequestError
	switch {
	case errors.As(err, &reqErr):
		return reqErr.StatusCode
	case errors.Is(err, interfaces.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, interfaces.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, interfaces.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, interfaces.ErrInvalidTransition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusCode(err)
	message := err.Error()
	if code == http.StatusInternalServerError {
		h.log.Error("Request failed", "err", err, "method", r.Method, "path", r.URL.Path)
		message = "internal server error"
	} else {
		h.log.Debug("Request rejected", "err", err, "status", code, "path", r.URL.Path)
	}
	h.writeJSON(w, code, api.ErrorResponse{Error: message})
}

func (h *Handler) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to encode response", "err", err)
	}
}
