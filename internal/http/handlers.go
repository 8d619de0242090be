package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"shopmanager/internal/domain"
	"shopmanager/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
)

type Handler struct {
	svc      *service.Service
	validate *validator.Validate
}

func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc, validate: newValidator()}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type signupRequest struct {
	Name           string `json:"name" validate:"required"`
	Email          string `json:"email" validate:"required,email"`
	Password       string `json:"password" validate:"required,min=8"`
	InvitationCode string `json:"invitationCode" validate:"required"`
}

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.svc.Signup(r.Context(), service.SignupInput{
		Name:           req.Name,
		Email:          req.Email,
		Password:       req.Password,
		InvitationCode: req.InvitationCode,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	admin, err := h.svc.CurrentAdmin(r.Context(), currentActor(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"valid": true, "admin": admin})
}

type invitationRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (h *Handler) CreateInvitation(w http.ResponseWriter, r *http.Request) {
	var req invitationRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	inv, err := h.svc.CreateInvitation(r.Context(), currentActor(r), req.Email)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

func (h *Handler) ListAdmins(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListAdmins(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

type createAdminRequest struct {
	Name        string             `json:"name" validate:"required"`
	Email       string             `json:"email" validate:"required,email"`
	Password    string             `json:"password" validate:"required,min=8"`
	Role        string             `json:"role" validate:"omitempty,oneof=admin superadmin"`
	Address     string             `json:"address"`
	Permissions domain.Permissions `json:"permissions"`
}

func (h *Handler) CreateAdmin(w http.ResponseWriter, r *http.Request) {
	var req createAdminRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	admin, err := h.svc.CreateAdmin(r.Context(), currentActor(r), service.AdminInput{
		Name:        req.Name,
		Email:       req.Email,
		Password:    req.Password,
		Role:        req.Role,
		Address:     req.Address,
		Permissions: req.Permissions,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, admin)
}

func (h *Handler) GetAdmin(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	admin, err := h.svc.GetAdmin(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, admin)
}

type updateAdminRequest struct {
	Name        *string             `json:"name" validate:"omitempty,min=1"`
	Address     *string             `json:"address"`
	Role        *string             `json:"role" validate:"omitempty,oneof=admin superadmin"`
	Permissions *domain.Permissions `json:"permissions"`
	Password    *string             `json:"password" validate:"omitempty,min=8"`
}

func (h *Handler) UpdateAdmin(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req updateAdminRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	admin, err := h.svc.UpdateAdmin(r.Context(), currentActor(r), id, service.AdminPatch{
		Name:        req.Name,
		Address:     req.Address,
		Role:        req.Role,
		Permissions: req.Permissions,
		Password:    req.Password,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, admin)
}

func (h *Handler) DeleteAdmin(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.svc.DeleteAdmin(r.Context(), currentActor(r), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListActions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, err := parseOptionalInt(query.Get("limit"), 50)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := parseOptionalInt(query.Get("offset"), 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	items, err := h.svc.ListActions(r.Context(), limit, offset, query.Get("search"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func (h *Handler) CountActions(w http.ResponseWriter, r *http.Request) {
	count, err := h.svc.CountActions(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": count})
}

func currentActor(r *http.Request) domain.Actor {
	actor, _ := actorFrom(r.Context())
	return actor
}

// decode reads a JSON body into out and checks its validate tags.
func (h *Handler) decode(r *http.Request, out any) error {
	if err := decodeJSON(r, out); err != nil {
		return err
	}
	if err := h.validate.Struct(out); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return errors.New(describeFieldError(fieldErrs[0]))
		}
		return fmt.Errorf("invalid request body")
	}
	return nil
}

func describeFieldError(fe validator.FieldError) string {
	field := fe.Namespace()
	if idx := strings.Index(field, "."); idx >= 0 {
		field = field[idx+1:]
	}
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "required_without":
		return field + " or " + strings.ToLower(fe.Param()) + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	}
	return field + " is invalid"
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func parseOptionalInt(raw string, defaultValue int) (int, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid integer: %s", raw)
	}
	if parsed < 0 {
		return 0, fmt.Errorf("value cannot be negative")
	}
	return parsed, nil
}

func parseOptionalTime(raw string) (*time.Time, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return &parsed, nil
		}
	}
	return nil, fmt.Errorf("invalid time: %s", raw)
}

func parseOptionalInt64(raw string) (*int64, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil || parsed <= 0 {
		return nil, fmt.Errorf("invalid id value: %s", raw)
	}
	return &parsed, nil
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id")
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

// writeServiceError maps domain errors to status codes. Anything
// unrecognised is logged and reported as a generic 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var stockErr *domain.InsufficientStockError
	switch {
	case errors.As(err, &stockErr):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":      stockErr.Error(),
			"product_id": stockErr.ProductID,
			"available":  stockErr.Available,
			"requested":  stockErr.Requested,
		})
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	default:
		log.Printf("[%s] %s %s: %v", middleware.GetReqID(r.Context()), r.Method, r.URL.Path, err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
