package user

import (
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-social/internal/apperror"
	"github.com/ovaphlow/pitchfork/service-social/internal/auth"
)

// Handler exposes the auth and user endpoints.
type Handler struct {
	svc    *UserService
	logger *zap.SugaredLogger
}

func NewHandler(svc *UserService, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// CredentialsRequest is the body of both signup and login.
type CredentialsRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=72"`
}

// ProfileRequest is a partial update; absent fields keep their value.
type ProfileRequest struct {
	FirstName *string `json:"first_name" validate:"omitempty,max=150"`
	LastName  *string `json:"last_name" validate:"omitempty,max=150"`
}

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := apperror.DecodeJSON(r, &req); err != nil {
		apperror.Write(w, h.logger, err)
		return
	}
	u, pair, err := h.svc.Signup(r.Context(), req.Email, req.Password, clientIP(r))
	if err != nil {
		apperror.Write(w, h.logger, err)
		return
	}
	h.logger.Infow("user signed up", "user_id", u.ID)
	auth.SetTokenHeaders(w.Header(), pair)
	apperror.WriteJSON(w, http.StatusCreated, h.svc.PrivateView(r.Context(), u))
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := apperror.DecodeJSON(r, &req); err != nil {
		apperror.Write(w, h.logger, err)
		return
	}
	u, pair, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		apperror.Write(w, h.logger, err)
		return
	}
	auth.SetTokenHeaders(w.Header(), pair)
	apperror.WriteJSON(w, http.StatusOK, h.svc.PrivateView(r.Context(), u))
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := auth.RequireIdentity(r.Context())
	if err != nil {
		apperror.Write(w, h.logger, err)
		return
	}
	apperror.WriteJSON(w, http.StatusOK, h.svc.PrivateView(r.Context(), u))
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.RequireIdentity(r.Context())
	if err != nil {
		apperror.Write(w, h.logger, err)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		apperror.Write(w, h.logger, apperror.NotFound(""))
		return
	}
	target, err := h.svc.AuthorizeProfileWrite(r.Context(), identity, id)
	if err != nil {
		apperror.Write(w, h.logger, err)
		return
	}
	var req ProfileRequest
	if err := apperror.DecodeJSON(r, &req); err != nil {
		apperror.Write(w, h.logger, err)
		return
	}
	u, err := h.svc.UpdateProfile(r.Context(), target, req.FirstName, req.LastName)
	if err != nil {
		apperror.Write(w, h.logger, err)
		return
	}
	apperror.WriteJSON(w, http.StatusOK, h.svc.PrivateView(r.Context(), u))
}

// clientIP strips the port from RemoteAddr, which chi's RealIP middleware
// may already have replaced with a bare address.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
