package post

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-social/internal/apperror"
	"github.com/ovaphlow/pitchfork/service-social/internal/auth"
	"github.com/ovaphlow/pitchfork/service-social/internal/post/entity"
	userentity "github.com/ovaphlow/pitchfork/service-social/internal/user/entity"
)

// Handler exposes the post feed, CRUD and like endpoints.
type Handler struct {
	svc    *PostService
	logger *zap.SugaredLogger
}

func NewHandler(svc *PostService, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

type MessageRequest struct {
	Message string `json:"message" validate:"required,max=2048"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	views, err := h.svc.List(r.Context())
	if err != nil {
		apperror.Write(w, h.logger, err)
		return
	}
	apperror.WriteJSON(w, http.StatusOK, views)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	v, err := h.svc.Get(r.Context(), id)
	if err != nil {
		apperror.Write(w, h.logger, err)
		return
	}
	apperror.WriteJSON(w, http.StatusOK, v)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.RequireIdentity(r.Context())
	if err != nil {
		apperror.Write(w, h.logger, err)
		return
	}
	var req MessageRequest
	if err := apperror.DecodeJSON(r, &req); err != nil {
		apperror.Write(w, h.logger, err)
		return
	}
	v, err := h.svc.Create(r.Context(), identity, req.Message)
	if err != nil {
		apperror.Write(w, h.logger, err)
		return
	}
	apperror.WriteJSON(w, http.StatusCreated, v)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.RequireIdentity(r.Context())
	if err != nil {
		apperror.Write(w, h.logger, err)
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	p, err := h.svc.AuthorizeWrite(r.Context(), identity, id)
	if err != nil {
		apperror.Write(w, h.logger, err)
		return
	}
	var req MessageRequest
	if err := apperror.DecodeJSON(r, &req); err != nil {
		apperror.Write(w, h.logger, err)
		return
	}
	v, err := h.svc.Update(r.Context(), identity, p, req.Message)
	if err != nil {
		apperror.Write(w, h.logger, err)
		return
	}
	apperror.WriteJSON(w, http.StatusOK, v)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.RequireIdentity(r.Context())
	if err != nil {
		apperror.Write(w, h.logger, err)
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), identity, id); err != nil {
		apperror.Write(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Like(w http.ResponseWriter, r *http.Request) {
	h.likeAction(w, r, h.svc.Like)
}

func (h *Handler) Unlike(w http.ResponseWriter, r *http.Request) {
	h.likeAction(w, r, h.svc.Unlike)
}

func (h *Handler) likeAction(w http.ResponseWriter, r *http.Request, action func(context.Context, *userentity.User, int64) (entity.PublicView, error)) {
	identity, err := auth.RequireIdentity(r.Context())
	if err != nil {
		apperror.Write(w, h.logger, err)
		return
	}
	raw := r.URL.Query().Get("id")
	if raw == "" {
		apperror.Write(w, h.logger, apperror.Field("id", "This field is required."))
		return
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		apperror.Write(w, h.logger, apperror.Field("id", "A valid integer is required."))
		return
	}
	v, err := action(r.Context(), identity, id)
	if err != nil {
		apperror.Write(w, h.logger, err)
		return
	}
	apperror.WriteJSON(w, http.StatusOK, v)
}

// pathID parses {id}; a non-numeric id cannot match any post.
func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		apperror.Write(w, h.logger, apperror.NotFound(""))
		return 0, false
	}
	return id, true
}
