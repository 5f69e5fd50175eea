// AngelaMos | 2026
// handler.go

package user

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/templates/go-auth-api/internal/core"
	"github.com/carterperez-dev/templates/go-auth-api/internal/middleware"
)

type Handler struct {
	service   *Service
	validator *validator.Validate
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: core.NewValidator(),
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, optionalAuth func(http.Handler) http.Handler,
) {
	r.Route("/user", func(r chi.Router) {
		r.With(optionalAuth).Post("/register", h.Register)
		r.With(authenticator).Get("/me", middleware.Authed(h.Me))
	})
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !core.DecodeAndValidate(w, r, h.validator, &req) {
		return
	}

	var actorRole string
	if p, ok := middleware.GetPrincipal(r.Context()); ok {
		actorRole = p.Role
	}

	u, err := h.service.Register(r.Context(), actorRole, req)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrDuplicateKey):
			core.JSONError(w, core.DuplicateError("email"))
		case errors.Is(err, core.ErrForbidden):
			core.Forbidden(w, "not allowed to create an account with this role")
		default:
			core.InternalServerError(w, err)
		}
		return
	}

	core.OK(w, ToUserResponse(u))
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request, p middleware.Principal) {
	payload, err := h.service.Me(r.Context(), p.UserID)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrNotFound), errors.Is(err, core.ErrUnauthorized):
			core.Unauthorized(w, "")
		default:
			core.InternalServerError(w, err)
		}
		return
	}

	core.OK(w, payload)
}
