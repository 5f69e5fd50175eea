// AngelaMos | 2026
// handler.go

package auth

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

// RegisterRoutes mounts /auth. limiter guards the unauthenticated credential
// endpoints and may be nil.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, limiter func(http.Handler) http.Handler,
) {
	r.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if limiter != nil {
				r.Use(limiter)
			}
			r.Post("/login", h.Login)
			r.Post("/forgot-password", h.ForgotPassword)
			r.Post("/reset-password", h.ResetPassword)
		})

		r.Group(func(r chi.Router) {
			r.Use(authenticator)
			r.Post("/refresh", middleware.Authed(h.Refresh))
			r.Post("/logout", middleware.Authed(h.Logout))
			r.Post("/logout-all", middleware.Authed(h.LogoutAll))
			r.Get("/sessions", middleware.Authed(h.GetSessions))
			r.Delete("/sessions/{sessionID}", middleware.Authed(h.RevokeSession))
			r.Post("/change-password", middleware.Authed(h.ChangePassword))
		})
	})
}

func invalidCredentials() *core.AppError {
	return core.NewAppError(
		ErrInvalidCredentials,
		"invalid email or password",
		http.StatusBadRequest,
		"INVALID_CREDENTIALS",
	)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !core.DecodeAndValidate(w, r, h.validator, &req) {
		return
	}

	res, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			core.JSONError(w, invalidCredentials())
			return
		}
		writeStoreError(w, err)
		return
	}

	core.OK(w, ToLoginResponse(res))
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request, p middleware.Principal) {
	res, err := h.service.Refresh(r.Context(), &p)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	core.OK(w, ToLoginResponse(res))
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request, p middleware.Principal) {
	if err := h.service.Logout(r.Context(), &p); err != nil {
		writeStoreError(w, err)
		return
	}

	core.OK(w, nil)
}

func (h *Handler) LogoutAll(w http.ResponseWriter, r *http.Request, p middleware.Principal) {
	if err := h.service.LogoutAll(r.Context(), &p); err != nil {
		writeStoreError(w, err)
		return
	}

	core.OK(w, nil)
}

func (h *Handler) GetSessions(w http.ResponseWriter, r *http.Request, p middleware.Principal) {
	sessions, err := h.service.Sessions(r.Context(), &p)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.Unauthorized(w, "")
			return
		}
		writeStoreError(w, err)
		return
	}

	core.OK(w, SessionsResponse{Sessions: sessions})
}

func (h *Handler) RevokeSession(w http.ResponseWriter, r *http.Request, p middleware.Principal) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		core.BadRequest(w, "session ID required")
		return
	}

	if err := h.service.RevokeSession(r.Context(), &p, sessionID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "session")
			return
		}
		writeStoreError(w, err)
		return
	}

	core.OK(w, nil)
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request, p middleware.Principal) {
	var req ChangePasswordRequest
	if !core.DecodeAndValidate(w, r, h.validator, &req) {
		return
	}

	err := h.service.ChangePassword(r.Context(), &p, req.CurrentPassword, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			core.BadRequest(w, "current password is incorrect")
			return
		}
		writeStoreError(w, err)
		return
	}

	core.OK(w, nil)
}

func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if !core.DecodeAndValidate(w, r, h.validator, &req) {
		return
	}

	token, err := h.service.RequestReset(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, ErrNotificationFailed) {
			core.JSONError(w, core.ServiceUnavailableError("could not send the recovery email"))
			return
		}
		writeStoreError(w, err)
		return
	}

	var resp ForgotPasswordResponse
	if h.service.settings.ExposeResetToken {
		resp.Token = token
	}
	core.OK(w, resp)
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !core.DecodeAndValidate(w, r, h.validator, &req) {
		return
	}

	if err := h.service.PerformReset(r.Context(), req.Token, req.Password); err != nil {
		if errors.Is(err, ErrExpiredOrInvalidToken) {
			core.JSONError(w, core.NewAppError(
				err,
				"reset token is invalid or has expired",
				http.StatusBadRequest,
				"INVALID_RESET_TOKEN",
			))
			return
		}
		writeStoreError(w, err)
		return
	}

	core.OK(w, nil)
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotAuthenticated):
		core.Unauthorized(w, "")
	case errors.Is(err, core.ErrTransient):
		core.JSONError(w, core.ServiceUnavailableError("temporarily unavailable, try again"))
	default:
		core.InternalServerError(w, err)
	}
}
