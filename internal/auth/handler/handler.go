package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"grievance/internal/auth/models"
	"grievance/internal/auth/service"
	"grievance/pkg/platform/httputil"
	"grievance/pkg/requestcontext"
)

type Service interface {
	Register(ctx context.Context, cmd service.RegisterCommand) (*models.PendingRegistration, error)
	ResendVerification(ctx context.Context, email string) (*models.PendingRegistration, error)
	VerifyEmail(ctx context.Context, email, code string) (*service.AuthResult, error)
	Login(ctx context.Context, email, password string) (*service.AuthResult, error)
	AdminLogin(ctx context.Context, email, password string) (*service.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error)
	Logout(ctx context.Context) error
	LogoutAll(ctx context.Context) (int, error)
	Me(ctx context.Context) (*models.User, error)
	RegisterPushToken(ctx context.Context, token string) error
	RemovePushToken(ctx context.Context) error
	SendTestPush(ctx context.Context) error
}

type Handler struct {
	service Service
	logger  *slog.Logger
	limiter httputil.Limiter
}

// New builds the auth handler. limiter may be httputil.NoLimit.
func New(service Service, logger *slog.Logger, limiter httputil.Limiter) *Handler {
	if limiter == nil {
		limiter = httputil.NoLimit{}
	}
	return &Handler{service: service, logger: logger, limiter: limiter}
}

// RegisterPublic mounts the unauthenticated auth endpoints.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.With(h.limiter.Limit("register")).Post("/auth/register", h.HandleRegister)
	r.With(h.limiter.Limit("email-verification")).Post("/auth/verify-email", h.HandleVerifyEmail)
	r.With(h.limiter.Limit("email-verification")).Post("/auth/resend-verification", h.HandleResendVerification)
	r.With(h.limiter.Limit("login")).Post("/auth/login", h.HandleLogin)
	r.With(h.limiter.Limit("api")).Post("/auth/refresh", h.HandleRefresh)
}

// RegisterAuthenticated mounts endpoints for any logged in user. Callers apply auth.
func (h *Handler) RegisterAuthenticated(r chi.Router) {
	r.Post("/auth/logout", h.HandleLogout)
	r.Post("/auth/logout-all", h.HandleLogoutAll)
	r.Get("/auth/me", h.HandleMe)
	r.With(h.limiter.Limit("fcm-register")).Post("/fcm-token", h.HandleRegisterPushToken)
	r.Delete("/fcm-token", h.HandleRemovePushToken)
	r.With(h.limiter.Limit("fcm-register")).Post("/fcm-token/test", h.HandleTestPush)
}

// RegisterAdminPublic mounts the admin login, which needs no token.
func (h *Handler) RegisterAdminPublic(r chi.Router) {
	r.With(h.limiter.Limit("login")).Post("/auth/login", h.HandleAdminLogin)
}

// RegisterAdmin mounts admin session endpoints. Callers apply auth and the admin guard.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/auth/logout", h.HandleLogout)
	r.Get("/auth/me", h.HandleMe)
}

// HandleRegister handles POST /auth/register requests.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[RegisterRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	p, err := h.service.Register(ctx, service.RegisterCommand{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
		Password:  req.Password,
	})
	if err != nil {
		h.fail(w, r, "registration failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, RegisterResponse{
		Message:          "Registration successful! A 6-digit verification code has been sent to your email.",
		Email:            p.Email,
		ExpiresInMinutes: minutesUntil(ctx, p.ExpiresAt),
	})
}

func (h *Handler) HandleResendVerification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[ResendVerificationRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	p, err := h.service.ResendVerification(ctx, req.Email)
	if err != nil {
		h.fail(w, r, "resend verification failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, RegisterResponse{
		Message:          "A new verification code has been sent to your email.",
		Email:            p.Email,
		ExpiresInMinutes: minutesUntil(ctx, p.ExpiresAt),
	})
}

// HandleVerifyEmail handles POST /auth/verify-email requests.
func (h *Handler) HandleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[VerifyEmailRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	result, err := h.service.VerifyEmail(ctx, req.Email, req.Code)
	if err != nil {
		h.fail(w, r, "email verification failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, AuthResponse{
		Message: "Email verified successfully!",
		User:    ToUserResponse(result.User),
		Tokens:  toTokens(result.Tokens),
	})
}

// HandleLogin handles POST /auth/login requests.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, h.service.Login)
}

// HandleAdminLogin handles POST /admin/auth/login requests.
func (h *Handler) HandleAdminLogin(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, h.service.AdminLogin)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, email, password string) (*service.AuthResult, error)) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[LoginRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	result, err := fn(ctx, req.Email, req.Password)
	if err != nil {
		h.fail(w, r, "login failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, AuthResponse{
		Message: "Login successful",
		User:    ToUserResponse(result.User),
		Tokens:  toTokens(result.Tokens),
	})
}

// HandleRefresh handles POST /auth/refresh requests.
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[RefreshRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	pair, err := h.service.Refresh(ctx, req.RefreshToken)
	if err != nil {
		h.fail(w, r, "token refresh failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"tokens": toTokens(*pair)})
}

// HandleLogout handles POST /auth/logout requests.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context()); err != nil {
		h.fail(w, r, "logout failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "Successfully logged out"})
}

func (h *Handler) HandleLogoutAll(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.LogoutAll(r.Context())
	if err != nil {
		h.fail(w, r, "logout all failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"message":        "Successfully logged out from all devices",
		"revoked_tokens": n,
	})
}

func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.Me(r.Context())
	if err != nil {
		h.fail(w, r, "failed to load profile", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"user": ToUserResponse(u)})
}

// HandleRegisterPushToken handles POST /fcm-token requests.
func (h *Handler) HandleRegisterPushToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[PushTokenRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	if err := h.service.RegisterPushToken(ctx, req.FCMToken); err != nil {
		h.fail(w, r, "failed to register push token", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "FCM token registered successfully"})
}

func (h *Handler) HandleRemovePushToken(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RemovePushToken(r.Context()); err != nil {
		h.fail(w, r, "failed to remove push token", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "FCM token removed successfully"})
}

func (h *Handler) HandleTestPush(w http.ResponseWriter, r *http.Request) {
	if err := h.service.SendTestPush(r.Context()); err != nil {
		h.fail(w, r, "test push failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "Test notification sent"})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	h.logger.WarnContext(ctx, msg,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
	httputil.WriteError(w, err)
}

func minutesUntil(ctx context.Context, t time.Time) int {
	return int(t.Sub(requestcontext.Now(ctx)).Round(time.Minute).Minutes())
}
