package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tasklane/apiserver/internal/auth"
	"github.com/tasklane/apiserver/internal/services"
	"github.com/tasklane/apiserver/internal/store"
	"github.com/tasklane/apiserver/types"
)

// AuthHandler provides registration, token and identity endpoints.
type AuthHandler struct {
	authService *services.AuthService
	log         *slog.Logger
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(authService *services.AuthService, log *slog.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, log: log}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, authService *services.AuthService, log *slog.Logger) {
	handler := NewAuthHandler(authService, log)

	r.Post("/register/user", handler.RegisterUser)
	r.Post("/register/premium-user", handler.RegisterPremiumUser)
	r.Post("/token", handler.Token)
	r.With(handler.RequireUser).Get("/users/me", handler.Me)
}

// RequireUser resolves the bearer token to a user and injects it into the
// request context.
func (h *AuthHandler) RequireUser(next http.Handler) http.Handler {
	return RequireUser(h.authService, h.log)(next)
}

// RequireUser constructs auth middleware for other routers.
func RequireUser(authService *services.AuthService, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r)
			if err != nil {
				writeUnauthorized(w, "Not authenticated")
				return
			}

			user, err := authService.Authenticate(r.Context(), token)
			if err != nil {
				if errors.Is(err, services.ErrUnauthorized) {
					writeUnauthorized(w, "Invalid authentication credentials")
					return
				}
				log.ErrorContext(r.Context(), "failed to authenticate token", "error", err)
				writeError(w, http.StatusInternalServerError, "failed to authenticate")
				return
			}

			ctx := context.WithValue(r.Context(), contextUserKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RegisterUser creates a basic account.
func (h *AuthHandler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	h.register(w, r, h.authService.Register, "user created", http.StatusConflict, "The user already exists")
}

// RegisterPremiumUser creates a premium account.
func (h *AuthHandler) RegisterPremiumUser(w http.ResponseWriter, r *http.Request) {
	h.register(w, r, h.authService.RegisterPremium, "premium user created", http.StatusBadRequest, "Username or email already registered")
}

type registerFunc func(ctx context.Context, in services.RegisterInput) (types.User, error)

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request, fn registerFunc, message string, dupStatus int, dupMessage string) {
	var req RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := fn(r.Context(), services.RegisterInput{
		Username: req.Username,
		Password: req.Password,
		Email:    req.Email,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			writeError(w, dupStatus, dupMessage)
			return
		}
		if errors.Is(err, auth.ErrPasswordTooLong) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("password must be at most %d bytes", auth.MaxPasswordBytes))
			return
		}
		h.log.ErrorContext(r.Context(), "failed to register user", "username", req.Username, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	writeJSON(w, http.StatusCreated, RegisterResponse{Message: message, User: user.Public()})
}

// Token exchanges form-encoded credentials for a bearer token.
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	username := strings.TrimSpace(r.PostForm.Get("username"))
	password := r.PostForm.Get("password")
	if username == "" || password == "" {
		writeError(w, http.StatusBadRequest, "missing credentials")
		return
	}

	token, err := h.authService.Login(r.Context(), username, password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			writeUnauthorized(w, "Incorrect username or password")
			return
		}
		h.log.ErrorContext(r.Context(), "failed to issue token", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to authenticate")
		return
	}

	writeJSON(w, http.StatusOK, token)
}

// Me confirms the bearer token belongs to a live account.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "Invalid authentication credentials")
		return
	}

	writeJSON(w, http.StatusOK, MeResponse{Description: fmt.Sprintf("%s authorized.", user.Username)})
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required,max=50"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required"`
}

func (r *RegisterRequest) normalize() {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.TrimSpace(r.Email)
}

type RegisterResponse struct {
	Message string           `json:"message"`
	User    types.PublicUser `json:"user"`
}

type MeResponse struct {
	Description string `json:"description"`
}
