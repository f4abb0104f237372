package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tasklane/apiserver/internal/auth"
	"github.com/tasklane/apiserver/internal/events"
	"github.com/tasklane/apiserver/internal/logging"
	"github.com/tasklane/apiserver/internal/services"
	"github.com/tasklane/apiserver/internal/store"
	"github.com/tasklane/apiserver/types"
)

// memoryUsers enforces username and email uniqueness like the users table.
type memoryUsers struct {
	mu    sync.Mutex
	users []types.User
}

func (m *memoryUsers) Create(_ context.Context, user types.User) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return types.User{}, store.ErrDuplicate
		}
	}
	user.ID = len(m.users) + 1
	m.users = append(m.users, user)
	return user, nil
}

func (m *memoryUsers) GetByUsername(_ context.Context, username string) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Username == username {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (m *memoryUsers) GetByLogin(ctx context.Context, login string) (types.User, error) {
	if user, err := m.GetByUsername(ctx, login); err == nil {
		return user, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Email == login {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

type testAPI struct {
	router *chi.Mux
	tokens *auth.TokenService
	users  *memoryUsers
}

func newTestAPI(t *testing.T) testAPI {
	t.Helper()
	log := logging.Discard()
	bus := events.NewBus(events.NopBackend{}, "test", log)

	hasher := auth.NewBcryptHasher(bcrypt.MinCost)
	tokens, err := auth.NewTokenService("handler-secret", 0)
	require.NoError(t, err)

	userRepo := &memoryUsers{}
	users := services.NewUserService(userRepo, hasher)
	authService, err := services.NewAuthService(users, hasher, tokens, bus, log)
	require.NoError(t, err)

	taskRepo := store.NewTaskRepository(filepath.Join(t.TempDir(), "tasks.csv"))
	taskService := services.NewTaskService(taskRepo, bus, log)

	router := chi.NewRouter()
	router.Use(RequestLogger(log))
	router.Get("/", Root)
	router.Get("/healthz", Healthz)
	AuthRouter(router, authService, log)
	router.Route("/tasks", func(r chi.Router) {
		TaskRouter(r, taskService, log)
	})
	return testAPI{router: router, tokens: tokens, users: userRepo}
}

func (a testAPI) do(t *testing.T, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a testAPI) token(t *testing.T, username, password string) *httptest.ResponseRecorder {
	t.Helper()
	form := url.Values{"username": {username}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func bearer(token string) http.Header {
	return http.Header{"Authorization": {"Bearer " + token}}
}
