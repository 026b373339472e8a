package auth_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/backlot-hq/backlot/internal/auth"
	"github.com/backlot-hq/backlot/internal/shared"
	_ "github.com/backlot-hq/backlot/testing"
)

type stubRepo struct {
	user            *auth.User
	createdSessions []string
	deletedSessions []string
	pruned          time.Time
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	if s.user == nil || s.user.Email != email {
		return nil, shared.ErrInvalidCredentials
	}
	return s.user, nil
}

func (s *stubRepo) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	s.createdSessions = append(s.createdSessions, id)
	return nil
}

func (s *stubRepo) DeleteSession(ctx context.Context, id string) error {
	s.deletedSessions = append(s.deletedSessions, id)
	return nil
}

func (s *stubRepo) DeleteExpiredSessions(ctx context.Context, before time.Time) (int64, error) {
	s.pruned = before
	return 3, nil
}

func newAuthRouter(t *testing.T, repo auth.Repository) (chi.Router, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	csrfManager := shared.NewCSRFManager("csrfsecret")
	handler := auth.NewHandler(slog.Default(), auth.NewService(repo), sessionManager, csrfManager)

	r := chi.NewRouter()
	r.Route("/auth", handler.MountRoutes)
	return r, sessionManager
}

func withSession(t *testing.T, sm *shared.SessionManager, req *http.Request) (*http.Request, *shared.Session) {
	t.Helper()
	sess, err := sm.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	return req.WithContext(shared.ContextWithSession(req.Context(), sess)), sess
}

func activeUser(t *testing.T, password string) *auth.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return &auth.User{
		ID:           42,
		Email:        "editor@backlot.local",
		Username:     "editor",
		PasswordHash: string(hash),
		IsActive:     true,
	}
}

func TestLoginSuccess(t *testing.T) {
	repo := &stubRepo{user: activeUser(t, "correct-horse")}
	router, sm := newAuthRouter(t, repo)

	body := `{"email":"editor@backlot.local","password":"correct-horse"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req, sess := withSession(t, sm, req)

	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var payload struct {
		UserID    int64  `json:"user_id"`
		Email     string `json:"email"`
		Username  string `json:"username"`
		CSRFToken string `json:"csrf_token"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.UserID != 42 || payload.Username != "editor" {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if payload.CSRFToken == "" {
		t.Fatalf("expected csrf token in response")
	}
	if sess.User() != "42" {
		t.Fatalf("expected session bound to user 42, got %q", sess.User())
	}
	if len(repo.createdSessions) != 1 || repo.createdSessions[0] != sess.ID {
		t.Fatalf("expected persisted session record for %s, got %v", sess.ID, repo.createdSessions)
	}
}

type failingCSRF struct{}

func (failingCSRF) EnsureToken(context.Context, *shared.Session) (string, error) {
	return "", errors.New("token store unavailable")
}

func TestLoginFailsWhenCSRFTokenCannotBeIssued(t *testing.T) {
	repo := &stubRepo{user: activeUser(t, "correct-horse")}
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sm := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	handler := auth.NewHandler(slog.Default(), auth.NewService(repo), sm, failingCSRF{})

	router := chi.NewRouter()
	router.Route("/auth", handler.MountRoutes)

	body := `{"email":"editor@backlot.local","password":"correct-horse"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req, _ = withSession(t, sm, req)

	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 when token issue fails, got %d", res.Code)
	}
	if strings.Contains(res.Body.String(), "csrf_token") {
		t.Fatalf("login payload must not be returned without a token")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	repo := &stubRepo{user: activeUser(t, "correct-horse")}
	router, sm := newAuthRouter(t, repo)

	body := `{"email":"editor@backlot.local","password":"wrong-password"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req, sess := withSession(t, sm, req)

	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if sess.User() != "" {
		t.Fatalf("failed login must not bind a user")
	}
}

func TestLoginInactiveUser(t *testing.T) {
	user := activeUser(t, "correct-horse")
	user.IsActive = false
	router, sm := newAuthRouter(t, &stubRepo{user: user})

	body := `{"email":"editor@backlot.local","password":"correct-horse"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req, _ = withSession(t, sm, req)

	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("inactive account: expected 400, got %d", res.Code)
	}
}

func TestLoginValidation(t *testing.T) {
	router, sm := newAuthRouter(t, &stubRepo{})

	body := `{"email":"not-an-email","password":"x"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req, _ = withSession(t, sm, req)

	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestLogoutDestroysSession(t *testing.T) {
	repo := &stubRepo{}
	router, sm := newAuthRouter(t, repo)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req, sess := withSession(t, sm, req)
	sess.SetUser("42")

	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	if res.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", res.Code)
	}
	if len(repo.deletedSessions) != 1 || repo.deletedSessions[0] != sess.ID {
		t.Fatalf("expected session record removed, got %v", repo.deletedSessions)
	}
}

func TestPruneSessions(t *testing.T) {
	repo := &stubRepo{}
	svc := auth.NewService(repo)

	cutoff := time.Now().Add(-time.Hour)
	removed, err := svc.PruneSessions(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("prune sessions: %v", err)
	}
	if removed != 3 {
		t.Fatalf("expected 3 removed, got %d", removed)
	}
	if !repo.pruned.Equal(cutoff) {
		t.Fatalf("expected cutoff %v, got %v", cutoff, repo.pruned)
	}
}
