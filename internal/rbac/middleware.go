package rbac

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/backlot-hq/backlot/internal/shared"
)

// Decision outcomes recorded against the metrics recorder.
const (
	DecisionAllow           = "allow"
	DecisionDeny            = "deny"
	DecisionUnauthenticated = "unauthenticated"
	DecisionError           = "error"
)

// Recorder receives authorization decision outcomes for ops tooling. A nil
// recorder is valid and records nothing.
type Recorder interface {
	AuthzDecision(outcome string)
}

// ScopeExtractor derives the scope for a permission check from the request.
type ScopeExtractor func(r *http.Request) (Scope, error)

// GlobalOnly is the extractor for unscoped checks.
func GlobalOnly() ScopeExtractor {
	return func(*http.Request) (Scope, error) { return NoScope(), nil }
}

// TeamScopeParam reads a team id from a chi URL parameter.
func TeamScopeParam(param string) ScopeExtractor {
	return func(r *http.Request) (Scope, error) {
		id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
		if err != nil {
			return NoScope(), err
		}
		return TeamScope(id), nil
	}
}

// ChannelScopeParam reads a channel id from a chi URL parameter.
func ChannelScopeParam(param string) ScopeExtractor {
	return func(r *http.Request) (Scope, error) {
		id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
		if err != nil {
			return NoScope(), err
		}
		return ChannelScope(id), nil
	}
}

// Middleware is the authorization guard: the single entry point request
// handlers use. It authenticates via the session, then authorizes via the
// evaluator. Unauthenticated (401) and unauthorized (403) are kept distinct,
// and a store failure surfaces as 500 rather than either.
type Middleware struct {
	Evaluator *Evaluator
	Logger    *slog.Logger
	Metrics   Recorder
}

// RequireAuth ensures the request carries an authenticated session and
// attaches the principal to the request context.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := m.authenticate(r)
		if !ok {
			m.record(DecisionUnauthenticated)
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
	})
}

// RequirePermission authenticates, derives the scope from the request, and
// authorizes the named permission. Evaluation is always fresh per request.
func (m Middleware) RequirePermission(permission string, scope ScopeExtractor) func(http.Handler) http.Handler {
	if scope == nil {
		scope = GlobalOnly()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := m.authenticate(r)
			if !ok {
				m.record(DecisionUnauthenticated)
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			sc, err := scope(r)
			if err != nil {
				m.record(DecisionDeny)
				http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
				return
			}
			allowed, err := m.Evaluator.Can(r.Context(), principal.UserID, permission, sc)
			if err != nil {
				m.record(DecisionError)
				if m.Logger != nil {
					m.Logger.Error("rbac require permission", slog.String("permission", permission), slog.Any("error", err))
				}
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if !allowed {
				m.record(DecisionDeny)
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			m.record(DecisionAllow)
			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
		})
	}
}

// RequireAny ensures the current user holds at least one of the required
// permissions globally.
func (m Middleware) RequireAny(perms ...string) func(http.Handler) http.Handler {
	normalized := normalizePermissions(perms)
	return m.requireGlobal(normalized, hasAnyPermission)
}

// RequireAll ensures the current user holds all required permissions globally.
func (m Middleware) RequireAll(perms ...string) func(http.Handler) http.Handler {
	normalized := normalizePermissions(perms)
	return m.requireGlobal(normalized, hasAllPermissions)
}

func (m Middleware) requireGlobal(required []string, match func(granted, required []string) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(required) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			principal, ok := m.authenticate(r)
			if !ok {
				m.record(DecisionUnauthenticated)
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			granted, err := m.Evaluator.GlobalPermissions(r.Context(), principal.UserID)
			if err != nil {
				m.record(DecisionError)
				if m.Logger != nil {
					m.Logger.Error("rbac global permissions", slog.Any("error", err))
				}
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if !match(granted, required) {
				m.record(DecisionDeny)
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			m.record(DecisionAllow)
			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
		})
	}
}

func (m Middleware) authenticate(r *http.Request) (Principal, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return Principal{}, false
	}
	raw := strings.TrimSpace(sess.User())
	if raw == "" {
		return Principal{}, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Error("rbac parse user id", slog.String("value", raw))
		}
		return Principal{}, false
	}
	return Principal{UserID: id, SessionID: sess.ID}, true
}

func (m Middleware) record(outcome string) {
	if m.Metrics != nil {
		m.Metrics.AuthzDecision(outcome)
	}
}

func normalizePermissions(perms []string) []string {
	unique := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		p = strings.TrimSpace(strings.ToLower(p))
		if p == "" {
			continue
		}
		unique[p] = struct{}{}
	}
	normalized := make([]string, 0, len(unique))
	for p := range unique {
		normalized = append(normalized, p)
	}
	return normalized
}

func hasAnyPermission(granted []string, required []string) bool {
	if len(required) == 0 {
		return true
	}
	set := make(map[string]struct{}, len(granted))
	for _, p := range granted {
		set[strings.ToLower(p)] = struct{}{}
	}
	for _, r := range required {
		if _, ok := set[r]; ok {
			return true
		}
	}
	return false
}

func hasAllPermissions(granted []string, required []string) bool {
	if len(required) == 0 {
		return true
	}
	set := make(map[string]struct{}, len(granted))
	for _, p := range granted {
		set[strings.ToLower(p)] = struct{}{}
	}
	for _, r := range required {
		if _, ok := set[r]; !ok {
			return false
		}
	}
	return true
}
