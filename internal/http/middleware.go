package http

import (
	"context"
	"log"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"shopmanager/internal/auth"
	"shopmanager/internal/domain"

	"github.com/go-chi/chi/v5/middleware"
)

type ctxKey int

const actorKey ctxKey = iota

func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.Printf("panic recovered [%s]: %v\n%s", middleware.GetReqID(r.Context()), rec, string(debug.Stack()))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func Logger(next http.Handler) http.Handler {
	return middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: log.New(log.Writer(), "http: ", log.LstdFlags), NoColor: true})(next)
}

func Timeout(d time.Duration) func(http.Handler) http.Handler {
	if d <= 0 {
		d = 60 * time.Second
	}
	return middleware.Timeout(d)
}

// CORS allows the listed origins, or any origin when the list contains "*".
func CORS(allowed []string) func(http.Handler) http.Handler {
	wildcard := false
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			wildcard = true
		}
		set[strings.TrimRight(origin, "/")] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				if _, ok := set[origin]; ok || wildcard {
					if wildcard {
						w.Header().Set("Access-Control-Allow-Origin", "*")
					} else {
						w.Header().Set("Access-Control-Allow-Origin", origin)
						w.Header().Add("Vary", "Origin")
					}
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
					w.Header().Set("Access-Control-Expose-Headers", "Content-Disposition, X-Request-Id")
				}
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AdminLoader resolves a token's actor to the admin as currently stored.
type AdminLoader interface {
	CurrentAdmin(ctx context.Context, actor domain.Actor) (domain.AdminUser, error)
}

// Authenticate rejects requests without a valid bearer token. The token only
// identifies the admin: role and permissions are reloaded on every request.
func Authenticate(tokens *auth.TokenManager, admins AdminLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := auth.BearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			claimed, err := tokens.Parse(raw)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			admin, err := admins.CurrentAdmin(r.Context(), claimed)
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey, admin.Actor())))
		})
	}
}

func RequirePermission(p domain.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := actorFrom(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			if !actor.Can(p) {
				writeError(w, http.StatusForbidden, "missing permission: "+string(p))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func RequireSuperAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if actor.Role != domain.RoleSuperAdmin {
			writeError(w, http.StatusForbidden, "superadmin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func actorFrom(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(domain.Actor)
	return actor, ok
}
