package middleware

import (
	"context"
	"log/slog"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"games_catalog/internal/identity"
)

type SessionReader interface {
	FromRequest(r *http.Request) (identity.Identity, error)
}

// UserChecker reports whether a session's account still exists.
type UserChecker interface {
	UserExists(ctx context.Context, id int64) (bool, error)
}

// Session resolves the session cookie into an identity and stores it in the
// request context. A bad cookie, or one whose account is gone, leaves the
// request anonymous. users may be nil to trust every valid cookie.
func Session(sessions SessionReader, users UserChecker, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := sessions.FromRequest(r)
			if err != nil {
				log.Debug("ignoring invalid session",
					slog.String("request_id", chimw.GetReqID(r.Context())),
					slog.String("error", err.Error()),
				)
				id = identity.Identity{}
			}

			if !id.Anonymous() && users != nil {
				exists, err := users.UserExists(r.Context(), id.UserID)
				switch {
				case err != nil:
					log.Warn("session user check failed",
						slog.String("request_id", chimw.GetReqID(r.Context())),
						slog.Int64("user_id", id.UserID),
						slog.String("error", err.Error()),
					)
					id = identity.Identity{}
				case !exists:
					log.Debug("ignoring session of deleted user",
						slog.String("request_id", chimw.GetReqID(r.Context())),
						slog.Int64("user_id", id.UserID),
					)
					id = identity.Identity{}
				}
			}

			ctx := identity.WithIdentity(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
