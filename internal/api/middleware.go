package api

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"slices"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/oseayemenre/novelnest/internal/auth"
	"github.com/oseayemenre/novelnest/internal/models"
	"github.com/oseayemenre/novelnest/internal/reader"
)

type contextKey string

const (
	readerKey contextKey = "reader"
	userKey   contextKey = "user"

	deviceIDKey = "device_id"
)

var (
	errSignInRequired   = errors.New("sign in required")
	errPermissionDenied = errors.New("role does not have permission to access this route")
	errRetry            = errors.New("something went wrong, please try again")
)

type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func newResponseWriterWrapper(w http.ResponseWriter) *responseWriterWrapper {
	return &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}
}

func (w *responseWriterWrapper) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades pass through the logger.
func (w *responseWriterWrapper) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	w.statusCode = http.StatusSwitchingProtocols
	return http.NewResponseController(w.ResponseWriter).Hijack()
}

func (w *responseWriterWrapper) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (a *Api) LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := newResponseWriterWrapper(w)

		next.ServeHTTP(ww, r)

		duration := time.Since(start)

		a.logger.Info(
			"request",
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("method", r.Method),
			slog.String("path", r.URL.String()),
			slog.Int("status", ww.statusCode),
			slog.String("duration", duration.String()),
			slog.String("remote_addr", r.RemoteAddr),
			slog.String("user_agent", r.UserAgent()),
		)
	})
}

// Recoverer answers a panicking request with a retry prompt.
func (a *Api) Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			a.logger.Error(fmt.Sprintf("panic: %v", rec), "service", "Recoverer", "request_id", middleware.GetReqID(r.Context()), "stack", string(debug.Stack()))
			respondWithError(w, http.StatusInternalServerError, errRetry)
		}()

		next.ServeHTTP(w, r)
	})
}

// DeviceSession resolves the reader session for the device cookie, creating
// the cookie on first contact, and keeps the session bound to the user named
// by the access token.
func (a *Api) DeviceSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := a.cookieStore.Get(r, auth.SessionName)
		if err != nil {
			a.logger.Debug(fmt.Sprintf("discarding device session: %v", err), "service", "DeviceSession")
		}

		deviceID, _ := cookie.Values[deviceIDKey].(string)
		if deviceID == "" {
			deviceID = uuid.NewString()
			cookie.Values[deviceIDKey] = deviceID
			if err := cookie.Save(r, w); err != nil {
				a.logger.Error(fmt.Sprintf("error saving device session: %v", err), "service", "DeviceSession")
				respondWithError(w, http.StatusInternalServerError, fmt.Errorf("error saving device session: %v", err))
				return
			}
		}

		session := a.sessions.Session(deviceID)

		userID := ""
		if token, err := r.Cookie(auth.AccessTokenCookie); err == nil {
			if id, err := auth.DecodeJWTToken(token.Value, a.config.JwtSecret); err == nil {
				userID = id
			}
		}

		if err := session.Attach(r.Context(), userID); err != nil {
			a.logger.Warn(err.Error(), "service", "DeviceSession", "user", userID)
		}

		ctx := context.WithValue(r.Context(), readerKey, session)
		if userID != "" {
			ctx = context.WithValue(ctx, userKey, userID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func readerFrom(r *http.Request) *reader.Session {
	return r.Context().Value(readerKey).(*reader.Session)
}

func userIDFrom(r *http.Request) string {
	id, _ := r.Context().Value(userKey).(string)
	return id
}

func (a *Api) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userIDFrom(r) == "" {
			a.logger.Warn(errSignInRequired.Error(), "status", "permission denied")
			respondWithError(w, http.StatusUnauthorized, errSignInRequired)
			return
		}
		next.ServeHTTP(w, r)
	})
}

const (
	PermissionCreateNovels  = "novels:create"
	PermissionPublishNovels = "novels:publish"
	PermissionDeleteNovels  = "novels:delete"
	PermissionAddChapters   = "chapters:create"
	PermissionViewDrafts    = "novels:drafts"
)

var rolePermissions = map[string][]string{
	models.RoleEditor: {
		PermissionCreateNovels,
		PermissionPublishNovels,
		PermissionAddChapters,
		PermissionViewDrafts,
	},
	models.RoleAdmin: {
		PermissionCreateNovels,
		PermissionPublishNovels,
		PermissionAddChapters,
		PermissionViewDrafts,
		PermissionDeleteNovels,
	},
}

func hasPermission(role string, permissions ...string) bool {
	for _, perm := range permissions {
		if slices.Contains(rolePermissions[role], perm) {
			return true
		}
	}
	return false
}

func (a *Api) CheckPermission(permissions ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := userIDFrom(r)
			if id == "" {
				a.logger.Warn(errSignInRequired.Error(), "status", "permission denied")
				respondWithError(w, http.StatusUnauthorized, errSignInRequired)
				return
			}

			user, err := a.auth.GetUser(r.Context(), id)
			if err != nil {
				if errors.Is(err, auth.ErrUserNotFound) {
					a.logger.Warn(err.Error(), "service", "middleware")
					respondWithError(w, http.StatusNotFound, err)
					return
				}
				a.logger.Error(err.Error(), "service", "middleware")
				respondWithError(w, http.StatusInternalServerError, err)
				return
			}

			if !hasPermission(user.Role, permissions...) {
				a.logger.Warn(errPermissionDenied.Error(), "status", "permission denied")
				respondWithError(w, http.StatusForbidden, errPermissionDenied)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// canViewDrafts reports whether the signed-in user may see unpublished
// novels. Lookup failures count as no.
func (a *Api) canViewDrafts(r *http.Request) bool {
	id := userIDFrom(r)
	if id == "" {
		return false
	}
	user, err := a.auth.GetUser(r.Context(), id)
	if err != nil {
		return false
	}
	return hasPermission(user.Role, PermissionViewDrafts)
}
