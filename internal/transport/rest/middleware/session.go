package middleware

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"provsurvey/internal/cache"
	"provsurvey/internal/model"
	"provsurvey/internal/service"
)

// SessionCookie holds the signed session id
const SessionCookie = "survey_session"

// Session is the browser session of the current request
type Session struct {
	ID       string
	Position model.Position
}

// SessionMiddleware resolves the session cookie into a Position
type SessionMiddleware struct {
	authSvc *service.AuthService
	store   cache.SessionCache
	secure  bool
	log     *zap.Logger
}

func NewSessionMiddleware(authSvc *service.AuthService, store cache.SessionCache, secure bool, log *zap.Logger) *SessionMiddleware {
	if log == nil {
		log = zap.NewNop()
	}
	return &SessionMiddleware{authSvc: authSvc, store: store, secure: secure, log: log}
}

// Load attaches the session to the request context. A missing, forged or
// expired cookie starts a fresh session with an empty position. A cookie past
// half its lifetime is re-signed so active respondents keep their session.
func (m *SessionMiddleware) Load(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := &Session{}
		renewed := ""
		if c, err := r.Cookie(SessionCookie); err == nil {
			if sid, token, err := m.authSvc.RefreshSessionToken(c.Value); err == nil {
				sess.ID, renewed = sid, token
			}
		}

		if sess.ID != "" {
			if renewed != "" {
				m.setCookie(w, renewed)
			}
			pos, err := m.store.Get(r.Context(), sess.ID)
			if err != nil {
				m.log.Error("load session", zap.Error(err))
				http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
				return
			}
			if pos != nil {
				sess.Position = *pos
			}
		} else {
			sid, token, err := m.authSvc.IssueSessionToken()
			if err != nil {
				m.log.Error("issue session token", zap.Error(err))
				http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
				return
			}
			sess.ID = sid
			m.setCookie(w, token)
		}

		ctx := context.WithValue(r.Context(), SessionKey, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *SessionMiddleware) setCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.authSvc.SessionTTL().Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Save stores the position of sess
func (m *SessionMiddleware) Save(ctx context.Context, sess *Session) error {
	return m.store.Set(ctx, sess.ID, &sess.Position)
}

// GetSession extracts the session from context
func GetSession(ctx context.Context) *Session {
	if v := ctx.Value(SessionKey); v != nil {
		return v.(*Session)
	}
	return nil
}
