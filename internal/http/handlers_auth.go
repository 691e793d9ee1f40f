package http

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"bizdash/internal/log"
	"bizdash/internal/session"
)

// SessionCookie is the name of the cookie carrying the session token.
const SessionCookie = "bizdash_session"

type loginView struct {
	chrome
	Next     string
	Username string
	Error    string
}

// safeNext only allows local absolute paths as a post-login redirect.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	s.views.page(w, r, http.StatusOK, "login.html", loginView{chrome: chrome{Title: "Sign in"}, Next: safeNext(r.URL.Query().Get("next"))})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}
	username := sanitizeInput(r.PostForm.Get("username"))
	password := r.PostForm.Get("password")
	view := loginView{chrome: chrome{Title: "Sign in"}, Next: safeNext(r.PostForm.Get("next")), Username: username}

	ctx, cancel := remoteContext(r)
	defer cancel()
	logger := log.FromContext(ctx)

	u, err := s.deps.Auth.Authenticate(ctx, username, password)
	switch {
	case errors.Is(err, session.ErrInvalidCredentials), errors.Is(err, session.ErrInactiveUser):
		logger.WarnContext(ctx, "Login rejected", log.FieldUser, username, log.FieldOperation, log.OpLogin,
			log.FieldError, err, log.FieldErrorType, log.ErrorTypeAuth)
		view.Error = "Wrong username or password."
		if errors.Is(err, session.ErrInactiveUser) {
			view.Error = "This account is disabled."
		}
		s.views.page(w, r, http.StatusUnauthorized, "login.html", view)
		return
	case err != nil:
		logger.ErrorContext(ctx, "Login lookup failed", log.FieldError, err, log.FieldErrorType, log.ErrorTypeRemote)
		view.Error = "The user directory is unavailable. Try again later."
		s.views.page(w, r, http.StatusBadGateway, "login.html", view)
		return
	}

	sess, err := s.deps.Sessions.Init(ctx, u)
	if err != nil {
		logger.ErrorContext(ctx, "Session init failed", log.FieldError, err)
		view.Error = "Could not start a session."
		s.views.page(w, r, http.StatusInternalServerError, "login.html", view)
		return
	}
	http.SetCookie(w, s.sessionCookie(sess.Token, sess.ExpiresAt))
	logger.InfoContext(ctx, "User signed in", log.FieldUser, u.Username, log.FieldOperation, log.OpLogin)
	http.Redirect(w, r, view.Next, http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(SessionCookie); err == nil {
		if err := s.deps.Sessions.Clear(r.Context(), c.Value); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Session clear failed", log.FieldError, err)
		}
	}
	expired := s.sessionCookie("", time.Unix(0, 0))
	expired.MaxAge = -1
	http.SetCookie(w, expired)
	s.redirect(w, r, "/login")
}

func (s *Server) sessionCookie(token string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   s.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

// requireSession loads the session named by the cookie into the request
// context, sending anonymous visitors to the login page.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var token string
		if c, err := r.Cookie(SessionCookie); err == nil {
			token = c.Value
		}
		sess, err := s.deps.Sessions.Read(r.Context(), token)
		if err != nil {
			if !errors.Is(err, session.ErrNoSession) && !errors.Is(err, session.ErrExpired) {
				log.FromContext(r.Context()).ErrorContext(r.Context(), "Session read failed", log.FieldError, err)
			}
			target := "/login"
			if r.Method == http.MethodGet && r.URL.Path != "/" {
				target += "?next=" + url.QueryEscape(r.URL.RequestURI())
			}
			s.redirect(w, r, target)
			return
		}

		ctx := session.NewContext(r.Context(), sess)
		ctx = log.NewContext(ctx, log.FromContext(ctx).With(log.FieldUser, sess.User.Username))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// redirect sends htmx requests an HX-Redirect so the whole page navigates.
func (s *Server) redirect(w http.ResponseWriter, r *http.Request, target string) {
	if isHTMX(r) {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// viewer returns the signed-in session. Only valid behind requireSession.
func viewer(r *http.Request) session.Session {
	sess, _ := session.FromContext(r.Context())
	return sess
}
