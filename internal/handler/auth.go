package handler

import (
	"errors"
	"net/http"

	"github.com/msomdec/quill/internal/domain"
	"github.com/msomdec/quill/internal/service"
	"github.com/msomdec/quill/internal/view"
)

const sessionCookieName = "auth_token"

// AuthHandler handles registration, login and logout.
type AuthHandler struct {
	auth         *service.AuthService
	cookieSecure bool
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(auth *service.AuthService, cookieSecure bool) *AuthHandler {
	return &AuthHandler{auth: auth, cookieSecure: cookieSecure}
}

// HandleLoginPage renders the login form.
// GET /login
func (h *AuthHandler) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	render(w, r, http.StatusOK, view.LoginPage(view.LoginData{Base: baseData(w, r)}))
}

// HandleLogin verifies credentials and starts a session.
// POST /login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	email := r.PostFormValue("email")

	user, err := h.auth.Authenticate(r.Context(), email, r.PostFormValue("password"))
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			render(w, r, http.StatusUnauthorized, view.LoginPage(view.LoginData{
				Base:  baseData(w, r),
				Email: email,
				Error: "Invalid email or password.",
			}))
			return
		}
		serverError(w, r, "login user", err)
		return
	}

	if err := h.startSession(w, user); err != nil {
		serverError(w, r, "issue session token", err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleRegisterPage renders the registration form.
// GET /register
func (h *AuthHandler) HandleRegisterPage(w http.ResponseWriter, r *http.Request) {
	render(w, r, http.StatusOK, view.RegisterPage(view.RegisterData{Base: baseData(w, r)}))
}

// HandleRegister creates an account and logs it in.
// POST /register
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	name := r.PostFormValue("name")
	email := r.PostFormValue("email")

	user, err := h.auth.Register(r.Context(), name, email, r.PostFormValue("password"))
	if err != nil {
		msg := ""
		switch {
		case errors.Is(err, domain.ErrDuplicateEmail):
			msg = "An account with that email already exists. Log in instead."
		case errors.Is(err, domain.ErrInvalidInput):
			msg = "Name, a valid email, and a password are required."
		default:
			serverError(w, r, "register user", err)
			return
		}
		render(w, r, http.StatusUnprocessableEntity, view.RegisterPage(view.RegisterData{
			Base:  baseData(w, r),
			Name:  name,
			Email: email,
			Error: msg,
		}))
		return
	}

	if err := h.startSession(w, user); err != nil {
		serverError(w, r, "issue session token", err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleLogout clears the session cookie, whether or not one was sent.
// Any method on /logout.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *AuthHandler) startSession(w http.ResponseWriter, user *domain.User) error {
	token, err := h.auth.IssueToken(user)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(service.SessionTTL.Seconds()),
	})
	return nil
}
