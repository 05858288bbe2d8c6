package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/mindsight/journal/internal/services"
	"github.com/mindsight/journal/internal/session"
	"github.com/mindsight/journal/internal/store"
	"github.com/rs/zerolog"
)

// AuthHandler serves the register, login and logout pages.
type AuthHandler struct {
	userService *services.UserService
	sessions    *session.Manager
	view        *View
	logger      zerolog.Logger
}

func NewAuthHandler(userService *services.UserService, sessions *session.Manager, view *View, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		sessions:    sessions,
		view:        view,
		logger:      logger,
	}
}

// AuthRouter registers auth routes on the given router. limit, when set,
// throttles the credential-accepting POSTs.
func AuthRouter(r chi.Router, handler *AuthHandler, limit func(http.Handler) http.Handler) {
	r.Get("/register", handler.RegisterForm)
	r.Get("/login", handler.LoginForm)
	r.Get("/logout", handler.Logout)

	if limit != nil {
		r = r.With(limit)
	}
	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)
}

// LoadUser resolves the session's user on every request. An unknown or
// invalid session leaves the request anonymous.
func LoadUser(userService *services.UserService, sessions *session.Manager, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := sessions.UserID(r)
			if err != nil {
				if !errors.Is(err, session.ErrNoSession) {
					logger.Error().Err(err).Msg("load session")
				}
				next.ServeHTTP(w, r)
				return
			}

			user, err := userService.GetByID(r.Context(), userID)
			if err != nil {
				if !errors.Is(err, store.ErrNotFound) {
					logger.Error().Err(err).Int("user_id", userID).Msg("load session user")
				}
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
		})
	}
}

// RequireLogin redirects anonymous requests to the login page.
func RequireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := userFromContext(r.Context()); !ok {
			redirect(w, r, "/auth/login")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *AuthHandler) RegisterForm(w http.ResponseWriter, r *http.Request) {
	h.view.Render(w, r, http.StatusOK, pageRegister, pageData{})
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.view.Error(w, r, http.StatusBadRequest)
		return
	}
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")

	_, err := h.userService.Register(r.Context(), username, password)
	if err != nil {
		var validation *services.ValidationError
		switch {
		case errors.As(err, &validation):
			h.view.Render(w, r, http.StatusOK, pageRegister, pageData{Error: validation.Message, Username: username})
		case errors.Is(err, services.ErrUsernameTaken):
			message := fmt.Sprintf("User %s is already registered.", strings.TrimSpace(username))
			h.view.Render(w, r, http.StatusOK, pageRegister, pageData{Error: message, Username: username})
		default:
			h.logger.Error().Err(err).Msg("register user")
			h.view.Error(w, r, http.StatusInternalServerError)
		}
		return
	}

	redirect(w, r, "/auth/login")
}

func (h *AuthHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	h.view.Render(w, r, http.StatusOK, pageLogin, pageData{})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.view.Error(w, r, http.StatusBadRequest)
		return
	}
	username := r.PostFormValue("username")

	user, err := h.userService.Authenticate(r.Context(), username, r.PostFormValue("password"))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrIncorrectUsername):
			h.view.Render(w, r, http.StatusOK, pageLogin, pageData{Error: "Incorrect username.", Username: username})
		case errors.Is(err, services.ErrIncorrectPassword):
			h.view.Render(w, r, http.StatusOK, pageLogin, pageData{Error: "Incorrect password.", Username: username})
		default:
			h.logger.Error().Err(err).Msg("authenticate user")
			h.view.Error(w, r, http.StatusInternalServerError)
		}
		return
	}

	if err := h.sessions.Login(w, r, user.ID); err != nil {
		h.logger.Error().Err(err).Int("user_id", user.ID).Msg("start session")
		h.view.Error(w, r, http.StatusInternalServerError)
		return
	}

	redirect(w, r, "/")
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Logout(w, r); err != nil {
		h.logger.Error().Err(err).Msg("end session")
	}
	redirect(w, r, "/")
}
