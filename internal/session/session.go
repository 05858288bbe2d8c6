package session

import (
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mindsight/journal/config"
)

const (
	flashCookieName = "mindsight_flash"
	flashTTL        = 5 * time.Minute
)

// Manager issues and reads the signed session cookie.
type Manager struct {
	store      Store
	secret     []byte
	cookieName string
	ttl        time.Duration
	secure     bool
	now        func() time.Time
}

func NewManager(store Store, cfg config.SessionConfig, secret string) *Manager {
	name := cfg.CookieName
	if name == "" {
		name = "mindsight_session"
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Manager{
		store:      store,
		secret:     []byte(secret),
		cookieName: name,
		ttl:        ttl,
		secure:     cfg.Secure,
		now:        time.Now,
	}
}

// Login replaces any existing session on r with one bound to userID.
func (m *Manager) Login(w http.ResponseWriter, r *http.Request, userID int) error {
	if subject, err := m.subject(r); err == nil {
		_ = m.store.Destroy(r.Context(), subject)
	}

	subject, err := m.store.Save(r.Context(), userID, m.ttl)
	if err != nil {
		return err
	}

	now := m.now()
	token, err := m.sign(jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
	})
	if err != nil {
		return err
	}

	m.setCookie(w, m.cookieName, token, m.ttl)
	return nil
}

// UserID returns the user bound to the request's session, or ErrNoSession.
func (m *Manager) UserID(r *http.Request) (int, error) {
	subject, err := m.subject(r)
	if err != nil {
		return 0, err
	}
	return m.store.Load(r.Context(), subject)
}

// Logout forgets the session and clears the cookie.
func (m *Manager) Logout(w http.ResponseWriter, r *http.Request) error {
	var err error
	if subject, subErr := m.subject(r); subErr == nil {
		err = m.store.Destroy(r.Context(), subject)
	}
	m.clearCookie(w, m.cookieName)
	return err
}

type flashClaims struct {
	Messages []string `json:"msgs"`
	jwt.RegisteredClaims
}

// AddFlash queues a message to be shown on the next rendered page.
func (m *Manager) AddFlash(w http.ResponseWriter, r *http.Request, message string) {
	messages := m.readFlashes(r)
	messages = append(messages, message)

	now := m.now()
	token, err := m.sign(flashClaims{
		Messages: messages,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(flashTTL)),
		},
	})
	if err != nil {
		return
	}
	m.setCookie(w, flashCookieName, token, flashTTL)
}

// Flashes returns and clears the queued messages.
func (m *Manager) Flashes(w http.ResponseWriter, r *http.Request) []string {
	messages := m.readFlashes(r)
	if _, err := r.Cookie(flashCookieName); err == nil {
		m.clearCookie(w, flashCookieName)
	}
	return messages
}

func (m *Manager) readFlashes(r *http.Request) []string {
	cookie, err := r.Cookie(flashCookieName)
	if err != nil {
		return nil
	}
	claims := flashClaims{}
	if err := m.parse(cookie.Value, &claims); err != nil {
		return nil
	}
	return claims.Messages
}

func (m *Manager) subject(r *http.Request) (string, error) {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil {
		return "", ErrNoSession
	}
	claims := jwt.RegisteredClaims{}
	if err := m.parse(cookie.Value, &claims); err != nil {
		return "", ErrNoSession
	}
	if claims.Subject == "" {
		return "", ErrNoSession
	}
	return claims.Subject, nil
}

func (m *Manager) sign(claims jwt.Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

func (m *Manager) parse(value string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(value, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil {
		return err
	}
	if !token.Valid {
		return errors.New("invalid token")
	}
	return nil
}

func (m *Manager) setCookie(w http.ResponseWriter, name, value string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (m *Manager) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
