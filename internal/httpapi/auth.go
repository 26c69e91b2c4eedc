package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"govlink/checkin-service/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUnauthenticated = errors.New("missing terminal credentials")
	ErrUnknownTerminal = errors.New("unknown terminal")
	ErrBadCredentials  = errors.New("invalid terminal credentials")
)

type authContextKey struct{}

// TerminalDirectory resolves a terminal id to its registered desk.
type TerminalDirectory interface {
	Get(id string) (models.Terminal, bool)
}

type terminalClaims struct {
	TerminalID string `json:"terminal_id"`
	jwt.RegisteredClaims
}

// Authenticator identifies the calling terminal either from an HS256 bearer
// token carrying a terminal_id claim, or from an X-Terminal-ID and
// X-Terminal-Key pair checked against the registry's bcrypt hash.
type Authenticator struct {
	terminals TerminalDirectory
	jwtSecret []byte
}

func NewAuthenticator(terminals TerminalDirectory, jwtSecret string) *Authenticator {
	return &Authenticator{terminals: terminals, jwtSecret: []byte(jwtSecret)}
}

func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicEndpoint(r) {
			next.ServeHTTP(w, r)
			return
		}
		terminal, err := a.Authenticate(r)
		if err != nil {
			writeError(w, requestIDFromRequest(r), http.StatusUnauthorized, "unauthorized", err.Error())
			return
		}
		ctx := context.WithValue(r.Context(), authContextKey{}, terminal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Authenticator) Authenticate(r *http.Request) (models.Terminal, error) {
	if token := bearerToken(r.Header.Get("Authorization")); token != "" {
		return a.fromToken(token)
	}
	terminalID := strings.TrimSpace(r.Header.Get("X-Terminal-ID"))
	key := r.Header.Get("X-Terminal-Key")
	if terminalID != "" && key != "" {
		return a.fromKey(terminalID, key)
	}
	// Browsers cannot set headers on the sockjs handshake.
	if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
		return a.fromToken(token)
	}
	return models.Terminal{}, ErrUnauthenticated
}

func (a *Authenticator) fromToken(token string) (models.Terminal, error) {
	if len(a.jwtSecret) == 0 {
		return models.Terminal{}, ErrBadCredentials
	}
	var claims terminalClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return a.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return models.Terminal{}, ErrBadCredentials
	}
	terminal, ok := a.terminals.Get(claims.TerminalID)
	if !ok {
		return models.Terminal{}, ErrUnknownTerminal
	}
	return terminal, nil
}

func (a *Authenticator) fromKey(terminalID, key string) (models.Terminal, error) {
	terminal, ok := a.terminals.Get(terminalID)
	if !ok {
		return models.Terminal{}, ErrUnknownTerminal
	}
	if terminal.KeyHash == "" {
		return models.Terminal{}, ErrBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(terminal.KeyHash), []byte(key)); err != nil {
		return models.Terminal{}, ErrBadCredentials
	}
	return terminal, nil
}

func terminalFromContext(ctx context.Context) (models.Terminal, bool) {
	terminal, ok := ctx.Value(authContextKey{}).(models.Terminal)
	return terminal, ok
}

func requestIDFromRequest(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Request-ID"))
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return ""
	}
	if strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return parts[1]
}

func isPublicEndpoint(r *http.Request) bool {
	switch r.URL.Path {
	case "/healthz", "/metrics":
		return true
	default:
		return r.Method == http.MethodOptions || strings.HasPrefix(r.URL.Path, "/realtime/")
	}
}
