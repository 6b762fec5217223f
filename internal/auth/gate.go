// Package auth implements the shared-secret gate guarding booking and delete
// operations. It is an obfuscation barrier for a trusted office network, not
// authentication of identity.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/roomboard/internal/meeting"
)

// Scope distinguishes the two independently locked gate challenges.
type Scope string

const (
	// ScopeBooking guards meeting creation; success opens a session.
	ScopeBooking Scope = "booking"
	// ScopeDelete guards delete mode; every entry requires a fresh challenge.
	ScopeDelete Scope = "delete"
)

const maxFailures = 3

var (
	// ErrBadSecret is returned for a wrong shared secret.
	ErrBadSecret = errors.New("auth: wrong secret")
	// ErrLockedOut is returned while a scope is locked after repeated
	// failures.
	ErrLockedOut = errors.New("auth: locked out")
	// ErrInvalidSession is returned for a missing, malformed, or expired
	// booking session token.
	ErrInvalidSession = errors.New("auth: invalid session")
)

func lockoutWindow(scope Scope) time.Duration {
	if scope == ScopeDelete {
		return 5 * time.Minute
	}
	return 15 * time.Minute
}

// Options configures a Gate.
type Options struct {
	// Secret is the shared secret in the clear; it is hashed at construction.
	// Ignored when SecretHash is set.
	Secret string
	// SecretHash is a pre-computed bcrypt hash of the shared secret.
	SecretHash []byte
	// SigningKey signs booking session tokens.
	SigningKey []byte
	// SessionTTL bounds a booking session; zero means 8 hours. Sessions
	// always expire no later than the end of the civil day they were opened.
	SessionTTL time.Duration
	// StateFile persists lockout state across restarts; empty keeps it in
	// memory only.
	StateFile string
	// Now supplies the clock; nil means time.Now.
	Now func() time.Time
}

type scopeState struct {
	Failures    int       `json:"failures"`
	LockedUntil time.Time `json:"lockedUntil,omitzero"`
}

// Gate verifies the shared secret, issues booking sessions, and tracks
// lockouts per scope.
type Gate struct {
	mu         sync.Mutex
	secretHash []byte
	signingKey []byte
	sessionTTL time.Duration
	stateFile  string
	now        func() time.Time
	scopes     map[Scope]*scopeState
}

// NewGate constructs a gate from the supplied options.
func NewGate(opts Options) (*Gate, error) {
	hash := opts.SecretHash
	if len(hash) == 0 {
		if opts.Secret == "" {
			return nil, fmt.Errorf("auth: a shared secret is required")
		}
		generated, err := bcrypt.GenerateFromPassword([]byte(opts.Secret), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("auth: hash secret: %w", err)
		}
		hash = generated
	}
	if len(opts.SigningKey) == 0 {
		return nil, fmt.Errorf("auth: a session signing key is required")
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 8 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	g := &Gate{
		secretHash: hash,
		signingKey: opts.SigningKey,
		sessionTTL: opts.SessionTTL,
		stateFile:  opts.StateFile,
		now:        opts.Now,
		scopes: map[Scope]*scopeState{
			ScopeBooking: {},
			ScopeDelete:  {},
		},
	}
	g.loadState()
	return g, nil
}

// StartBookingSession verifies the secret and issues a session token valid
// for the configured TTL, capped at the end of the current civil day.
func (g *Gate) StartBookingSession(secret string) (string, time.Time, error) {
	if err := g.verify(ScopeBooking, secret); err != nil {
		return "", time.Time{}, err
	}

	now := g.now()
	expiresAt := now.Add(g.sessionTTL)
	if dayEnd := meeting.EndOfCivilDay(now); expiresAt.After(dayEnd) {
		expiresAt = dayEnd
	}

	claims := jwt.RegisteredClaims{
		Subject:   string(ScopeBooking),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.signingKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign session token: %w", err)
	}
	return token, expiresAt, nil
}

// CheckBookingSession validates a previously issued booking session token.
func (g *Gate) CheckBookingSession(token string) error {
	if token == "" {
		return ErrInvalidSession
	}
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return g.signingKey, nil
	}, jwt.WithTimeFunc(g.now))
	if err != nil || !parsed.Valid {
		return ErrInvalidSession
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject != string(ScopeBooking) {
		return ErrInvalidSession
	}
	return nil
}

// AuthorizeDelete verifies the secret for a single entry into delete mode.
// It never consults or opens a booking session.
func (g *Gate) AuthorizeDelete(secret string) error {
	return g.verify(ScopeDelete, secret)
}

func (g *Gate) verify(scope Scope, secret string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	state := g.scopes[scope]
	now := g.now()

	if now.Before(state.LockedUntil) {
		return fmt.Errorf("%w until %s", ErrLockedOut, state.LockedUntil.In(meeting.Zone()).Format("15:04:05"))
	}

	if bcrypt.CompareHashAndPassword(g.secretHash, []byte(secret)) != nil {
		state.Failures++
		if state.Failures >= maxFailures {
			state.LockedUntil = now.Add(lockoutWindow(scope))
			state.Failures = 0
			g.saveStateLocked()
			return fmt.Errorf("%w until %s", ErrLockedOut, state.LockedUntil.In(meeting.Zone()).Format("15:04:05"))
		}
		g.saveStateLocked()
		return ErrBadSecret
	}

	state.Failures = 0
	state.LockedUntil = time.Time{}
	g.saveStateLocked()
	return nil
}

// loadState restores lockout state from the persistent flag file, ignoring a
// missing or corrupt file.
func (g *Gate) loadState() {
	if g.stateFile == "" {
		return
	}
	raw, err := os.ReadFile(g.stateFile)
	if err != nil {
		return
	}
	var persisted map[Scope]*scopeState
	if err := json.Unmarshal(raw, &persisted); err != nil {
		return
	}
	for scope, state := range persisted {
		if _, ok := g.scopes[scope]; ok && state != nil {
			g.scopes[scope] = state
		}
	}
}

func (g *Gate) saveStateLocked() {
	if g.stateFile == "" {
		return
	}
	data, err := json.MarshalIndent(g.scopes, "", "  ")
	if err != nil {
		return
	}
	// Best effort; lockout state is advisory.
	_ = os.WriteFile(g.stateFile, append(data, '\n'), 0o600)
}
