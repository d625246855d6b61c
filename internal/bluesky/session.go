package bluesky

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bluesky-social/indigo/atproto/syntax"
	"github.com/golang-jwt/jwt/v5"

	"github.com/blackmichael/multipass/internal/source"
)

// Credentials log in to a PDS. Use an App Password, not the account password.
type Credentials struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{identifier: %s, password: <redacted>}", c.Identifier)
}

func (c Credentials) GoString() string { return c.String() }

// LogValue keeps the password out of logs.
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(slog.String("identifier", c.Identifier))
}

// AccountStatus is the restriction state reported for a non-active account.
type AccountStatus string

const (
	StatusTakenDown   AccountStatus = "takendown"
	StatusSuspended   AccountStatus = "suspended"
	StatusDeactivated AccountStatus = "deactivated"
)

// UnmarshalJSON rejects status values outside the known set.
func (s *AccountStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch st := AccountStatus(raw); st {
	case StatusTakenDown, StatusSuspended, StatusDeactivated:
		*s = st
		return nil
	default:
		return fmt.Errorf("unknown account status %q", raw)
	}
}

// Session is the result of authenticating. The client does not keep it;
// callers pass Auth back in on each call.
type Session struct {
	AccessJwt       string
	RefreshJwt      string
	Handle          syntax.Handle
	DID             syntax.DID
	Email           string
	EmailConfirmed  bool
	EmailAuthFactor bool
	Active          bool

	// Status is nil unless the account is restricted.
	Status *AccountStatus
}

// Auth returns the per-call authorization for s.
func (s *Session) Auth() Auth {
	return Auth{AccessToken: s.AccessJwt, DID: s.DID}
}

// AccessExpiry returns the expiry of the access token. The token signature is
// not verified; the PDS remains the authority.
func (s *Session) AccessExpiry() (time.Time, error) {
	return tokenExpiry(s.AccessJwt)
}

// LogValue keeps tokens out of logs.
func (s *Session) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("handle", string(s.Handle)),
		slog.String("did", string(s.DID)),
		slog.Bool("active", s.Active),
	}
	if s.Status != nil {
		attrs = append(attrs, slog.String("status", string(*s.Status)))
	}
	return slog.GroupValue(attrs...)
}

// Auth is what an authenticated call needs: the bearer token and the
// account repo.
type Auth struct {
	AccessToken string
	DID         syntax.DID
}

// LogValue keeps the token out of logs.
func (a Auth) LogValue() slog.Value {
	return slog.GroupValue(slog.String("did", string(a.DID)))
}

func tokenExpiry(token string) (time.Time, error) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, fmt.Errorf("parse access token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, errors.New("access token has no exp claim")
	}
	return claims.ExpiresAt.Time, nil
}

// sessionWire is the JSON shape shared by createSession and refreshSession.
type sessionWire struct {
	AccessJwt       string         `json:"accessJwt"`
	RefreshJwt      string         `json:"refreshJwt"`
	Handle          syntax.Handle  `json:"handle"`
	DID             syntax.DID     `json:"did"`
	Email           *string        `json:"email"`
	EmailConfirmed  *bool          `json:"emailConfirmed"`
	EmailAuthFactor *bool          `json:"emailAuthFactor"`
	Active          *bool          `json:"active"`
	Status          *AccountStatus `json:"status"`
}

func (w *sessionWire) validateTokens() error {
	if w.AccessJwt == "" {
		return source.MissingField("accessJwt")
	}
	if w.RefreshJwt == "" {
		return source.MissingField("refreshJwt")
	}
	if err := validateHandle("handle", w.Handle); err != nil {
		return err
	}
	return validateDID("did", w.DID)
}

func (w *sessionWire) session() *Session {
	s := &Session{
		AccessJwt:  w.AccessJwt,
		RefreshJwt: w.RefreshJwt,
		Handle:     w.Handle,
		DID:        w.DID,
		Active:     true,
		Status:     w.Status,
	}
	if w.Email != nil {
		s.Email = *w.Email
	}
	if w.EmailConfirmed != nil {
		s.EmailConfirmed = *w.EmailConfirmed
	}
	if w.EmailAuthFactor != nil {
		s.EmailAuthFactor = *w.EmailAuthFactor
	}
	if w.Active != nil {
		s.Active = *w.Active
	}
	return s
}

type createSessionResponse struct {
	sessionWire
}

func (r *createSessionResponse) Validate() error {
	if err := r.validateTokens(); err != nil {
		return err
	}
	switch {
	case r.Email == nil:
		return source.MissingField("email")
	case r.EmailConfirmed == nil:
		return source.MissingField("emailConfirmed")
	case r.EmailAuthFactor == nil:
		return source.MissingField("emailAuthFactor")
	case r.Active == nil:
		return source.MissingField("active")
	}
	return nil
}

type refreshSessionResponse struct {
	sessionWire
}

func (r *refreshSessionResponse) Validate() error {
	return r.validateTokens()
}
