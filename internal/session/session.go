// Package session manages the credential the content store authenticates
// with: loading and verifying a stored credential on startup, logging in
// and out, and forced logout when the store rejects the credential.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gallery-go/internal/gallery"
)

var (
	// ErrNoCredential is returned by a CredentialStore that holds nothing.
	ErrNoCredential = errors.New("no stored credential")
	// ErrExpired indicates the credential's expiry has passed.
	ErrExpired = errors.New("credential expired")
	// ErrLoginFailed indicates the login exchange was rejected.
	ErrLoginFailed = errors.New("login failed")
)

// State is the lifecycle state of a Manager.
type State int

const (
	Unauthenticated State = iota
	Verifying
	Authenticated
	Expired
	LoggedOut
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Verifying:
		return "verifying"
	case Authenticated:
		return "authenticated"
	case Expired:
		return "expired"
	case LoggedOut:
		return "logged_out"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Mode says what kind of token a credential holds.
type Mode string

const (
	// ModeToken is a personal access token used against the API directly.
	ModeToken Mode = "token"
	// ModeSession is a session token issued by the proxy login endpoint.
	ModeSession Mode = "session"
)

// StoredCredential is a credential at rest. The token is sealed.
type StoredCredential struct {
	Sealed    []byte
	Mode      Mode
	ExpiresAt time.Time // zero means no expiry
	CreatedAt time.Time
}

// CredentialStore persists at most one credential.
type CredentialStore interface {
	// LoadCredential returns ErrNoCredential when nothing is stored.
	LoadCredential(ctx context.Context) (*StoredCredential, error)
	SaveCredential(ctx context.Context, cred StoredCredential) error
	DeleteCredential(ctx context.Context) error
}

// Sealer encrypts credentials before they are stored.
type Sealer interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(sealed []byte) ([]byte, error)
}

// Verifier checks that the current token is accepted by the backend.
type Verifier interface {
	Verify(ctx context.Context) error
}

// Options configures a Manager. Zero values select defaults.
type Options struct {
	Mode   Mode
	Clock  gallery.Clock
	Logger gallery.Logger
	Login  *LoginClient
}

// Manager owns the active credential. It is the token source of the
// content store, so the token it hands out always matches its state.
// Manager is safe for concurrent use.
type Manager struct {
	creds  CredentialStore
	sealer Sealer
	mode   Mode
	clock  gallery.Clock
	logger gallery.Logger
	login  *LoginClient

	mu        sync.Mutex
	verifier  Verifier
	state     State
	token     string
	expiresAt time.Time
}

var _ gallery.Session = (*Manager)(nil)

// NewManager creates a Manager in the Unauthenticated state.
func NewManager(creds CredentialStore, sealer Sealer, opts Options) *Manager {
	if opts.Mode == "" {
		opts.Mode = ModeToken
	}
	if opts.Clock == nil {
		opts.Clock = gallery.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = gallery.NewNopLogger()
	}
	return &Manager{
		creds:  creds,
		sealer: sealer,
		mode:   opts.Mode,
		clock:  opts.Clock,
		logger: opts.Logger,
		login:  opts.Login,
		state:  Unauthenticated,
	}
}

// Attach sets the verifier. The verifier usually takes the Manager as its
// token source, so it is attached after both exist.
func (m *Manager) Attach(v Verifier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verifier = v
}

// Start loads the stored credential. An expired credential is discarded
// and ErrExpired returned. Otherwise it is verified with one call; if the
// backend rejects it, it is discarded as well. Having nothing stored is not
// an error: the Manager stays Unauthenticated.
func (m *Manager) Start(ctx context.Context) error {
	stored, err := m.creds.LoadCredential(ctx)
	if errors.Is(err, ErrNoCredential) {
		m.setState(Unauthenticated, "", time.Time{})
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading credential: %w", err)
	}

	if m.expired(stored.ExpiresAt) {
		m.logger.Info("stored credential expired", "expires_at", stored.ExpiresAt)
		m.discard(ctx)
		m.setState(Expired, "", time.Time{})
		return ErrExpired
	}

	token, err := m.sealer.Open(stored.Sealed)
	if err != nil {
		m.discard(ctx)
		m.setState(Unauthenticated, "", time.Time{})
		return fmt.Errorf("opening credential: %w", err)
	}

	if err := m.verify(ctx, string(token), stored.ExpiresAt); err != nil {
		m.logger.Warn("stored credential rejected", "error", err)
		m.discard(ctx)
		return err
	}
	m.logger.Info("session restored", "mode", string(stored.Mode))
	return nil
}

// Login verifies token and, if accepted, stores it sealed. A zero expiry
// means the token does not expire.
func (m *Manager) Login(ctx context.Context, token string, expiresAt time.Time) error {
	if token == "" {
		return fmt.Errorf("empty token: %w", ErrLoginFailed)
	}
	if m.expired(expiresAt) {
		return ErrExpired
	}

	if err := m.verify(ctx, token, expiresAt); err != nil {
		return err
	}

	sealed, err := m.sealer.Seal([]byte(token))
	if err != nil {
		return fmt.Errorf("sealing credential: %w", err)
	}
	cred := StoredCredential{
		Sealed:    sealed,
		Mode:      m.mode,
		ExpiresAt: expiresAt,
		CreatedAt: m.clock.Now(),
	}
	if err := m.creds.SaveCredential(ctx, cred); err != nil {
		return fmt.Errorf("saving credential: %w", err)
	}
	m.logger.Info("logged in", "mode", string(m.mode), "expires_at", expiresAt)
	return nil
}

// LoginWithPassword exchanges user and pass for a session token at the
// proxy login endpoint, then logs in with it. The expiry is read from the
// token's exp claim.
func (m *Manager) LoginWithPassword(ctx context.Context, user, pass string) error {
	if m.login == nil {
		return fmt.Errorf("no login endpoint configured: %w", ErrLoginFailed)
	}
	token, expiresAt, err := m.login.Exchange(ctx, user, pass)
	if err != nil {
		return err
	}
	return m.Login(ctx, token, expiresAt)
}

// Logout forgets the credential and deletes it from storage.
func (m *Manager) Logout(ctx context.Context) error {
	m.setState(LoggedOut, "", time.Time{})
	if err := m.creds.DeleteCredential(ctx); err != nil && !errors.Is(err, ErrNoCredential) {
		return fmt.Errorf("deleting credential: %w", err)
	}
	m.logger.Info("logged out")
	return nil
}

// Invalidate is a forced logout after the backend rejected the
// credential.
func (m *Manager) Invalidate(reason error) {
	m.mu.Lock()
	if m.state != Authenticated {
		m.mu.Unlock()
		return
	}
	m.state, m.token, m.expiresAt = Expired, "", time.Time{}
	m.mu.Unlock()

	m.logger.Warn("credential rejected, logging out", "reason", reason)
	m.discard(context.Background())
}

// Token returns the token while verifying or authenticated, and "" in any
// other state or once the expiry has passed.
func (m *Manager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != Authenticated && m.state != Verifying {
		return ""
	}
	if m.expired(m.expiresAt) {
		m.state, m.token, m.expiresAt = Expired, "", time.Time{}
		return ""
	}
	return m.token
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Authenticated && m.expired(m.expiresAt) {
		m.state, m.token, m.expiresAt = Expired, "", time.Time{}
	}
	return m.state
}

// ExpiresAt returns the expiry of the active credential, zero if none.
func (m *Manager) ExpiresAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.expiresAt
}

// verify moves to Verifying with token as the candidate, calls the
// verifier and settles in Authenticated or Unauthenticated.
func (m *Manager) verify(ctx context.Context, token string, expiresAt time.Time) error {
	m.mu.Lock()
	v := m.verifier
	m.state, m.token, m.expiresAt = Verifying, token, expiresAt
	m.mu.Unlock()

	if v == nil {
		m.setState(Unauthenticated, "", time.Time{})
		return fmt.Errorf("no verifier attached")
	}
	if err := v.Verify(ctx); err != nil {
		m.setState(Unauthenticated, "", time.Time{})
		return fmt.Errorf("verifying credential: %w", err)
	}

	m.setState(Authenticated, token, expiresAt)
	return nil
}

func (m *Manager) setState(s State, token string, expiresAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state, m.token, m.expiresAt = s, token, expiresAt
}

func (m *Manager) discard(ctx context.Context) {
	if err := m.creds.DeleteCredential(ctx); err != nil && !errors.Is(err, ErrNoCredential) {
		m.logger.Warn("deleting credential failed", "error", err)
	}
}

func (m *Manager) expired(expiresAt time.Time) bool {
	return !expiresAt.IsZero() && !m.clock.Now().Before(expiresAt)
}
