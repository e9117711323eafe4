// Package session owns the authentication lifecycle: login, registration,
// logout, restoring a persisted session at startup, and refreshing the access
// token proactively before it expires.
//
// A Manager is constructed explicitly and wired into the request layer as its
// TokenSource; one instance per process. All token state is written to the
// secure store before it is reflected to dependent components, so a restart
// always observes a consistent session.
package session

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/localspot/localspot-go/api"
	"github.com/localspot/localspot-go/client"
	"github.com/localspot/localspot-go/internal/utils"
	"github.com/localspot/localspot-go/store"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Secure-store keys for the persisted session.
const (
	accessKey    = "accessToken"
	refreshKey   = "refreshToken"
	userKey      = "user"
	expiresAtKey = "expiresAt"
)

var sessionKeys = []string{accessKey, refreshKey, userKey, expiresAtKey}

const (
	// defaultRefreshLead is how long before expiry the proactive refresh
	// runs.
	defaultRefreshLead = time.Minute

	// fallbackTokenLifetime is assumed when the server reports no expiry at
	// all, so that an access token never exists without an expiry.
	fallbackTokenLifetime = 15 * time.Minute

	// minRefreshDelay floors the rearm delay after a successful refresh, so
	// tokens with lifetimes at or below the refresh lead cannot refresh in a
	// synchronous loop.
	minRefreshDelay = time.Second
)

var (
	// ErrNoRefreshToken means a refresh was needed but no refresh token is
	// persisted. The session has already been torn down.
	ErrNoRefreshToken = errors.New("session: no refresh token")

	// ErrMalformedRefresh means the refresh endpoint answered without an
	// access token. The session has already been torn down.
	ErrMalformedRefresh = errors.New("session: malformed refresh response")

	// ErrSessionClosed means the session was logged out while a refresh was
	// in flight; the refresh result was discarded.
	ErrSessionClosed = errors.New("session: closed during refresh")
)

// refreshCall is the single-slot guard for in-flight refreshes: at most one
// refresh runs per process, and every concurrent caller awaits its result.
type refreshCall struct {
	done  chan struct{}
	token string
	err   error
}

// Manager owns the session state and the expiry timer.
type Manager struct {
	client *client.Client
	store  store.Store
	log    zerolog.Logger
	lead   time.Duration
	now    func() time.Time

	mu        sync.Mutex
	user      *api.User
	access    string
	expiresAt time.Time
	timer     *time.Timer  // at most one armed timer; replaced on reschedule
	epoch     uint64       // bumped on logout to invalidate in-flight refreshes
	inflight  *refreshCall // single-slot refresh guard
	nextSubID int
	subs      map[int]func() // forced-logout listeners
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager's logger.
func WithLogger(log zerolog.Logger) Option {
	return func(m *Manager) { m.log = log }
}

// WithRefreshLead sets how long before expiry the proactive refresh runs.
func WithRefreshLead(lead time.Duration) Option {
	return func(m *Manager) { m.lead = lead }
}

// WithNowTime sets the time source (primarily for testing).
func WithNowTime(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a session manager over the given request client and
// secure store. The caller must register the manager as the client's token
// source: c.SetTokenSource(m).
func NewManager(c *client.Client, s store.Store, opts ...Option) *Manager {
	m := &Manager{
		client: c,
		store:  s,
		log:    zerolog.Nop(),
		lead:   defaultRefreshLead,
		now:    time.Now,
		subs:   make(map[int]func()),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AccessToken returns the current access token, or "" when logged out.
func (m *Manager) AccessToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.access
}

// IsAuthenticated reports whether a session is active.
func (m *Manager) IsAuthenticated() bool {
	return m.AccessToken() != ""
}

// CurrentUser returns a copy of the authenticated user, or nil.
func (m *Manager) CurrentUser() *api.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

// OnForcedLogout registers fn to run when the session is torn down by an
// unrecoverable auth failure (as opposed to a user-initiated logout). The
// returned cancel unregisters it.
func (m *Manager) OnForcedLogout(fn func()) (cancel func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSubID
	m.nextSubID++
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

// Login authenticates with the credentials endpoint. On failure the session
// is unchanged and the normalized error propagates for display.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	resp, err := api.Login(ctx, m.client, email, password)
	if err != nil {
		return err
	}
	m.applyAuth(ctx, resp)
	return nil
}

// Register creates an account; same contract as Login.
func (m *Manager) Register(ctx context.Context, name, email, password string) error {
	resp, err := api.Register(ctx, m.client, name, email, password)
	if err != nil {
		return err
	}
	m.applyAuth(ctx, resp)
	return nil
}

// Logout clears the session. The server-side logout call is best-effort;
// local teardown always succeeds even if the network call fails.
func (m *Manager) Logout(ctx context.Context) {
	m.teardown(ctx, false)
}

// Restore rehydrates a persisted session at startup. When the persisted
// expiry is already in the past, a refresh runs synchronously instead of
// arming a timer for a negative delay; if that refresh fails, the session is
// torn down and Restore still returns nil.
func (m *Manager) Restore(ctx context.Context) error {
	access, err := m.store.Get(ctx, accessKey)
	if err == store.ErrNotFound {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "restore session")
	}
	rawUser, err := m.store.Get(ctx, userKey)
	if err == store.ErrNotFound {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "restore session")
	}

	var user api.User
	if err := json.Unmarshal(rawUser, &user); err != nil {
		m.log.Warn().Err(err).Msg("persisted user is corrupt, dropping session")
		return nil
	}

	expiresAt := m.loadExpiry(ctx, string(access))

	m.mu.Lock()
	m.user = &user
	m.access = string(access)
	m.expiresAt = expiresAt
	m.mu.Unlock()

	m.log.Info().Str("user", user.ID).Time("expiresAt", expiresAt).Msg("session restored")
	m.scheduleExpiryHandling(ctx)
	return nil
}

// loadExpiry reads the persisted expiry, falling back to the access token's
// exp claim when the stored value is missing or corrupt.
func (m *Manager) loadExpiry(ctx context.Context, access string) time.Time {
	if raw, err := m.store.Get(ctx, expiresAtKey); err == nil {
		if ms, parseErr := strconv.ParseInt(string(raw), 10, 64); parseErr == nil {
			return time.UnixMilli(ms)
		}
	}
	if exp, ok := tokenExpiry(access); ok {
		return exp
	}
	return m.now().Add(fallbackTokenLifetime)
}

// Refresh exchanges the persisted refresh token for new credentials. At most
// one refresh is in flight at any time: concurrent callers (401 interceptors
// and the expiry timer alike) await the same outcome. Any failure tears the
// session down; refresh failures are never silently retried.
func (m *Manager) Refresh(ctx context.Context) (string, error) {
	m.mu.Lock()
	if call := m.inflight; call != nil {
		m.mu.Unlock()
		select {
		case <-call.done:
			return call.token, call.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	call := &refreshCall{done: make(chan struct{})}
	m.inflight = call
	m.mu.Unlock()

	call.token, call.err = m.doRefresh(ctx)

	m.mu.Lock()
	m.inflight = nil
	m.mu.Unlock()
	close(call.done)

	if call.err == nil {
		m.rescheduleAfterRefresh()
	}
	return call.token, call.err
}

func (m *Manager) doRefresh(ctx context.Context) (string, error) {
	m.mu.Lock()
	epoch := m.epoch
	m.mu.Unlock()

	refreshToken, err := m.store.Get(ctx, refreshKey)
	if err != nil || len(refreshToken) == 0 {
		m.log.Warn().Msg("refresh requested without a refresh token, forcing logout")
		m.teardown(ctx, true)
		return "", ErrNoRefreshToken
	}

	resp, err := api.RefreshTokens(ctx, m.client, string(refreshToken))
	if err != nil {
		m.log.Warn().Err(err).Msg("token refresh failed, forcing logout")
		m.teardown(ctx, true)
		return "", errors.Wrap(err, "refresh tokens")
	}
	if resp.AccessToken == "" {
		m.log.Warn().Msg("refresh response without access token, forcing logout")
		m.teardown(ctx, true)
		return "", ErrMalformedRefresh
	}

	m.mu.Lock()
	if m.epoch != epoch {
		// Logged out while the refresh call was in flight; discard.
		m.mu.Unlock()
		return "", ErrSessionClosed
	}

	expiresAt := m.refreshedExpiryLocked(resp)
	m.persistLocked(ctx, accessKey, []byte(resp.AccessToken))
	if rotated := utils.Value(resp.RefreshToken); rotated != "" {
		m.persistLocked(ctx, refreshKey, []byte(rotated))
	}
	m.persistLocked(ctx, expiresAtKey, []byte(strconv.FormatInt(expiresAt.UnixMilli(), 10)))

	m.access = resp.AccessToken
	m.expiresAt = expiresAt
	m.mu.Unlock()

	m.log.Info().Time("expiresAt", expiresAt).Msg("access token refreshed")
	return resp.AccessToken, nil
}

// refreshedExpiryLocked derives the new expiry from the refresh response:
// expiresIn when present, else the new token's exp claim, else the previous
// expiry. Caller must hold m.mu.
func (m *Manager) refreshedExpiryLocked(resp *api.RefreshResponse) time.Time {
	if resp.ExpiresIn > 0 {
		return m.now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	}
	if exp, ok := tokenExpiry(resp.AccessToken); ok {
		return exp
	}
	if !m.expiresAt.IsZero() {
		return m.expiresAt
	}
	return m.now().Add(fallbackTokenLifetime)
}

// applyAuth persists and adopts a fresh credential set, then (re)schedules
// expiry handling.
func (m *Manager) applyAuth(ctx context.Context, resp *api.AuthResponse) {
	expiresAt := m.now().Add(time.Duration(resp.Tokens.ExpiresIn) * time.Second)
	if resp.Tokens.ExpiresIn <= 0 {
		if exp, ok := tokenExpiry(resp.Tokens.AccessToken); ok {
			expiresAt = exp
		} else {
			expiresAt = m.now().Add(fallbackTokenLifetime)
		}
	}
	rawUser, err := json.Marshal(resp.User)
	if err != nil {
		rawUser = []byte("{}")
	}

	m.mu.Lock()
	m.persistLocked(ctx, accessKey, []byte(resp.Tokens.AccessToken))
	m.persistLocked(ctx, refreshKey, []byte(resp.Tokens.RefreshToken))
	m.persistLocked(ctx, expiresAtKey, []byte(strconv.FormatInt(expiresAt.UnixMilli(), 10)))
	m.persistLocked(ctx, userKey, rawUser)

	user := resp.User
	m.user = &user
	m.access = resp.Tokens.AccessToken
	m.expiresAt = expiresAt
	m.mu.Unlock()

	m.log.Info().Str("user", resp.User.ID).Time("expiresAt", expiresAt).Msg("session established")
	m.scheduleExpiryHandling(ctx)
}

// persistLocked writes one session key. Store failures are logged, not
// propagated: losing durability must not fail an otherwise successful login
// or refresh.
func (m *Manager) persistLocked(ctx context.Context, key string, value []byte) {
	if err := m.store.Set(ctx, key, value); err != nil {
		m.log.Error().Err(err).Str("key", key).Msg("persisting session state failed")
	}
}

// scheduleExpiryHandling cancels any armed timer and arms a new one for
// expiresAt minus the refresh lead. A non-positive delay runs the refresh
// immediately, in the caller's goroutine.
func (m *Manager) scheduleExpiryHandling(ctx context.Context) {
	m.mu.Lock()
	m.stopTimerLocked()
	if m.access == "" || m.expiresAt.IsZero() {
		m.mu.Unlock()
		return
	}
	delay := m.expiresAt.Sub(m.now()) - m.lead
	if delay <= 0 {
		m.mu.Unlock()
		if _, err := m.Refresh(ctx); err != nil {
			m.log.Debug().Err(err).Msg("immediate refresh failed")
		}
		return
	}
	m.timer = time.AfterFunc(delay, func() {
		if _, err := m.Refresh(context.Background()); err != nil {
			m.log.Debug().Err(err).Msg("scheduled refresh failed")
		}
	})
	m.mu.Unlock()
	m.log.Debug().Dur("delay", delay).Msg("expiry refresh scheduled")
}

// rescheduleAfterRefresh rearms the expiry timer for the credentials adopted
// by a successful refresh. Unlike scheduleExpiryHandling it never refreshes
// synchronously: the delay is floored at minRefreshDelay, so a token lifetime
// at or below the lead rearms the timer instead of looping.
func (m *Manager) rescheduleAfterRefresh() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopTimerLocked()
	if m.access == "" || m.expiresAt.IsZero() {
		return
	}
	delay := m.expiresAt.Sub(m.now()) - m.lead
	if delay < minRefreshDelay {
		delay = minRefreshDelay
	}
	m.timer = time.AfterFunc(delay, func() {
		if _, err := m.Refresh(context.Background()); err != nil {
			m.log.Debug().Err(err).Msg("scheduled refresh failed")
		}
	})
	m.log.Debug().Dur("delay", delay).Msg("expiry refresh scheduled")
}

// stopTimerLocked cancels the armed timer, if any. Caller must hold m.mu.
func (m *Manager) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// teardown clears the session locally, makes the best-effort server logout
// call, and deletes the persisted keys. forced distinguishes auth-failure
// teardown (which notifies OnForcedLogout listeners) from user logout.
func (m *Manager) teardown(ctx context.Context, forced bool) {
	m.mu.Lock()
	m.user = nil
	m.access = ""
	m.expiresAt = time.Time{}
	m.epoch++
	m.stopTimerLocked()
	var listeners []func()
	if forced {
		listeners = make([]func(), 0, len(m.subs))
		for _, fn := range m.subs {
			listeners = append(listeners, fn)
		}
	}
	m.mu.Unlock()

	api.Logout(ctx, m.client)

	for _, key := range sessionKeys {
		if err := m.store.Delete(ctx, key); err != nil {
			m.log.Warn().Err(err).Str("key", key).Msg("clearing session key failed")
		}
	}

	if forced {
		m.log.Warn().Msg("session torn down by auth failure")
		for _, fn := range listeners {
			fn()
		}
	} else {
		m.log.Info().Msg("logged out")
	}
}

// tokenExpiry extracts the exp claim from a JWT access token without
// verifying the signature. The client has no verification key; the claim is
// only used as a scheduling hint.
func tokenExpiry(token string) (time.Time, bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
