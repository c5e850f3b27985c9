// Package verify is the request-time verification and authorization
// core of the gateway. Every protected request passes through an
// Engine before reaching business logic.
package verify

import (
	"context"
	"errors"
	"time"

	"go.insight.network/gateway/pkg/appcache"
	"go.insight.network/gateway/pkg/permits"
	"go.insight.network/gateway/pkg/session"
	"go.insight.network/gateway/pkg/token"
	"go.uber.org/zap"
)

// DefaultTimeoutWindow pads extended expiry times during sliding refresh.
const DefaultTimeoutWindow = 5 * time.Minute

// GraceMultiplier stretches the cache TTL past the record's own
// failure horizon, so a failed record is still observable as failed
// instead of reading as a cache miss.
const GraceMultiplier = 12

// Config selects between the observed engine policy variants.
type Config struct {
	// Digest must match the algorithm the login service bound the
	// session's token hash with.
	Digest token.Digest

	// TimeoutWindow pads expiry times on sliding refresh.
	TimeoutWindow time.Duration

	// RefreshOnConstruct applies sliding-expiration refresh eagerly
	// when a verification is built, gated by the record's own
	// AutoRefresh flag.
	RefreshOnConstruct bool

	// EnforceSingleSession rejects sessions superseded by a newer
	// login for the same user and app.
	EnforceSingleSession bool
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		Digest:               token.MD5Hex,
		TimeoutWindow:        DefaultTimeoutWindow,
		RefreshOnConstruct:   true,
		EnforceSingleSession: true,
	}
}

// Engine makes verification decisions against the shared session store.
// All collaborators are injected; the engine holds no global state.
type Engine struct {
	Store   *session.Store
	Permits permits.Client
	Apps    *appcache.Cache // optional, falls back to Store when nil
	Log     *zap.Logger
	Config  Config
}

// NewEngine builds an engine with the given collaborators.
func NewEngine(store *session.Store, client permits.Client, log *zap.Logger, cfg Config) *Engine {
	if cfg.Digest == nil {
		cfg.Digest = token.MD5Hex
	}
	if cfg.TimeoutWindow == 0 {
		cfg.TimeoutWindow = DefaultTimeoutWindow
	}
	return &Engine{
		Store:   store,
		Permits: client,
		Log:     log,
		Config:  cfg,
	}
}

// Verification is the per-request context of one decision.
// It is built once per inbound request and never shared.
type Verification struct {
	engine *Engine

	hash    string
	tokenID string
	userID  string
	basis   *session.Record
	user    *session.User // lazily loaded
}

// Verify constructs a verification context for a raw token and the
// fingerprint of the client presenting it. A malformed token or a
// cache miss leaves the context permanently invalid; no further
// external calls are made for it.
func (e *Engine) Verify(ctx context.Context, rawToken, fingerprint string) *Verification {
	v := &Verification{
		engine: e,
		hash:   token.Bind(e.Config.Digest, rawToken, fingerprint),
	}
	assertion := token.Unmarshal(rawToken)
	if assertion == nil {
		e.Log.Error("Failed to decode access token")
		return v
	}
	v.tokenID = assertion.TokenID
	basis, err := e.Store.GetRecord(ctx, v.tokenID)
	if errors.Is(err, session.ErrAbsent) {
		return v
	} else if err != nil {
		// Treat store errors as "not authenticated", never fail open.
		e.Log.Error("Failed to read session record", zap.Error(err))
		return v
	}
	v.basis = basis
	v.userID = basis.UserID
	if e.Config.RefreshOnConstruct && basis.AutoRefresh {
		v.refresh(ctx)
	}
	return v
}

// refresh applies sliding-expiration refresh: extend the session's
// lifetime only when it is actively used and close to expiry, to
// avoid a cache write on every request.
func (v *Verification) refresh(ctx context.Context) {
	e := v.engine
	basis := v.basis
	now := time.Now()
	// A dead session is never resurrected.
	if basis.Failed(now) {
		return
	}
	// Still fresh enough: more than half of its life remaining.
	if basis.ExpiryTime.Sub(now) > basis.Life/2 {
		return
	}
	extended := now.Add(e.Config.TimeoutWindow + basis.Life)
	basis.ExpiryTime = extended
	basis.FailureTime = extended
	ttl := 2*e.Config.TimeoutWindow + GraceMultiplier*basis.Life
	if err := e.Store.PutRecord(ctx, v.tokenID, basis, ttl); err != nil {
		e.Log.Error("Failed to write refreshed session record",
			zap.String("tokenId", v.tokenID), zap.Error(err))
	}
}

// TokenID returns the token ID, or "" for an invalid context.
func (v *Verification) TokenID() string {
	return v.tokenID
}

// UserID returns the session owner's user ID.
func (v *Verification) UserID() string {
	return v.userID
}

// UserIs reports whether the session belongs to the given user.
func (v *Verification) UserIs(userID string) bool {
	return v.userID == userID
}

// AppID returns the session's application ID.
func (v *Verification) AppID() string {
	if v.basis == nil {
		return ""
	}
	return v.basis.AppID
}

// TenantID returns the session's tenant ID.
func (v *Verification) TenantID() string {
	if v.basis == nil {
		return ""
	}
	return v.basis.TenantID
}

// Basis returns the loaded session record, or nil.
func (v *Verification) Basis() *session.Record {
	return v.basis
}

// UserName returns the session owner's display name, or "".
func (v *Verification) UserName(ctx context.Context) string {
	u := v.loadUser(ctx)
	if u == nil {
		return ""
	}
	return u.Name
}

func (v *Verification) loadUser(ctx context.Context) *session.User {
	if v.user != nil {
		return v.user
	}
	if v.userID == "" {
		return nil
	}
	u, err := v.engine.Store.GetUser(ctx, v.userID)
	if err != nil {
		if !errors.Is(err, session.ErrAbsent) {
			v.engine.Log.Error("Failed to read user record",
				zap.String("userId", v.userID), zap.Error(err))
		}
		return nil
	}
	v.user = u
	return u
}
