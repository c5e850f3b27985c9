package verify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.insight.network/gateway/pkg/permits"
	"go.insight.network/gateway/pkg/session"
	"go.insight.network/gateway/pkg/token"
	"go.uber.org/zap/zaptest"
)

type fakePermits struct {
	calls int
	reply *permits.Reply
	err   error
	last  permits.Request
}

func (f *fakePermits) GetPermits(_ context.Context, req permits.Request) (*permits.Reply, error) {
	f.calls++
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return f.reply, nil
}

type testEnv struct {
	engine  *Engine
	store   *session.Store
	redis   *miniredis.Miniredis
	permits *fakePermits
}

func newTestEnv(t *testing.T) *testEnv {
	mr := miniredis.RunT(t)
	rd := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rd.Close() })
	store := session.NewStore(rd)
	fp := &fakePermits{reply: &permits.Reply{Success: true}}
	cfg := DefaultConfig()
	cfg.RefreshOnConstruct = false
	engine := NewEngine(store, fp, zaptest.NewLogger(t), cfg)
	return &testEnv{engine: engine, store: store, redis: mr, permits: fp}
}

// seed writes a session record bound to the returned raw token.
func (env *testEnv) seed(t *testing.T, fingerprint string, mutate func(*session.Record)) (rawToken, tokenID string) {
	tokenID = "t-1"
	rawToken = token.Marshal(&token.AccessAssertion{TokenID: tokenID, UserID: "u-1"})
	now := time.Now()
	rec := &session.Record{
		UserID:      "u-1",
		AppID:       "a-1",
		TenantID:    "tn-1",
		TokenHash:   token.Bind(env.engine.Config.Digest, rawToken, fingerprint),
		ExpiryTime:  now.Add(time.Hour),
		FailureTime: now.Add(time.Hour),
		Life:        2 * time.Hour,
		PermitFuncs: []string{"a", "b"},
		PermitTime:  now,
		PermitLife:  15 * time.Minute,
	}
	if mutate != nil {
		mutate(rec)
	}
	require.NoError(t, env.store.PutRecord(context.Background(), tokenID, rec, time.Hour))
	return
}

func TestCompareMalformedToken(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	for _, fp := range []string{"", "fp", "other"} {
		v := env.engine.Verify(ctx, "@@not-a-token@@", fp)
		assert.Equal(t, StatusInvalidToken, v.Compare(ctx, "").Status)
	}
	assert.Zero(t, env.permits.calls)
}

func TestCompareSessionAbsent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	raw := token.Marshal(&token.AccessAssertion{TokenID: "missing", UserID: "u-1"})
	v := env.engine.Verify(ctx, raw, "fp")
	assert.Equal(t, StatusInvalidToken, v.Compare(ctx, "").Status)
}

func TestCompareFingerprintMismatch(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	raw, _ := env.seed(t, "fp-original", nil)
	v := env.engine.Verify(ctx, raw, "fp-stolen")
	assert.Equal(t, StatusInvalidToken, v.Compare(ctx, "").Status)

	v = env.engine.Verify(ctx, raw, "fp-original")
	assert.Equal(t, StatusSuccess, v.Compare(ctx, "").Status)
}

func TestCompareExpired(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	raw, _ := env.seed(t, "fp", func(rec *session.Record) {
		rec.ExpiryTime = time.Now().Add(-time.Second)
		rec.FailureTime = time.Now().Add(time.Hour)
	})
	v := env.engine.Verify(ctx, raw, "fp")
	assert.Equal(t, StatusExpiredToken, v.Compare(ctx, "").Status)
}

func TestCompareFailed(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	raw, _ := env.seed(t, "fp", func(rec *session.Record) {
		rec.ExpiryTime = time.Now().Add(-2 * time.Hour)
		rec.FailureTime = time.Now().Add(-time.Hour)
	})
	v := env.engine.Verify(ctx, raw, "fp")
	// Past expiry wins before the failure check.
	assert.Equal(t, StatusExpiredToken, v.Compare(ctx, "").Status)
}

func TestCompareAccountDisabled(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	raw, _ := env.seed(t, "fp", nil)
	require.NoError(t, env.store.PutUser(ctx, "u-1", &session.User{Account: "alice", Invalid: true}))
	v := env.engine.Verify(ctx, raw, "fp")
	res := v.Compare(ctx, "")
	assert.Equal(t, StatusForbidden, res.Status)
	assert.Equal(t, "account is disabled", res.Message)
}

func TestCompareLoginElsewhere(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	raw, _ := env.seed(t, "fp", nil)
	require.NoError(t, env.store.SetAppSingleSignOn(ctx, "a-1", true))
	require.NoError(t, env.store.SetAuthoritativeToken(ctx, "u-1", "a-1", "t-2"))

	v := env.engine.Verify(ctx, raw, "fp")
	res := v.Compare(ctx, "")
	assert.Equal(t, StatusForbidden, res.Status)

	// Authoritative session passes.
	require.NoError(t, env.store.SetAuthoritativeToken(ctx, "u-1", "a-1", "t-1"))
	v = env.engine.Verify(ctx, raw, "fp")
	assert.Equal(t, StatusSuccess, v.Compare(ctx, "").Status)
}

func TestCompareLoginElsewhereDisabledByPolicy(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.engine.Config.EnforceSingleSession = false
	raw, _ := env.seed(t, "fp", nil)
	require.NoError(t, env.store.SetAppSingleSignOn(ctx, "a-1", true))
	require.NoError(t, env.store.SetAuthoritativeToken(ctx, "u-1", "a-1", "t-2"))
	v := env.engine.Verify(ctx, raw, "fp")
	assert.Equal(t, StatusSuccess, v.Compare(ctx, "").Status)
}

func TestCompareNoSSOApp(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	raw, _ := env.seed(t, "fp", nil)
	// Another device's session is authoritative, but the app does not
	// enforce single sign-in.
	require.NoError(t, env.store.SetAuthoritativeToken(ctx, "u-1", "a-1", "t-2"))
	v := env.engine.Verify(ctx, raw, "fp")
	assert.Equal(t, StatusSuccess, v.Compare(ctx, "").Status)
}

func TestCompareAccessors(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	raw, _ := env.seed(t, "fp", nil)
	require.NoError(t, env.store.PutUser(ctx, "u-1", &session.User{Account: "alice", Name: "Alice"}))
	v := env.engine.Verify(ctx, raw, "fp")
	require.True(t, v.Compare(ctx, "").OK())
	assert.Equal(t, "t-1", v.TokenID())
	assert.Equal(t, "u-1", v.UserID())
	assert.True(t, v.UserIs("u-1"))
	assert.False(t, v.UserIs("u-2"))
	assert.Equal(t, "a-1", v.AppID())
	assert.Equal(t, "tn-1", v.TenantID())
	assert.Equal(t, "Alice", v.UserName(ctx))
	assert.NotNil(t, v.Basis())
}

func TestStoreErrorFailsSafe(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	raw, _ := env.seed(t, "fp", nil)
	env.redis.SetError("cache down")
	v := env.engine.Verify(ctx, raw, "fp")
	assert.Equal(t, StatusInvalidToken, v.Compare(ctx, "").Status)
	env.redis.SetError("")
}

func TestCompareTerminalContextMakesNoCalls(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	v := env.engine.Verify(ctx, "@@not-a-token@@", "fp")
	// Repeated queries on a dead context stay terminal.
	for i := 0; i < 3; i++ {
		assert.Equal(t, StatusInvalidToken, v.Compare(ctx, "a").Status)
	}
	assert.Zero(t, env.permits.calls)
	assert.Equal(t, "", v.AppID())
	assert.Equal(t, "", v.UserName(ctx))
	assert.Nil(t, v.Basis())
}

var errDown = errors.New("authority down")
