package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rd := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rd.Close() })
	return NewStore(rd), mr
}

func testRecord() *Record {
	now := time.Now().Truncate(time.Second)
	return &Record{
		UserID:      "u-1",
		AppID:       "a-1",
		TenantID:    "tn-1",
		TokenHash:   "abc",
		ExpiryTime:  now.Add(time.Hour),
		FailureTime: now.Add(time.Hour),
		AutoRefresh: true,
		Life:        2 * time.Hour,
		PermitFuncs: []string{"readData"},
		PermitTime:  now,
		PermitLife:  15 * time.Minute,
	}
}

func TestRecordRoundtrip(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	rec := testRecord()
	require.NoError(t, store.PutRecord(ctx, "t-1", rec, time.Hour))
	got, err := store.GetRecord(ctx, "t-1")
	require.NoError(t, err)
	assert.Equal(t, rec.UserID, got.UserID)
	assert.Equal(t, rec.PermitFuncs, got.PermitFuncs)
	assert.True(t, rec.ExpiryTime.Equal(got.ExpiryTime))
}

func TestRecordAbsent(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	_, err := store.GetRecord(ctx, "nope")
	assert.ErrorIs(t, err, ErrAbsent)
}

func TestRecordCorrupt(t *testing.T) {
	// A record we cannot parse must read as absent, never crash.
	ctx := context.Background()
	store, mr := newTestStore(t)
	require.NoError(t, mr.Set("Token:t-1", "{invalid json"))
	_, err := store.GetRecord(ctx, "t-1")
	assert.ErrorIs(t, err, ErrAbsent)
}

func TestPutRecordKeepTTL(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)
	rec := testRecord()
	require.NoError(t, store.PutRecord(ctx, "t-1", rec, time.Hour))
	before := mr.TTL("Token:t-1")
	rec.PermitFuncs = []string{"writeData"}
	require.NoError(t, store.PutRecordKeepTTL(ctx, "t-1", rec))
	assert.Equal(t, before, mr.TTL("Token:t-1"))
	got, err := store.GetRecord(ctx, "t-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"writeData"}, got.PermitFuncs)
}

func TestUserInvalid(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	// Absent flag reads as enabled.
	invalid, err := store.UserInvalid(ctx, "u-1")
	require.NoError(t, err)
	assert.False(t, invalid)

	require.NoError(t, store.PutUser(ctx, "u-1", &User{Account: "alice", Name: "Alice", Invalid: true}))
	invalid, err = store.UserInvalid(ctx, "u-1")
	require.NoError(t, err)
	assert.True(t, invalid)

	u, err := store.GetUser(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Account)
	assert.True(t, u.Invalid)
}

func TestAppSingleSignOn(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	sso, err := store.AppSingleSignOn(ctx, "a-1")
	require.NoError(t, err)
	assert.False(t, sso)
	require.NoError(t, store.SetAppSingleSignOn(ctx, "a-1", true))
	sso, err = store.AppSingleSignOn(ctx, "a-1")
	require.NoError(t, err)
	assert.True(t, sso)
}

func TestAuthoritativeToken(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	val, err := store.AuthoritativeToken(ctx, "u-1", "a-1")
	require.NoError(t, err)
	assert.Equal(t, "", val)
	require.NoError(t, store.SetAuthoritativeToken(ctx, "u-1", "a-1", "t-2"))
	val, err = store.AuthoritativeToken(ctx, "u-1", "a-1")
	require.NoError(t, err)
	assert.Equal(t, "t-2", val)
}

func TestPermits(t *testing.T) {
	rec := &Record{PermitFuncs: []string{"readData", "WriteData"}}
	assert.True(t, rec.Permits("readData"))
	assert.True(t, rec.Permits("READDATA"))
	assert.True(t, rec.Permits("nope,writedata"))
	assert.False(t, rec.Permits("nope,other"))
	assert.False(t, rec.Permits(""))
	assert.False(t, (&Record{}).Permits("readData"))
}
