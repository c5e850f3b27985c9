package session

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrAbsent is returned when a session record is not present in the cache.
var ErrAbsent = errors.New("session absent")

// Key prefixes in the shared cache.
const (
	keyToken     = "Token:"     // string: JSON Record
	keyUser      = "User:"      // hash: account, name, invalid
	keyApp       = "App:"       // hash: SignInType
	keyUserToken = "UserToken:" // hash: {appID} -> authoritative token ID
)

// Hash fields.
const (
	FieldInvalid    = "invalid"
	FieldSignInType = "SignInType"
)

// Store adapts the shared Redis cache for session state.
// Every call is a single atomic cache operation; concurrent writers
// are resolved last-write-wins.
type Store struct {
	Redis *redis.Client
}

// NewStore returns a store over the given Redis client.
func NewStore(rd *redis.Client) *Store {
	return &Store{Redis: rd}
}

// GetRecord reads a session record by token ID.
// A corrupt record reads as absent: a record we cannot parse must
// never authenticate anyone.
func (s *Store) GetRecord(ctx context.Context, tokenID string) (*Record, error) {
	val, err := s.Redis.Get(ctx, keyToken+tokenID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrAbsent
	} else if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return nil, ErrAbsent
	}
	return &rec, nil
}

// PutRecord writes a session record with the given cache TTL.
func (s *Store) PutRecord(ctx context.Context, tokenID string, rec *Record, ttl time.Duration) error {
	buf, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.Redis.Set(ctx, keyToken+tokenID, buf, ttl).Err()
}

// PutRecordKeepTTL writes a session record without touching its
// remaining cache TTL.
func (s *Store) PutRecordKeepTTL(ctx context.Context, tokenID string, rec *Record) error {
	buf, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.Redis.Set(ctx, keyToken+tokenID, buf, redis.KeepTTL).Err()
}

// RecordTTL returns the remaining cache TTL of a session record.
func (s *Store) RecordTTL(ctx context.Context, tokenID string) (time.Duration, error) {
	return s.Redis.PTTL(ctx, keyToken+tokenID).Result()
}

// DeleteRecord removes a session record from the cache.
func (s *Store) DeleteRecord(ctx context.Context, tokenID string) error {
	return s.Redis.Del(ctx, keyToken+tokenID).Err()
}

// GetUser reads the cached account state of a user.
func (s *Store) GetUser(ctx context.Context, userID string) (*User, error) {
	fields, err := s.Redis.HGetAll(ctx, keyUser+userID).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, ErrAbsent
	}
	invalid, _ := strconv.ParseBool(fields[FieldInvalid])
	return &User{
		Account: fields["account"],
		Name:    fields["name"],
		Invalid: invalid,
	}, nil
}

// PutUser writes the cached account state of a user.
func (s *Store) PutUser(ctx context.Context, userID string, u *User) error {
	return s.Redis.HSet(ctx, keyUser+userID,
		"account", u.Account,
		"name", u.Name,
		FieldInvalid, strconv.FormatBool(u.Invalid),
	).Err()
}

// UserInvalid reports whether a user account is disabled.
// An absent flag reads as enabled, matching the behavior sessions were
// issued under. See DESIGN.md for the fail-open/fail-closed trade-off.
func (s *Store) UserInvalid(ctx context.Context, userID string) (bool, error) {
	val, err := s.Redis.HGet(ctx, keyUser+userID, FieldInvalid).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	invalid, _ := strconv.ParseBool(val)
	return invalid, nil
}

// AppSingleSignOn reports whether the app enforces single-device sign-in.
func (s *Store) AppSingleSignOn(ctx context.Context, appID string) (bool, error) {
	val, err := s.Redis.HGet(ctx, keyApp+appID, FieldSignInType).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	sso, _ := strconv.ParseBool(val)
	return sso, nil
}

// SetAppSingleSignOn sets the single-device sign-in policy of an app.
func (s *Store) SetAppSingleSignOn(ctx context.Context, appID string, enabled bool) error {
	return s.Redis.HSet(ctx, keyApp+appID, FieldSignInType, strconv.FormatBool(enabled)).Err()
}

// AuthoritativeToken returns the token ID of the user's current
// session for the app, or "" if none is recorded.
func (s *Store) AuthoritativeToken(ctx context.Context, userID, appID string) (string, error) {
	val, err := s.Redis.HGet(ctx, keyUserToken+userID, appID).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	} else if err != nil {
		return "", err
	}
	return val, nil
}

// SetAuthoritativeToken records the user's current session for the app.
func (s *Store) SetAuthoritativeToken(ctx context.Context, userID, appID, tokenID string) error {
	return s.Redis.HSet(ctx, keyUserToken+userID, appID, tokenID).Err()
}
