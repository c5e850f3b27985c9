package verify

import (
	"context"
	"time"

	"go.insight.network/gateway/pkg/permits"
	"go.uber.org/zap"
)

// Compare decides whether the verified session may proceed, and, when
// authCodes is non-empty, whether it may invoke the guarded function.
// Checks run in a fixed order; each has distinct, user-visible meaning.
// Compare always returns a value, never panics and never propagates
// downstream failures.
func (v *Verification) Compare(ctx context.Context, authCodes string) Result {
	if v.basis == nil {
		return invalidToken()
	}
	if v.isInvalid(ctx) {
		return forbid("account is disabled")
	}
	if v.engine.Config.EnforceSingleSession && v.isLoginElsewhere(ctx) {
		return forbid("account signed in on another device")
	}
	if !v.basis.VerifyToken(v.hash) {
		return invalidToken()
	}
	now := time.Now()
	if v.basis.Expired(now) {
		return expiredToken()
	}
	if v.basis.Failed(now) {
		return invalidToken()
	}
	// No function guarded: authentication only.
	if authCodes == "" {
		return success()
	}
	if v.isPermit(ctx, authCodes) {
		return success()
	}
	account := ""
	if u := v.loadUser(ctx); u != nil {
		account = u.Account
	}
	v.engine.Log.Warn("Denied use of unauthorized function",
		zap.String("account", account),
		zap.String("authCodes", authCodes))
	return noAuth()
}

// isInvalid reports whether the account is disabled.
// An absent flag reads as enabled; store errors read as disabled.
func (v *Verification) isInvalid(ctx context.Context) bool {
	invalid, err := v.engine.Store.UserInvalid(ctx, v.userID)
	if err != nil {
		v.engine.Log.Error("Failed to read account state",
			zap.String("userId", v.userID), zap.Error(err))
		return true
	}
	return invalid
}

// isLoginElsewhere reports whether this session has been superseded by
// a newer login for the same user and app. Only apps with single-device
// sign-in enabled are checked.
func (v *Verification) isLoginElsewhere(ctx context.Context) bool {
	appID := v.basis.AppID
	sso, err := v.singleSignOn(ctx, appID)
	if err != nil {
		v.engine.Log.Error("Failed to read app sign-in policy",
			zap.String("appId", appID), zap.Error(err))
		return false
	}
	if !sso {
		return false
	}
	authoritative, err := v.engine.Store.AuthoritativeToken(ctx, v.userID, appID)
	if err != nil {
		v.engine.Log.Error("Failed to read authoritative token",
			zap.String("userId", v.userID), zap.Error(err))
		return false
	}
	return v.tokenID != authoritative
}

func (v *Verification) singleSignOn(ctx context.Context, appID string) (bool, error) {
	if v.engine.Apps != nil {
		return v.engine.Apps.SingleSignOn(ctx, appID)
	}
	return v.engine.Store.AppSingleSignOn(ctx, appID)
}

// isPermit reports whether any of the requested codes is granted to
// the session. A stale permit snapshot is refreshed from the
// permission authority first; if the authority is unreachable the
// last known grants are used instead of failing the request.
func (v *Verification) isPermit(ctx context.Context, authCodes string) bool {
	basis := v.basis
	if basis.PermitsStale(time.Now()) {
		v.refreshPermits(ctx)
	}
	return basis.Permits(authCodes)
}

func (v *Verification) refreshPermits(ctx context.Context) {
	e := v.engine
	reply, err := e.Permits.GetPermits(ctx, permits.Request{
		TokenID:  v.tokenID,
		UserID:   v.userID,
		AppID:    v.basis.AppID,
		TenantID: v.basis.TenantID,
	})
	if err != nil {
		e.Log.Warn("Permission authority unreachable, using cached grants",
			zap.String("tokenId", v.tokenID), zap.Error(err))
		return
	}
	if !reply.Success {
		e.Log.Warn("Permission authority refused refresh",
			zap.String("tokenId", v.tokenID), zap.String("message", reply.Message))
		return
	}
	v.basis.PermitFuncs = reply.Data
	v.basis.PermitTime = time.Now()
	// Keep the record's remaining TTL: only sliding refresh may
	// extend a session's lifetime.
	if err := e.Store.PutRecordKeepTTL(ctx, v.tokenID, v.basis); err != nil {
		e.Log.Error("Failed to write refreshed permits",
			zap.String("tokenId", v.tokenID), zap.Error(err))
	}
}
