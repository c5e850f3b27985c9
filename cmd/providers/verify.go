package providers

import (
	"github.com/spf13/viper"
	"go.insight.network/gateway/pkg/appcache"
	"go.insight.network/gateway/pkg/auth"
	"go.insight.network/gateway/pkg/permits"
	"go.insight.network/gateway/pkg/session"
	"go.insight.network/gateway/pkg/token"
	"go.insight.network/gateway/pkg/verify"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Verification engine config.
const (
	ConfVerifyDigest               = "verify.digest"
	ConfVerifyTimeoutWindow        = "verify.timeout_window"
	ConfVerifyRefreshOnConstruct   = "verify.refresh_on_construct"
	ConfVerifyEnforceSingleSession = "verify.enforce_single_session"
)

func init() {
	viper.SetDefault(ConfVerifyDigest, "md5")
	viper.SetDefault(ConfVerifyTimeoutWindow, verify.DefaultTimeoutWindow)
	viper.SetDefault(ConfVerifyRefreshOnConstruct, true)
	viper.SetDefault(ConfVerifyEnforceSingleSession, true)
}

// NewVerifyConfig builds the engine policy from config.
func NewVerifyConfig(log *zap.Logger) verify.Config {
	cfg := verify.Config{
		TimeoutWindow:        viper.GetDuration(ConfVerifyTimeoutWindow),
		RefreshOnConstruct:   viper.GetBool(ConfVerifyRefreshOnConstruct),
		EnforceSingleSession: viper.GetBool(ConfVerifyEnforceSingleSession),
	}
	switch digest := viper.GetString(ConfVerifyDigest); digest {
	case "md5":
		cfg.Digest = token.MD5Hex
	case "blake2b":
		cfg.Digest = token.Blake2bHex
	default:
		log.Fatal("Unknown " + ConfVerifyDigest + ": " + digest)
	}
	return cfg
}

// NewEngine provides the verification engine.
func NewEngine(
	log *zap.Logger,
	store *session.Store,
	client permits.Client,
	apps *appcache.Cache,
	cfg verify.Config,
) *verify.Engine {
	engine := verify.NewEngine(store, client, log.Named("verify"), cfg)
	engine.Apps = apps
	return engine
}

// NewInterceptor provides the gRPC auth interceptor.
func NewInterceptor(
	log *zap.Logger,
	engine *verify.Engine,
	meter metric.Meter,
) (*auth.Interceptor, error) {
	metrics, err := auth.NewInterceptorMetrics(meter)
	if err != nil {
		return nil, err
	}
	return &auth.Interceptor{
		Engine:  engine,
		Log:     log.Named("auth"),
		Metrics: metrics,
	}, nil
}
