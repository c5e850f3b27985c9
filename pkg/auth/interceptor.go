package auth

import (
	"context"

	"go.insight.network/gateway/pkg/verify"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// Metadata keys read from incoming requests.
const (
	MDAuthorization = "authorization"
	MDFingerprint   = "fingerprint"
)

// Credentials attaches a token and fingerprint to outgoing requests.
type Credentials struct {
	Token       string
	Fingerprint string
}

// RequireTransportSecurity returns false, TLS terminates at the edge proxy.
func (c *Credentials) RequireTransportSecurity() bool {
	return false
}

// GetRequestMetadata fetches the authentication gRPC metadata.
func (c *Credentials) GetRequestMetadata(_ context.Context, _ ...string) (map[string]string, error) {
	return map[string]string{
		MDAuthorization: c.Token,
		MDFingerprint:   c.Fingerprint,
	}, nil
}

// Interceptor is a gRPC server interceptor running token verification
// and authorization on every request.
type Interceptor struct {
	Engine *verify.Engine
	Log    *zap.Logger
	// Codes maps full gRPC method names to the comma-separated
	// authorization codes guarding them. Methods without an entry
	// only require authentication.
	Codes   map[string]string
	Metrics *InterceptorMetrics
}

func (i *Interceptor) intercept(ctx context.Context, fullMethod string) (context.Context, error) {
	// Get the auth token from the gRPC request.
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ctx, status.Error(codes.Unauthenticated, "missing metadata on request")
	}
	authVals := md.Get(MDAuthorization)
	if len(authVals) != 1 {
		return ctx, status.Error(codes.Unauthenticated, "missing auth header")
	}
	fingerprint := ""
	if fpVals := md.Get(MDFingerprint); len(fpVals) == 1 {
		fingerprint = fpVals[0]
	}
	v := i.Engine.Verify(ctx, authVals[0], fingerprint)
	res := v.Compare(ctx, i.Codes[fullMethod])
	i.Metrics.observe(ctx, res)
	switch res.Status {
	case verify.StatusSuccess:
		return WithIdentity(ctx, &Identity{
			TokenID:  v.TokenID(),
			UserID:   v.UserID(),
			AppID:    v.AppID(),
			TenantID: v.TenantID(),
		}), nil
	case verify.StatusInvalidToken:
		return ctx, status.Error(codes.Unauthenticated, "invalid auth token")
	case verify.StatusExpiredToken:
		return ctx, status.Error(codes.Unauthenticated, "expired auth token")
	case verify.StatusForbidden:
		return ctx, status.Error(codes.PermissionDenied, res.Message)
	case verify.StatusUnauthorized:
		return ctx, status.Error(codes.PermissionDenied, "unauthorized function")
	default:
		i.Log.Error("Unhandled verification status", zap.Stringer("status", res.Status))
		return ctx, status.Error(codes.Internal, "internal auth error")
	}
}

// Unary returns a gRPC unary server interceptor for authentication.
func (i *Interceptor) Unary() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (resp interface{}, err error) {
		ctx, err = i.intercept(ctx, info.FullMethod)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// Stream returns a gRPC stream server interceptor for authentication.
func (i *Interceptor) Stream() grpc.StreamServerInterceptor {
	return func(
		srv interface{},
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		ctx, err := i.intercept(ss.Context(), info.FullMethod)
		if err != nil {
			return err
		}
		wrappedStream := &serverStream{
			ServerStream: ss,
			ctx:          ctx,
		}
		return handler(srv, wrappedStream)
	}
}

type serverStream struct {
	grpc.ServerStream
	ctx context.Context
}

// Context returns the embedded context.
func (s *serverStream) Context() context.Context {
	return s.ctx
}

// InterceptorMetrics counts verification decisions by outcome.
type InterceptorMetrics struct {
	allowed metric.Int64Counter
	denied  metric.Int64Counter
}

// NewInterceptorMetrics registers the decision counters.
func NewInterceptorMetrics(m metric.Meter) (*InterceptorMetrics, error) {
	metrics := new(InterceptorMetrics)
	var err error
	metrics.allowed, err = m.NewInt64Counter("auth_decisions_allowed")
	if err != nil {
		return nil, err
	}
	metrics.denied, err = m.NewInt64Counter("auth_decisions_denied")
	if err != nil {
		return nil, err
	}
	return metrics, nil
}

func (m *InterceptorMetrics) observe(ctx context.Context, res verify.Result) {
	if m == nil {
		return
	}
	if res.OK() {
		m.allowed.Add(ctx, 1)
	} else {
		m.denied.Add(ctx, 1)
	}
}
