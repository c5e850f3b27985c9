package verify

// Status is the closed set of verification outcomes.
type Status int

// Verification outcomes.
const (
	StatusSuccess Status = iota
	StatusInvalidToken
	StatusExpiredToken
	StatusForbidden
	StatusUnauthorized
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusInvalidToken:
		return "invalid_token"
	case StatusExpiredToken:
		return "expired_token"
	case StatusForbidden:
		return "forbidden"
	case StatusUnauthorized:
		return "unauthorized"
	default:
		return "unknown"
	}
}

// Result is the decision returned to the calling layer, which maps it
// to a protocol-level response. It is always a value, never an error.
type Result struct {
	Status  Status
	Message string
}

// OK reports whether the decision allows the request.
func (r Result) OK() bool {
	return r.Status == StatusSuccess
}

func success() Result {
	return Result{Status: StatusSuccess}
}

func invalidToken() Result {
	return Result{Status: StatusInvalidToken, Message: "invalid token"}
}

func expiredToken() Result {
	return Result{Status: StatusExpiredToken, Message: "expired token"}
}

func forbid(reason string) Result {
	return Result{Status: StatusForbidden, Message: reason}
}

func noAuth() Result {
	return Result{Status: StatusUnauthorized, Message: "unauthorized function"}
}
