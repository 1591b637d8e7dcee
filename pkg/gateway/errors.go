package gateway

// ErrorKind classifies gateway failures for retry and refund decisions.
type ErrorKind string

const (
	ErrTimeout           ErrorKind = "GATEWAY_TIMEOUT"            // no response within the request timeout
	ErrQuotaExceeded     ErrorKind = "GATEWAY_QUOTA_EXCEEDED"     // provider reports insufficient quota
	ErrInvalidCredential ErrorKind = "GATEWAY_INVALID_CREDENTIAL" // 401 from provider
	ErrProvider          ErrorKind = "GATEWAY_PROVIDER_ERROR"     // everything else
)

// Error is the typed failure returned by the gateway client.
type Error struct {
	Kind       ErrorKind `json:"kind"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
}

func (e *Error) Error() string { return e.Message }

// KindOf returns the gateway error kind, or ErrProvider for foreign errors.
func KindOf(err error) ErrorKind {
	if ge, ok := err.(*Error); ok {
		return ge.Kind
	}
	return ErrProvider
}

// IsRetryable reports whether the failure is worth another attempt.
func IsRetryable(err error) bool {
	if ge, ok := err.(*Error); ok {
		return ge.Retryable
	}
	return false
}
