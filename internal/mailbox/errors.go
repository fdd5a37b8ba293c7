package mailbox

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrAborted is returned when a request was superseded and cancelled by its caller
var ErrAborted = errors.New("request aborted")

// ErrUnsupported is returned by backends that do not implement an optional endpoint
var ErrUnsupported = errors.New("operation not supported by backend")

// NetworkError reports a transport failure or a non-2xx response
type NetworkError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: HTTP %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ProtocolError reports a response body that does not follow the service contract
type ProtocolError struct {
	Op     string
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// IsUnauthorized reports whether err is a 401 from the remote service
func IsUnauthorized(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne) && ne.StatusCode == http.StatusUnauthorized
}
