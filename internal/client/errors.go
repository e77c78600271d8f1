package client

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthFailure means the credential exchange returned no token.
	ErrAuthFailure = errors.New("mpesa: access token not issued")
	// ErrGatewayUnreachable covers transport errors and timeouts.
	ErrGatewayUnreachable = errors.New("mpesa: gateway unreachable")
)

// GatewayRejectedError is returned when Daraja understood a request but declined it.
// Message is the gateway's own description, passed through verbatim.
type GatewayRejectedError struct {
	Code    string
	Message string
}

func (e *GatewayRejectedError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("mpesa rejected request (%s): %s", e.Code, e.Message)
	}
	return "mpesa rejected request: " + e.Message
}

func unreachable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrGatewayUnreachable, err)
}
