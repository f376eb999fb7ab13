package domain

import "errors"

const (
	MsgServerResponse   = "Server error: Invalid response from backend."
	MsgInitiationFailed = "Payment initiation failed"
	MsgTransportFailed  = "Payment failed"
	MsgInvalidCart      = "Cart data is invalid. Please refresh and try again."
)

var (
	// ErrServerResponse means the backend answered with something that is not
	// a valid initiation response.
	ErrServerResponse = errors.New(MsgServerResponse)
	// ErrTransport means the backend could not be reached.
	ErrTransport = errors.New(MsgTransportFailed)
)

// GatewayRejectedError is an explicit refusal by the payment backend. Message
// is shown to the customer as is.
type GatewayRejectedError struct {
	Message string
}

func (e *GatewayRejectedError) Error() string {
	return e.Message
}
