package types

import "fmt"

// DefaultCoAPort is the RFC 5176 Dynamic Authorization port
const DefaultCoAPort = 3799

// CoaRequest identifies the session to disconnect and the NAS holding it
type CoaRequest struct {
	// Username is the subscriber login (User-Name)
	Username string

	// NASAddress is the NAS IP or host, optionally with a port
	NASAddress string

	// Secret is the RADIUS shared secret for the NAS
	Secret string

	// SessionID narrows the match to one session (Acct-Session-Id)
	SessionID string

	// FramedIP narrows the match to one address (Framed-IP-Address)
	FramedIP string

	// Port is the CoA port, 0 selects DefaultCoAPort
	Port int
}

// Validate checks the mandatory fields before any socket is opened
func (r CoaRequest) Validate() error {
	switch {
	case r.Username == "":
		return &ValidationError{Field: "username"}
	case r.NASAddress == "":
		return &ValidationError{Field: "nas_address"}
	case r.Secret == "":
		return &ValidationError{Field: "secret"}
	}
	return nil
}

// OutcomeKind classifies the result of a disconnect exchange
type OutcomeKind string

const (
	OutcomeAcknowledged    OutcomeKind = "acknowledged"
	OutcomeRejected        OutcomeKind = "rejected"
	OutcomeTimedOut        OutcomeKind = "timed-out"
	OutcomeDecodeFailed    OutcomeKind = "decode-failed"
	OutcomeTransportFailed OutcomeKind = "transport-failed"
)

// CoaOutcome is the single result of one disconnect call
type CoaOutcome struct {
	Kind    OutcomeKind `json:"kind"`
	Message string      `json:"message"`

	// Code is the RADIUS response code when a response was decoded
	Code int `json:"code,omitempty"`

	// Anomaly marks a response with an unrecognized code
	Anomaly bool `json:"anomaly,omitempty"`
}

// Success reports whether the NAS acknowledged the disconnect
func (o CoaOutcome) Success() bool {
	return o.Kind == OutcomeAcknowledged
}

// Err maps a failed outcome onto the error taxonomy. Acknowledged and
// rejected outcomes carry a NAS answer and return nil.
func (o CoaOutcome) Err() error {
	switch o.Kind {
	case OutcomeTimedOut:
		return fmt.Errorf("%w: %s", ErrTimeout, o.Message)
	case OutcomeDecodeFailed:
		return fmt.Errorf("%w: %s", ErrDecode, o.Message)
	case OutcomeTransportFailed:
		return fmt.Errorf("%w: %s", ErrConnection, o.Message)
	default:
		return nil
	}
}
