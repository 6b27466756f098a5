package routeros

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"

	ros "github.com/go-routeros/routeros/v3"

	"github.com/nanoncore/nano-ctlplane/types"
)

// ErrDesync is returned when the router no longer recognizes the session's
// request tags, typically after a restart of the API service. The caller
// should discard the connection and retry once on a fresh one.
var ErrDesync = types.ErrDesync

// TrapCode is a normalized RouterOS !trap reason
type TrapCode string

const (
	TrapNoSuchItem    TrapCode = "NO_SUCH_ITEM"
	TrapAlreadyExists TrapCode = "ALREADY_EXISTS"
	TrapNoSuchCommand TrapCode = "NO_SUCH_COMMAND"
	TrapInvalidValue  TrapCode = "INVALID_VALUE"
	TrapUnknownParam  TrapCode = "UNKNOWN_PARAMETER"
	TrapPermission    TrapCode = "PERMISSION"
	TrapAuthFailed    TrapCode = "AUTH_FAILED"
	TrapBusy          TrapCode = "BUSY"
	TrapUnknown       TrapCode = "UNKNOWN"
)

// trapMapping describes one known trap message
type trapMapping struct {
	Code        TrapCode
	Human       string
	Recoverable bool
}

// trapPatterns maps lowercase trap message fragments to structured reasons.
// Order matters: the first match wins.
var trapPatterns = []struct {
	pattern string
	trapMapping
}{
	{"no such item", trapMapping{TrapNoSuchItem, "Record does not exist on the router", false}},
	{"no such command", trapMapping{TrapNoSuchCommand, "Command path is not available on this RouterOS version", false}},
	{"unknown parameter", trapMapping{TrapUnknownParam, "Parameter is not accepted by this command", false}},
	{"already have", trapMapping{TrapAlreadyExists, "A record with the same name already exists", false}},
	{"already exists", trapMapping{TrapAlreadyExists, "A record with the same name already exists", false}},
	{"invalid value", trapMapping{TrapInvalidValue, "Parameter value was rejected", false}},
	{"input does not match", trapMapping{TrapInvalidValue, "Parameter value has the wrong format", false}},
	{"not enough permissions", trapMapping{TrapPermission, "API user lacks the required policy", false}},
	{"invalid user name or password", trapMapping{TrapAuthFailed, "Router rejected the API credentials", false}},
	{"cannot log in", trapMapping{TrapAuthFailed, "Router rejected the API credentials", false}},
	{"action timed out", trapMapping{TrapBusy, "Router did not finish the action in time", true}},
	{"busy", trapMapping{TrapBusy, "Router is busy", true}},
}

// TrapError is a !trap reply. The session stays usable after one.
type TrapError struct {
	Category    string
	Message     string
	Code        TrapCode
	Human       string
	Recoverable bool
}

func (e *TrapError) Error() string {
	if e.Code == TrapUnknown {
		return fmt.Sprintf("router trap: %s", e.Message)
	}
	return fmt.Sprintf("router trap [%s]: %s (%s)", e.Code, e.Human, e.Message)
}

// NewTrapError classifies a trap message through the pattern table
func NewTrapError(category, message string) *TrapError {
	lower := strings.ToLower(message)
	for _, p := range trapPatterns {
		if strings.Contains(lower, p.pattern) {
			return &TrapError{
				Category:    category,
				Message:     message,
				Code:        p.Code,
				Human:       p.Human,
				Recoverable: p.Recoverable,
			}
		}
	}
	return &TrapError{Category: category, Message: message, Code: TrapUnknown, Human: message}
}

// desyncMarkers are reply errors meaning the server lost the client's tags
var desyncMarkers = []string{
	"unregistered tag",
	"unknown tag",
	"unknown reply",
	"tag not found",
}

// Classify maps a raw transport error onto the error taxonomy:
// *TrapError for !trap replies, ErrConnection for !fatal, ErrDesync for lost tag state or a session
// the router closed, ErrTimeout for deadlines and ErrConnection otherwise.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	var trap *TrapError
	if errors.As(err, &trap) || errors.Is(err, ErrDesync) || errors.Is(err, types.ErrTimeout) || errors.Is(err, types.ErrConnection) {
		return err
	}

	var dev *ros.DeviceError
	if errors.As(err, &dev) {
		// !fatal closes the session on the router side
		if dev.Sentence != nil && dev.Sentence.Word == "!fatal" {
			return fmt.Errorf("%w: %v", types.ErrConnection, err)
		}
		if dev.Sentence != nil {
			return NewTrapError(dev.Sentence.Map["category"], dev.Sentence.Map["message"])
		}
		return NewTrapError("", err.Error())
	}

	if IsDesync(err) {
		return fmt.Errorf("%w: %v", ErrDesync, err)
	}

	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return fmt.Errorf("%w: %v", types.ErrTimeout, err)
	}

	return fmt.Errorf("%w: %v", types.ErrConnection, err)
}

// IsDesync reports whether err carries the stale-session signature
func IsDesync(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDesync) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, net.ErrClosed) {
		return true
	}
	lower := strings.ToLower(err.Error())
	for _, m := range desyncMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// IsRecoverable reports whether a trap error may succeed on retry
func IsRecoverable(err error) bool {
	var trap *TrapError
	if errors.As(err, &trap) {
		return trap.Recoverable
	}
	return false
}
