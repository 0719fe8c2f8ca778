package call

import "errors"

var (
	// ErrCallInProgress reports an originate attempt while another session
	// is still active for the conversation.
	ErrCallInProgress = errors.New("call: a call is already active for this conversation")

	// ErrCallEnded reports an operation on a session that ended while the
	// operation was in flight.
	ErrCallEnded = errors.New("call: session ended")

	// ErrInvalidState reports an operation that is not valid in the
	// session's current lifecycle state.
	ErrInvalidState = errors.New("call: operation not valid in current state")
)

// SignalingSendError wraps a failed envelope send. Losing a signaling
// message stalls the negotiation, so the session ends when one occurs.
type SignalingSendError struct {
	Err error
}

func (e *SignalingSendError) Error() string {
	return "call: signaling send failed: " + e.Err.Error()
}

func (e *SignalingSendError) Unwrap() error { return e.Err }
