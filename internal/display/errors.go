// SPDX-License-Identifier: GPL-3.0-only

package display

// Kind classifies display operation failures.
type Kind int

const (
	// KindTimedOut covers every transport-level failure: capability
	// refresh and VCP get/set.
	KindTimedOut Kind = iota + 1
	// KindUnsupported covers a missing display or a missing feature.
	KindUnsupported
)

func (k Kind) String() string {
	switch k {
	case KindTimedOut:
		return "timed out"
	case KindUnsupported:
		return "unsupported"
	default:
		return "unknown error"
	}
}

// Error is the error type returned by Manager operations.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

var (
	// ErrTimedOut matches any KindTimedOut error with errors.Is.
	ErrTimedOut = &Error{Kind: KindTimedOut}

	// ErrUnsupported matches any KindUnsupported error with errors.Is.
	ErrUnsupported = &Error{Kind: KindUnsupported}
)

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

func timedOut(err error) error {
	return &Error{Kind: KindTimedOut, Msg: "display did not respond", Err: err}
}

func unsupported(msg string) error {
	return &Error{Kind: KindUnsupported, Msg: msg}
}
