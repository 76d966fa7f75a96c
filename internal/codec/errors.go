package codec

import "errors"

// ErrCodec is the sentinel wrapped by every error this package returns.
// Callers should use errors.Is(err, codec.ErrCodec) to detect codec failures
// per spec.md §7's CodecError kind.
var ErrCodec = errors.New("codec: error")

// Error wraps a codec failure with context and the sentinel above.
type Error struct {
	Op  string // operation that failed, e.g. "serialize", "parse"
	Msg string
	Err error // wrapped cause, nil for leaf errors
}

func (e *Error) Error() string {
	if e.Err != nil {
		return "codec: " + e.Op + ": " + e.Msg + ": " + e.Err.Error()
	}

	return "codec: " + e.Op + ": " + e.Msg
}

func (e *Error) Unwrap() error {
	if e.Err != nil {
		return errors.Join(ErrCodec, e.Err)
	}

	return ErrCodec
}

func newErr(op, msg string, cause error) *Error {
	return &Error{Op: op, Msg: msg, Err: cause}
}
