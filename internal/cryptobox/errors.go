package cryptobox

import "errors"

// ErrCrypto is the sentinel wrapped by every error this package returns,
// corresponding to spec.md §7's CryptoError kind.
var ErrCrypto = errors.New("cryptobox: error")

// Error wraps a crypto-box failure with context.
type Error struct {
	Op  string
	Msg string
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return "cryptobox: " + e.Op + ": " + e.Msg + ": " + e.Err.Error()
	}

	return "cryptobox: " + e.Op + ": " + e.Msg
}

func (e *Error) Unwrap() error {
	if e.Err != nil {
		return errors.Join(ErrCrypto, e.Err)
	}

	return ErrCrypto
}

func newErr(op, msg string, cause error) *Error {
	return &Error{Op: op, Msg: msg, Err: cause}
}
