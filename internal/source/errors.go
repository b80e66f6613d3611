package source

import (
	"errors"
	"fmt"
)

var (
	// ErrEncodingsExhausted is returned when no candidate encoding produced a
	// clean parse. The error is joined with each attempt's reason.
	ErrEncodingsExhausted = errors.New("no candidate encoding could parse the input")

	// ErrNoDelimiter is returned by Sniff when no delimiter is consistent
	// across the sample.
	ErrNoDelimiter = errors.New("could not determine delimiter")

	// ErrNoHeader is returned when the input has no header row.
	ErrNoHeader = errors.New("missing header row")

	// ErrUnknownEncoding is returned for encoding names that cannot be resolved.
	ErrUnknownEncoding = errors.New("unknown encoding")
)

// DecodeError reports bytes that are not valid in the assumed encoding.
type DecodeError struct {
	Encoding string
	Offset   int64 // -1 when the decoder does not report a position
	Err      error
}

func (e *DecodeError) Error() string {
	msg := fmt.Sprintf("invalid %s data", e.Encoding)
	if e.Offset >= 0 {
		msg = fmt.Sprintf("%s at byte %d", msg, e.Offset)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
