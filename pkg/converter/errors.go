package converter

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedConversion = errors.New("unsupported conversion")
	ErrUnparsable            = errors.New("unparsable value")
	ErrUnknownConverter      = errors.New("unknown converter")
)

// ConversionError describes a failed value conversion. Err is one of
// ErrUnsupportedConversion or ErrUnparsable, optionally wrapping a parse error.
type ConversionError struct {
	Value  any
	Target string
	Err    error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("convert %T(%v) to %s: %v", e.Value, e.Value, e.Target, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

func unsupported(v any, target string) error {
	return &ConversionError{Value: v, Target: target, Err: ErrUnsupportedConversion}
}

func unparsable(v any, target string, cause error) error {
	err := ErrUnparsable
	if cause != nil {
		err = fmt.Errorf("%w: %v", ErrUnparsable, cause)
	}
	return &ConversionError{Value: v, Target: target, Err: err}
}
