package dispatch

import (
	"errors"

	"github.com/r9s-ai/open-data-router/pkg/apierr"
	"github.com/r9s-ai/open-data-router/pkg/converter"
	"github.com/r9s-ai/open-data-router/pkg/datamodel"
	"github.com/r9s-ai/open-data-router/pkg/datawrapper"
)

const (
	StatusKey  = "status"
	CodeKey    = "code"
	MessageKey = "message"

	StatusError = "error"
)

// ErrorCode classifies err for the wire.
func ErrorCode(err error) apierr.Code {
	if code, ok := apierr.CodeOf(err); ok {
		return code
	}
	var convErr *converter.ConversionError
	switch {
	case errors.As(err, &convErr),
		errors.Is(err, converter.ErrUnsupportedConversion),
		errors.Is(err, converter.ErrUnparsable):
		return apierr.CodeConversionError
	case datamodel.IsDataError(err), isWrapperError(err):
		return apierr.CodeDataError
	}
	return apierr.CodeInternal
}

// ErrorMessage is the caller-facing text for err. Unclassified errors are
// not echoed.
func ErrorMessage(err error) string {
	var ae *apierr.Error
	if errors.As(err, &ae) {
		return ae.Error()
	}
	if ErrorCode(err) == apierr.CodeInternal {
		return "internal error"
	}
	return err.Error()
}

func isWrapperError(err error) bool {
	for _, target := range []error{
		datawrapper.ErrInvalidValue,
		datawrapper.ErrReservedKey,
		datawrapper.ErrImmutableKey,
		datawrapper.ErrKeyNotFound,
		datawrapper.ErrInvalidJSON,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// ErrorEnvelope builds {status:"error", code, message}.
func ErrorEnvelope(code apierr.Code, message string) *datawrapper.DataWrapper {
	w := datawrapper.New()
	_ = w.PutString(StatusKey, StatusError)
	_ = w.PutString(CodeKey, string(code))
	_ = w.PutString(MessageKey, message)
	return w
}

// ensureErrorShape copies w and fills in status, code and message when the
// hook left them out.
func ensureErrorShape(w *datawrapper.DataWrapper, code apierr.Code, message string) *datawrapper.DataWrapper {
	if w == nil {
		return ErrorEnvelope(code, message)
	}
	out := w.Clone()
	if out.Has(StatusKey) {
		return out
	}
	_ = out.PutString(StatusKey, StatusError)
	if !out.Has(CodeKey) {
		_ = out.PutString(CodeKey, string(code))
	}
	if !out.Has(MessageKey) {
		_ = out.PutString(MessageKey, message)
	}
	return out
}

func envelopeCode(w *datawrapper.DataWrapper) string {
	if w == nil {
		return ""
	}
	code, _ := w.GetString(CodeKey)
	return code
}
