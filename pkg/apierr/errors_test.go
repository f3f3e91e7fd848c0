package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsByCode(t *testing.T) {
	err := fmt.Errorf("save: %w", Wrap(CodeNotFound, "member m1 not found", errors.New("no rows")))

	assert.True(t, errors.Is(err, New(CodeNotFound, "")))
	assert.False(t, errors.Is(err, New(CodeAlreadyExists, "")))
	assert.EqualError(t, errors.Unwrap(errors.Unwrap(err)), "no rows")

	code, ok := CodeOf(err)
	assert.True(t, ok)
	assert.Equal(t, CodeNotFound, code)

	_, ok = CodeOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestError_MessageFallsBackToCode(t *testing.T) {
	assert.Equal(t, "NOT_FOUND", New(CodeNotFound, "").Error())
	e := WithMetadata(CodeInvalidArgument, "bad id", map[string]string{"field": "id"})
	assert.Equal(t, "id", e.Metadata["field"])
}

func TestCode_HTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, CodeMalformedRequest.HTTPStatus())
	assert.Equal(t, http.StatusUnauthorized, CodeUnauthorized.HTTPStatus())
	assert.Equal(t, http.StatusForbidden, CodeForbidden.HTTPStatus())
	assert.Equal(t, http.StatusInternalServerError, CodeNotFound.HTTPStatus())
}
