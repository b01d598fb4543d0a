package error

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypedErrorsImplementGenericError(t *testing.T) {
	cases := []struct {
		err    GenericError
		code   string
		status int
	}{
		{AuthError("bad token"), "AUTH_ERROR", http.StatusUnauthorized},
		{ConfigError("no instance"), "CONFIG_ERROR", http.StatusUnprocessableEntity},
		{ParseError("unknown shape"), "PARSE_ERROR", http.StatusBadRequest},
		{EngineError("timeout"), "ENGINE_ERROR", http.StatusBadGateway},
		{SendError("500 from provider"), "SEND_ERROR", http.StatusBadGateway},
		{PersistenceError("db down"), "PERSISTENCE_ERROR", http.StatusInternalServerError},
		{ValidationError("invalid"), "VALIDATION_ERROR", http.StatusBadRequest},
		{NotFoundError("missing"), "NOT_FOUND_ERROR", http.StatusNotFound},
		{InternalServerError("boom"), "INTERNAL_SERVER_ERROR", http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.code, tc.err.ErrCode())
		assert.Equal(t, tc.status, tc.err.StatusCode())
	}
}

func TestErrorsAsThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("respond: %w", EngineError("dialogflow unreachable"))

	var engErr EngineError
	assert.True(t, errors.As(wrapped, &engErr))
	assert.Equal(t, "dialogflow unreachable", engErr.Error())
}
