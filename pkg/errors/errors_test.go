package errors

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	err := &Error{Type: ErrorTypeServerError, Code: 502, Message: "server error", Err: io.EOF}
	assert.Equal(t, "server_error error (code 502): server error", err.Error())
	assert.True(t, errors.Is(err, io.EOF))
}

func TestIsRetryable(t *testing.T) {
	retryable := []ErrorType{ErrorTypeRateLimit, ErrorTypeMissingResult, ErrorTypeParsing, ErrorTypeServerError, ErrorTypeTimeout}
	for _, et := range retryable {
		assert.True(t, IsRetryable(et), et)
	}
	fatal := []ErrorType{ErrorTypeNetwork, ErrorTypeInvalidRequest, ErrorTypeUnknown, ErrorType("other")}
	for _, et := range fatal {
		assert.False(t, IsRetryable(et), et)
	}
}

func TestIsRetryableStatusCode(t *testing.T) {
	for _, code := range []int{429, 500, 502, 503, 504, 520} {
		assert.True(t, IsRetryableStatusCode(code), code)
	}
	for _, code := range []int{200, 400, 401, 403, 404, 418} {
		assert.False(t, IsRetryableStatusCode(code), code)
	}
}

func TestMalformedCheckpointError(t *testing.T) {
	tests := []struct {
		name string
		err  *MalformedCheckpointError
		want string
	}{
		{
			name: "row and value",
			err:  &MalformedCheckpointError{Path: "XETHZEUR", Row: 3, Value: "soon", Reason: "index is not a timestamp"},
			want: `malformed checkpoint XETHZEUR (row 3, value "soon"): index is not a timestamp`,
		},
		{
			name: "header problem",
			err:  &MalformedCheckpointError{Path: "XETHZEUR", Reason: "missing column XETHZEUR_price"},
			want: "malformed checkpoint XETHZEUR: missing column XETHZEUR_price",
		},
		{
			name: "no path",
			err:  &MalformedCheckpointError{Row: 2, Reason: "bad price"},
			want: "malformed checkpoint (row 2): bad price",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestSchemaMismatchError(t *testing.T) {
	err := &SchemaMismatchError{Checkpoint: "price,volume", Fetched: "price,volume,side,order_type"}
	assert.Contains(t, err.Error(), "checkpoint has price,volume")
	assert.Contains(t, err.Error(), "fetched records have price,volume,side,order_type")
}
