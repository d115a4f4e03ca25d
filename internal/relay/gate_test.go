package relay

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateAdmit(t *testing.T) {
	tests := []struct {
		name     string
		checker  ParticipantChecker
		payload  []byte
		wantCode string
		wantHTTP int
	}{
		{
			name:    "well formed object from a participant",
			checker: allowAll{},
			payload: []byte(`{"body":"hello"}`),
		},
		{
			name:    "leading whitespace is tolerated",
			checker: allowAll{},
			payload: []byte("  \n\t{\"body\":\"hello\"}"),
		},
		{
			name:     "oversized payload",
			checker:  allowAll{},
			payload:  []byte(`{"body":"` + strings.Repeat("x", 64<<10) + `"}`),
			wantCode: CodePayloadTooLarge,
			wantHTTP: http.StatusBadRequest,
		},
		{
			name:     "top-level array",
			checker:  allowAll{},
			payload:  []byte(`[{"body":"hello"}]`),
			wantCode: CodeMalformedPayload,
			wantHTTP: http.StatusBadRequest,
		},
		{
			name:     "top-level string",
			checker:  allowAll{},
			payload:  []byte(`"hello"`),
			wantCode: CodeMalformedPayload,
			wantHTTP: http.StatusBadRequest,
		},
		{
			name:     "truncated object",
			checker:  allowAll{},
			payload:  []byte(`{"body":`),
			wantCode: CodeMalformedPayload,
			wantHTTP: http.StatusBadRequest,
		},
		{
			name:     "empty payload",
			checker:  allowAll{},
			payload:  []byte(""),
			wantCode: CodeMalformedPayload,
			wantHTTP: http.StatusBadRequest,
		},
		{
			name:     "non-participant",
			checker:  denyAll{},
			payload:  []byte(`{"body":"hello"}`),
			wantCode: CodeNotParticipant,
			wantHTTP: http.StatusForbidden,
		},
		{
			name: "membership lookup failure",
			checker: ParticipantCheckerFunc(func(context.Context, uint, uint) (bool, error) {
				return false, errors.New("db down")
			}),
			payload:  []byte(`{"body":"hello"}`),
			wantCode: "MEMBERSHIP_CHECK_FAILED",
			wantHTTP: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := NewGate(tt.checker, 64<<10)
			appErr := gate.Admit(context.Background(), 42, 1, tt.payload)

			if tt.wantCode == "" {
				assert.Nil(t, appErr)
				return
			}
			require.NotNil(t, appErr)
			assert.Equal(t, tt.wantCode, appErr.Code)
			assert.Equal(t, tt.wantHTTP, appErr.StatusCode)
		})
	}
}

func TestGateSizeLimitIsExact(t *testing.T) {
	gate := NewGate(allowAll{}, 32)

	atLimit := []byte(`{"b":"` + strings.Repeat("x", 32-8) + `"}`)
	require.Len(t, atLimit, 32)
	assert.Nil(t, gate.Admit(context.Background(), 42, 1, atLimit))

	over := bytes.Replace(atLimit, []byte(`"}`), []byte(`x"}`), 1)
	require.Len(t, over, 33)
	appErr := gate.Admit(context.Background(), 42, 1, over)
	require.NotNil(t, appErr)
	assert.Equal(t, CodePayloadTooLarge, appErr.Code)
}
