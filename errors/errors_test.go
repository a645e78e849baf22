package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassification(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"empty content", ErrEmptyContent, CodeValidation, http.StatusBadRequest},
		{"wrapped receiver", fmt.Errorf("send: %w", ErrMissingReceiver), CodeValidation, http.StatusBadRequest},
		{"store down", Persistence(fmt.Errorf("disk full")), CodePersistence, http.StatusServiceUnavailable},
		{"no token", ErrUnauthenticated, CodeUnauthorized, http.StatusUnauthorized},
		{"buffer full", ErrSendBufferFull, CodeSessionExpired, http.StatusInternalServerError},
		{"anything else", fmt.Errorf("boom"), CodeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			req.Equal(tt.code, Code(tt.err))
			req.Equal(tt.status, HTTPStatus(tt.err))
		})
	}
}

func TestPersistence_KeepsCause(t *testing.T) {
	req := require.New(t)
	req.Nil(Persistence(nil))

	err := Persistence(fmt.Errorf("txn too big"))
	req.True(IsPersistence(err))
	req.False(IsValidation(err))
	req.Contains(err.Error(), "txn too big")
}
