package apierror_test

import (
	"errors"
	"testing"

	"github.com/localspot/localspot-go/apierror"
	"github.com/stretchr/testify/require"
)

func TestFromResponsePassesThroughServerBody(t *testing.T) {
	body := []byte(`{"code":"VALIDATION_ERROR","message":"rating out of range","details":{"field":"rating"}}`)

	apiErr := apierror.FromResponse(422, body)

	require.Equal(t, 422, apiErr.Status)
	require.Equal(t, apierror.CodeValidation, apiErr.Code)
	require.Equal(t, "rating out of range", apiErr.Message)
	require.Equal(t, map[string]any{"field": "rating"}, apiErr.Details)
}

func TestFromResponseFallsBackToStatusText(t *testing.T) {
	apiErr := apierror.FromResponse(503, []byte("<html>gateway</html>"))

	require.Equal(t, 503, apiErr.Status)
	require.Empty(t, apiErr.Code)
	require.Equal(t, "Service Unavailable", apiErr.Message)
}

func TestFromTransportIsStatusZero(t *testing.T) {
	apiErr := apierror.FromTransport(errors.New("dial tcp: connection refused"))

	require.Equal(t, 0, apiErr.Status)
	require.Equal(t, apierror.CodeNetwork, apiErr.Code)
	require.Contains(t, apiErr.Message, "connection refused")
}

func TestHumanize(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, "Unknown error"},
		{"invalid credentials", &apierror.Error{Status: 401, Code: apierror.CodeInvalidCredentials, Message: "bad login"}, "Invalid email or password."},
		{"validation", &apierror.Error{Status: 422, Code: apierror.CodeValidation}, "Please check the form and try again."},
		{"network", apierror.FromTransport(errors.New("timeout")), "Network issue. Please retry."},
		{"server message", &apierror.Error{Status: 500, Message: "upstream exploded"}, "upstream exploded"},
		{"empty", &apierror.Error{Status: 500}, "Something went wrong"},
		{"plain error", errors.New("boom"), "boom"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, apierror.Humanize(tc.err))
		})
	}
}

func TestAsUnwrapsChain(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), apierror.AuthFailure())

	apiErr, ok := apierror.As(wrapped)
	require.True(t, ok)
	require.Equal(t, 401, apiErr.Status)
	require.Equal(t, apierror.CodeAuthFailure, apiErr.Code)
}
