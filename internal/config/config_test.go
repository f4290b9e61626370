package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestValidateHost(t *testing.T) {
	require.NoError(t, ValidateHost("127.0.0.1"))
	require.NoError(t, ValidateHost("datastore.internal"))
	require.Error(t, ValidateHost(""))
	require.Error(t, ValidateHost("not a hostname!"))
}

func TestValidatePort(t *testing.T) {
	require.NoError(t, ValidatePort(41000))
	require.Error(t, ValidatePort(0))
	require.Error(t, ValidatePort(70000))
}

func TestValidateTimeout(t *testing.T) {
	require.NoError(t, ValidateTimeout("250ms"))
	require.Error(t, ValidateTimeout("not-a-duration"))
	require.Error(t, ValidateTimeout("-1s"))
}

func TestValidateDuration(t *testing.T) {
	require.NoError(t, ValidateDuration(250*time.Millisecond))
	require.Error(t, ValidateDuration(0))
	require.Error(t, ValidateDuration(-1))
}
