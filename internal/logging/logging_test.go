package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRespectsLevel(t *testing.T) {
	req := require.New(t)
	var buf bytes.Buffer

	logger, err := New(&buf, "warn")
	req.NoError(err)

	logger.Info("hidden")
	logger.Warn("shown", "user_id", "u1")

	req.NotContains(buf.String(), "hidden")
	req.Contains(buf.String(), "shown")
	req.Contains(buf.String(), "u1")
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(&bytes.Buffer{}, "verbose")
	require.Error(t, err)
}
