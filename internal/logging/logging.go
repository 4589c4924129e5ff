// Package logging builds the process logger: the log/slog API on top of a
// charmbracelet/log handler.
package logging

import (
	"io"
	"log/slog"

	"github.com/charmbracelet/log"
)

func New(w io.Writer, level string) (*slog.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	handler := log.NewWithOptions(w, log.Options{
		Level:           lvl,
		ReportTimestamp: true,
		Prefix:          "chatterbox",
	})
	return slog.New(handler), nil
}
