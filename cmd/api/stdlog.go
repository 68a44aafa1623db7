package main

import (
	stdlog "log"

	"github.com/rs/zerolog"
)

// newStdLogger routes net/http server errors into zerolog.
func newStdLogger(l zerolog.Logger) *stdlog.Logger {
	return stdlog.New(l.With().Str("component", "http").Logger(), "", 0)
}
