package websocket

import (
	stdlog "log"
)

// Package-level logger for the websocket package.
var log = stdlog.New(stdlog.Writer(), "[websocket] ", stdlog.LstdFlags)
