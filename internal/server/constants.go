package server

import "time"

const (
	// writeTimeout bounds every WebSocket write so one dead client cannot
	// hold a progress pump.
	writeTimeout = 5 * time.Second

	// shutdownTimeout is how long Shutdown waits for in-flight requests.
	shutdownTimeout = 15 * time.Second
)
