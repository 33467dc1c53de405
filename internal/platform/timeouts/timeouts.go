// Package timeouts defines shared timeout constants used across binaries.
// Centralizing these values prevents drift between the server and the
// maintenance tooling and makes the durations discoverable.
package timeouts

import "time"

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long an HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 10 * time.Second

// Maintenance caps a full maintenance sweep over the games database.
const Maintenance = 5 * time.Minute
