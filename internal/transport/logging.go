// SPDX-License-Identifier: MIT
package transport

import (
	"sync/atomic"

	"patchbay/internal/log"
)

// LoggingTransport implements the Transport interface by logging data at
// debug level. It is used when no network sink is configured.
type LoggingTransport struct {
	sent atomic.Uint64
}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	log.Info("transport: using LoggingTransport")
	return &LoggingTransport{}
}

// Send logs the type of the received data. It never fails.
func (lt *LoggingTransport) Send(data any) error {
	n := lt.sent.Add(1)
	if log.GetLevel() == log.LevelDebug {
		log.WithField("seq", n).Debugf("transport: received %T", data)
	}
	return nil
}

// Sent returns the number of messages received so far.
func (lt *LoggingTransport) Sent() uint64 {
	return lt.sent.Load()
}

// Close logs the total and returns nil.
func (lt *LoggingTransport) Close() error {
	log.Infof("transport: LoggingTransport closed after %d messages", lt.sent.Load())
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
