// SPDX-License-Identifier: MIT
package transport

// Transport defines a generic interface for sending processed data or events.
// Implementations should be thread-safe. Send must not retain data after it
// returns; callers reuse their buffers.
type Transport interface {
	Send(data any) error
	Close() error
}
