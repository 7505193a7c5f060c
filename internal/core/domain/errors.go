package domain

import "errors"

var (
	// ErrTransport covers handshake and socket I/O failures. Recoverable.
	ErrTransport = errors.New("transport error")
	// ErrTimeout is returned when the handshake watchdog expires. Recoverable.
	ErrTimeout = errors.New("handshake timed out")
	// ErrProtocol marks a malformed server message. Terminal for the session.
	ErrProtocol = errors.New("protocol error")
	// ErrExhaustedRetries is the cause of the Error state once the attempt cap is hit.
	ErrExhaustedRetries = errors.New("max reconnect attempts exceeded")

	ErrNotConnected  = errors.New("not connected")
	ErrCorruptFrame  = errors.New("corrupt frame")
	ErrSettingsStore = errors.New("settings store unavailable")
)

// IsRecoverable reports whether a failure may be retried by the reconnect policy.
func IsRecoverable(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrProtocol) && !errors.Is(err, ErrExhaustedRetries)
}
