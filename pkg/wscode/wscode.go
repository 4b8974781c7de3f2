// Package wscode defines the application websocket close codes, in the
// private range above the RFC 6455 reserved codes.
package wscode

const (
	// InternalError closes a connection after an unrecoverable server-side
	// failure.
	InternalError = 4000

	// AuthenticationFailed closes a connection whose token was missing,
	// malformed, or expired. Sent before any registry state is touched.
	AuthenticationFailed = 4001
)

var messages = map[int]string{
	InternalError:        "internal error",
	AuthenticationFailed: "authentication failed",
}

// Message returns the description for a close code.
func Message(code int) string {
	if msg, ok := messages[code]; ok {
		return msg
	}
	return "unknown close code"
}
