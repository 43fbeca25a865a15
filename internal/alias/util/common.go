package util

import (
	"io"
	"log/slog"
)

// CloseLogged closes c and logs a failure instead of returning it. Use it
// in defers where there is nobody left to hand the error to.
func CloseLogged(c io.Closer, what string) {
	if err := c.Close(); err != nil {
		slog.Warn("close failed", "what", what, "err", err)
	}
}
