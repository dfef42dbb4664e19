//go:build !linux

package main

import "log/slog"

// requestOSShutdown is a no-op off the only platform this daemon ships
// on; it exists so the package builds for local development elsewhere.
func requestOSShutdown(logger *slog.Logger) {
	logger.Warn("portalboxd: OS power-off is only supported on linux")
}
