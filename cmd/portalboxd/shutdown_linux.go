//go:build linux

package main

import (
	"log/slog"

	"golang.org/x/sys/unix"
)

// requestOSShutdown halts the host OS after a shutdown card, matching the
// Shutdown state's card path (SIGINT/SIGTERM exit cleanly
// without halting the OS). It calls the reboot(2) syscall directly rather
// than shelling out to the `shutdown` binary, the same direct-unix-syscall
// style the teacher uses for its own Raspberry-Pi-only platform code.
func requestOSShutdown(logger *slog.Logger) {
	if err := unix.Sync(); err != nil {
		logger.Warn("portalboxd: sync before power-off failed", "err", err)
	}
	if err := unix.Reboot(unix.LINUX_REBOOT_CMD_POWER_OFF); err != nil {
		logger.Error("portalboxd: failed to request OS power-off", "err", err)
	}
}
