package discovery

import (
	"log/slog"
	"net"
	"syscall"
)

// enableBroadcast sets SO_BROADCAST on the discovery socket so the probe
// can be sent to the subnet broadcast address. Failure is logged and
// tolerated: receiving still works without it.
func enableBroadcast(conn *net.UDPConn, logger *slog.Logger) {
	rawConn, err := conn.SyscallConn()
	if err != nil {
		logger.Warn("Failed to access raw discovery socket", slog.String("error", err.Error()))
		return
	}

	var sockErr error
	err = rawConn.Control(func(fd uintptr) {
		sockErr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_BROADCAST, 1)
	})
	if err == nil {
		err = sockErr
	}
	if err != nil {
		logger.Warn("Failed to enable broadcast on discovery socket", slog.String("error", err.Error()))
	}
}
