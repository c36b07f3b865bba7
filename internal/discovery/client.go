package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/learitecnico/learion-glass-sub002/internal/config"
)

// ErrNotFound is returned when no companion answered within the deadline
var ErrNotFound = errors.New("companion not found")

// ErrInProgress is returned when a discovery session is already active. It
// wraps ErrNotFound so callers treat the fail-fast result as a miss.
var ErrInProgress = fmt.Errorf("discovery session already in progress: %w", ErrNotFound)

// Client performs UDP broadcast discovery sessions. At most one session may
// be active at a time; concurrent Discover calls fail fast.
type Client struct {
	port         int
	marker       string
	recvInterval time.Duration
	logger       *slog.Logger

	inProgress atomic.Bool

	// conn is owned by the active session; Cancel closes it to unblock
	// the receive loop
	mu   sync.Mutex
	conn *net.UDPConn

	// Session counters
	probesSent        uint64
	datagramsReceived uint64
	parseErrors       uint64
	sessionsCompleted uint64
	statsMu           sync.RWMutex
}

// ClientStats represents discovery client statistics
type ClientStats struct {
	ProbesSent        uint64 `json:"probes_sent"`
	DatagramsReceived uint64 `json:"datagrams_received"`
	ParseErrors       uint64 `json:"parse_errors"`
	SessionsCompleted uint64 `json:"sessions_completed"`
	InProgress        bool   `json:"in_progress"`
}

// NewClient creates a discovery client from configuration
func NewClient(cfg *config.DiscoveryConfig, logger *slog.Logger) *Client {
	return &Client{
		port:         cfg.Port,
		marker:       cfg.ProbeMarker,
		recvInterval: cfg.GetReceiveIntervalDuration(),
		logger:       logger,
	}
}

// Discover broadcasts a single probe on the discovery port and listens for
// a matching response or announce until the timeout elapses. The first
// valid companion wins; later arrivals are discarded. Returns ErrNotFound
// when the deadline passes without a match and ErrInProgress when another
// session holds the socket.
func (c *Client) Discover(ctx context.Context, timeout time.Duration) (*CompanionInfo, error) {
	if !c.inProgress.CompareAndSwap(false, true) {
		c.logger.Warn("Discovery requested while another session is active")
		return nil, ErrInProgress
	}
	defer func() {
		c.inProgress.Store(false)
		c.statsMu.Lock()
		c.sessionsCompleted++
		c.statsMu.Unlock()
	}()

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: c.port})
	if err != nil {
		return nil, fmt.Errorf("failed to bind discovery socket on port %d: %w", c.port, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		conn.Close()
	}()

	enableBroadcast(conn, c.logger)

	broadcast := c.broadcastAddress()
	probe := []byte(c.marker)

	// A failed probe send is not fatal: the companion may still announce
	// itself within the listen window.
	if _, err := conn.WriteToUDP(probe, &net.UDPAddr{IP: broadcast, Port: c.port}); err != nil {
		c.logger.Warn("Failed to send discovery probe",
			slog.String("broadcast", broadcast.String()),
			slog.String("error", err.Error()),
		)
	} else {
		c.statsMu.Lock()
		c.probesSent++
		c.statsMu.Unlock()

		c.logger.Info("Discovery probe sent",
			slog.String("broadcast", broadcast.String()),
			slog.Int("port", c.port),
			slog.Duration("timeout", timeout),
		)
	}

	deadline := time.Now().Add(timeout)
	buffer := make([]byte, 2048)

	for {
		if err := ctx.Err(); err != nil {
			return nil, ErrNotFound
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			c.logger.Info("Discovery deadline elapsed without a response")
			return nil, ErrNotFound
		}

		// Short per-read deadline so cancellation and the overall
		// deadline are checked between reads
		readWindow := c.recvInterval
		if remaining < readWindow {
			readWindow = remaining
		}
		if err := conn.SetReadDeadline(time.Now().Add(readWindow)); err != nil {
			return nil, fmt.Errorf("failed to set read deadline: %w", err)
		}

		n, remoteAddr, err := conn.ReadFromUDP(buffer)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			// Socket closed by Cancel, or an unrecoverable read error
			c.logger.Debug("Discovery receive interrupted", slog.String("error", err.Error()))
			return nil, ErrNotFound
		}

		c.statsMu.Lock()
		c.datagramsReceived++
		c.statsMu.Unlock()

		info := c.handleDatagram(buffer[:n], remoteAddr)
		if info != nil {
			c.logger.Info("Companion discovered",
				slog.String("host", info.Host),
				slog.Int("companion_port", info.Port),
				slog.String("name", info.Name),
			)
			return info, nil
		}
	}
}

// handleDatagram parses one received datagram, returning companion info for
// a valid response or announce and nil for everything else
func (c *Client) handleDatagram(data []byte, remoteAddr *net.UDPAddr) *CompanionInfo {
	// Our own probe comes back on the shared broadcast port; skip it
	// without counting a parse error.
	if string(data) == c.marker {
		return nil
	}

	msg, err := ParseMessage(data)
	if err != nil {
		c.statsMu.Lock()
		c.parseErrors++
		c.statsMu.Unlock()

		c.logger.Debug("Ignoring malformed discovery datagram",
			slog.String("remote_addr", remoteAddr.String()),
			slog.Int("size", len(data)),
			slog.String("error", err.Error()),
		)
		return nil
	}

	switch msg.Type {
	case TypeResponse, TypeAnnounce:
		return msg.Info()
	default:
		// Another client's probe; not a match
		return nil
	}
}

// Cancel aborts the active discovery session, if any. It may be called
// concurrently with Discover; closing the socket unblocks the receive loop.
func (c *Client) Cancel() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		c.logger.Info("Cancelling discovery session")
		conn.Close()
	}
}

// InProgress reports whether a discovery session is currently active
func (c *Client) InProgress() bool {
	return c.inProgress.Load()
}

// broadcastAddress computes the subnet broadcast address from the first
// usable interface, falling back to the limited broadcast address
func (c *Client) broadcastAddress() net.IP {
	ifaces, err := net.Interfaces()
	if err != nil {
		c.logger.Warn("Failed to enumerate interfaces, using limited broadcast",
			slog.String("error", err.Error()),
		)
		return net.IPv4bcast
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}

			ip4 := ipNet.IP.To4()
			if ip4 == nil {
				continue
			}

			mask := ipNet.Mask
			if len(mask) == net.IPv6len {
				mask = mask[12:]
			}

			broadcast := make(net.IP, net.IPv4len)
			for i := 0; i < net.IPv4len; i++ {
				broadcast[i] = ip4[i] | ^mask[i]
			}
			return broadcast
		}
	}

	return net.IPv4bcast
}

// GetStats returns current discovery client statistics
func (c *Client) GetStats() ClientStats {
	c.statsMu.RLock()
	defer c.statsMu.RUnlock()

	return ClientStats{
		ProbesSent:        c.probesSent,
		DatagramsReceived: c.datagramsReceived,
		ParseErrors:       c.parseErrors,
		SessionsCompleted: c.sessionsCompleted,
		InProgress:        c.inProgress.Load(),
	}
}
