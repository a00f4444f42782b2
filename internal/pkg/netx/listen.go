/*
Package netx opens the relay's TCP listener.

When the fixed port is already bound, Listen runs a best-effort platform command that kills
whatever holds the port, waits, and tries to bind exactly once more.
*/
package netx

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"companysync/internal/pkg/logx"
)

// killTimeout bounds the external kill command.
const killTimeout = 5 * time.Second

// Reclaimer frees a TCP port held by another process.
type Reclaimer func(ctx context.Context, port int) error

// Options control Listen.
type Options struct {
	// Reclaim enables the kill-and-retry path on EADDRINUSE.
	Reclaim bool

	// RetryDelay is the wait between the kill command and the retry.
	RetryDelay time.Duration

	// Reclaimer defaults to KillPortHolder.
	Reclaimer Reclaimer
}

// Listener opens TCP listeners with port-in-use remediation.
type Listener struct {
	opts   Options
	listen func(network, address string) (net.Listener, error)
	sleep  func(time.Duration)
	logger zerolog.Logger
}

// NewListener builds a Listener from opts.
func NewListener(opts Options) *Listener {
	if opts.Reclaimer == nil {
		opts.Reclaimer = KillPortHolder
	}

	return &Listener{
		opts:   opts,
		listen: net.Listen,
		sleep:  time.Sleep,
		logger: logx.Component("listener"),
	}
}

// Listen binds ":port". On EADDRINUSE with reclaim enabled it runs the reclaimer once,
// waits RetryDelay and retries a single time. The second failure is logged and returned.
func (l *Listener) Listen(ctx context.Context, port int) (net.Listener, error) {
	addr := fmt.Sprintf(":%d", port)

	ln, err := l.listen("tcp", addr)
	if err == nil {
		return ln, nil
	}

	if !IsAddrInUse(err) || !l.opts.Reclaim {
		return nil, err
	}

	l.logger.Warn().Err(err).Int("port", port).Msg("Port already in use. Attempting to free it.")

	killCtx, cancel := context.WithTimeout(ctx, killTimeout)
	if kerr := l.opts.Reclaimer(killCtx, port); kerr != nil {
		l.logger.Warn().Err(kerr).Int("port", port).Msg("Port reclaim command failed.")
	}
	cancel()

	l.sleep(l.opts.RetryDelay)

	ln, err = l.listen("tcp", addr)
	if err != nil {
		l.logger.Error().Err(err).Int("port", port).Msg("Retry bind failed. Giving up.")
		return nil, err
	}

	l.logger.Info().Int("port", port).Msg("Port reclaimed, listener bound on retry.")
	return ln, nil
}

// IsAddrInUse reports whether err is a bind failure because the address is taken.
func IsAddrInUse(err error) bool {
	return errors.Is(err, syscall.EADDRINUSE)
}

// KillPortHolder runs the platform's kill-by-port command.
func KillPortHolder(ctx context.Context, port int) error {
	name, args := killCommand(runtime.GOOS, port)

	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w (%s)", name, err, out)
	}
	return nil
}

func killCommand(goos string, port int) (string, []string) {
	p := strconv.Itoa(port)

	switch goos {
	case "windows":
		script := fmt.Sprintf("Get-NetTCPConnection -LocalPort %s -State Listen | ForEach-Object { Stop-Process -Id $_.OwningProcess -Force }", p)
		return "powershell", []string{"-NoProfile", "-Command", script}
	case "linux":
		return "fuser", []string{"-k", p + "/tcp"}
	default:
		return "sh", []string{"-c", fmt.Sprintf("lsof -ti tcp:%s -sTCP:LISTEN | xargs kill -9", p)}
	}
}
