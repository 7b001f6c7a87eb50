// Package serial drives a bench instrument directly over RS-232 for setups
// where the agent owns the safety tester instead of relaying through the
// driver backend. Commands are LF-terminated UTF-8 lines.
package serial

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	srvErrors "github.com/testbench/inspection-agent/pkg/errors"
)

type Config struct {
	Port        string
	BaudRate    int
	DataBits    int
	WriteDelay  time.Duration
	SettleDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.BaudRate == 0 {
		c.BaudRate = 9600
	}
	if c.DataBits == 0 {
		c.DataBits = 8
	}
	if c.WriteDelay == 0 {
		c.WriteDelay = 100 * time.Millisecond
	}
	if c.SettleDelay == 0 {
		c.SettleDelay = 500 * time.Millisecond
	}
	return c
}

// Commander is a byte-string command/response interface over one serial
// port. All round trips are serialized behind a single mutex.
type Commander struct {
	cfg  Config
	mu   sync.Mutex
	port serial.Port
}

func NewCommander(cfg Config) *Commander {
	return &Commander{cfg: cfg.withDefaults()}
}

// Open opens the port, 8N1. If the port is already open it is closed first
// and reopened after a settle delay; serial ports left half open by a
// previous run otherwise report port-in-use on the fresh open.
func (c *Commander) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.port != nil {
		_ = c.port.Close()
		c.port = nil
		time.Sleep(c.cfg.SettleDelay)
	}

	mode := &serial.Mode{
		BaudRate: c.cfg.BaudRate,
		DataBits: c.cfg.DataBits,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(c.cfg.Port, mode)
	if err != nil {
		return srvErrors.NewConnectError(c.cfg.Port, err)
	}
	c.port = port

	zap.S().Named("serial").Infow("port opened", "port", c.cfg.Port, "baud", c.cfg.BaudRate)
	return nil
}

// Close closes the port. Teardown failures are logged, never propagated.
func (c *Commander) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.port == nil {
		return
	}
	if err := c.port.Close(); err != nil {
		zap.S().Named("serial").Warnw("closing port", "port", c.cfg.Port, "error", err)
	}
	c.port = nil
}

// SendCommand writes the command line, waits the configured write delay and
// reads the single reply line within the budget.
func (c *Commander) SendCommand(ctx context.Context, command string, timeout time.Duration) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.port == nil {
		return "", srvErrors.NewInvalidStateError("serial port is not open")
	}

	deadline := time.Now().Add(timeout)

	if _, err := c.port.Write([]byte(command + "\n")); err != nil {
		return "", srvErrors.NewConnectError(c.cfg.Port, err)
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(c.cfg.WriteDelay):
	}

	return c.readLine(ctx, command, deadline, timeout)
}

func (c *Commander) readLine(ctx context.Context, command string, deadline time.Time, timeout time.Duration) (string, error) {
	var line strings.Builder
	buf := make([]byte, 256)

	for {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return "", srvErrors.NewTimeoutError(command, timeout)
		}
		if err := c.port.SetReadTimeout(remaining); err != nil {
			return "", srvErrors.NewConnectError(c.cfg.Port, err)
		}

		n, err := c.port.Read(buf)
		if err != nil {
			return "", srvErrors.NewConnectError(c.cfg.Port, err)
		}
		if n == 0 {
			// read timeout expired without data
			return "", srvErrors.NewTimeoutError(command, timeout)
		}

		line.Write(buf[:n])
		if strings.ContainsRune(line.String(), '\n') {
			return strings.TrimSpace(line.String()), nil
		}
	}
}
