// Package ardrone drives a Parrot AR.Drone 2.0 over its UDP interfaces: AT
// commands on port 5556 and navdata on port 5554.
package ardrone

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"
	"github.com/kvasnica/wspydrone/internal/adapter/metrics"
	"github.com/kvasnica/wspydrone/internal/domain"
	apperrors "github.com/kvasnica/wspydrone/internal/errors"
	"github.com/sony/gobreaker"
)

const (
	DefaultCommandPort = 5556
	DefaultNavdataPort = 5554

	watchdogInterval = 200 * time.Millisecond
	navdataTimeout   = 2 * time.Second
	wakeTimeout      = 250 * time.Millisecond
	resetToggleDelay = 100 * time.Millisecond
	maxAltitude      = "20000" // mm
	defaultSpeed     = 0.2
)

var wakePacket = []byte{0x01, 0x00, 0x00, 0x00}

type Options struct {
	// Host is the drone address, usually 192.168.1.1.
	Host             string
	CommandPort      int
	NavdataPort      int
	LocalNavdataPort int
	Clock            clockwork.Clock
	Logger           *slog.Logger
	Metrics          *metrics.ActuatorMetrics
}

func (o Options) withDefaults() Options {
	if o.CommandPort == 0 {
		o.CommandPort = DefaultCommandPort
	}
	if o.NavdataPort == 0 {
		o.NavdataPort = DefaultNavdataPort
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Client implements domain.Actuator. Writes are serialized and pass through
// a circuit breaker; failures are logged and counted, never returned.
type Client struct {
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *metrics.ActuatorMetrics
	breaker *gobreaker.CircuitBreaker

	cmdConn *net.UDPConn
	navConn *net.UDPConn
	navAddr *net.UDPAddr

	mu       sync.Mutex
	seq      uint32
	speed    float64
	halted   bool
	closed   bool
	watchdog clockwork.Timer

	telemetryMu sync.RWMutex
	latest      domain.TelemetrySnapshot

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

var (
	_ domain.Actuator     = (*Client)(nil)
	_ domain.LinkReporter = (*Client)(nil)
)

// Dial opens both UDP links, switches the drone to demo navdata and starts
// the navdata receiver.
func Dial(opts Options) (*Client, error) {
	opts = opts.withDefaults()

	cmdAddr, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(opts.Host, strconv.Itoa(opts.CommandPort)))
	if err != nil {
		return nil, fmt.Errorf("resolve command address: %w", err)
	}
	navAddr, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(opts.Host, strconv.Itoa(opts.NavdataPort)))
	if err != nil {
		return nil, fmt.Errorf("resolve navdata address: %w", err)
	}

	cmdConn, err := net.DialUDP("udp4", nil, cmdAddr)
	if err != nil {
		return nil, fmt.Errorf("open command link: %w", err)
	}
	navConn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: opts.LocalNavdataPort})
	if err != nil {
		_ = cmdConn.Close()
		return nil, fmt.Errorf("open navdata link: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		clock:   opts.Clock,
		logger:  opts.Logger.With("component", "ardrone"),
		metrics: opts.Metrics,
		cmdConn: cmdConn,
		navConn: navConn,
		navAddr: navAddr,
		speed:   defaultSpeed,
		cancel:  cancel,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "ardrone-link",
		Timeout: 5 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			if c.metrics != nil {
				c.metrics.BreakerState.Set(breakerStateToFloat(to))
			}
		},
	})

	c.send("init", "CONFIG", "general:navdata_demo", "TRUE")

	c.wg.Add(1)
	go c.receiveNavdata(ctx)

	c.logger.Info("Drone link open", "command_addr", cmdAddr.String(), "navdata_addr", navAddr.String())
	return c, nil
}

func (c *Client) TakeOff() {
	c.send("takeoff", "FTRIM")
	c.send("takeoff", "CONFIG", "control:altitude_max", maxAltitude)
	c.send("takeoff", "REF", refArg(true, false))
}

func (c *Client) Land() {
	c.send("land", "REF", refArg(false, false))
}

// Halt hovers, lands and stops the watchdog so the drone falls back to its
// own connection-loss behaviour.
func (c *Client) Halt() {
	c.send("halt", "PCMD", pcmdArgs(false, 0, 0, 0, 0)...)
	c.send("halt", "REF", refArg(false, false))

	c.mu.Lock()
	defer c.mu.Unlock()
	c.halted = true
	c.stopWatchdogLocked()
}

// Reset toggles the emergency bit. The drone only notices the toggle when
// the flagged REF is held for a moment before it is cleared.
func (c *Client) Reset() {
	c.send("reset", "REF", refArg(false, true))
	c.clock.Sleep(resetToggleDelay)
	c.send("reset", "REF", refArg(false, false))
}

func (c *Client) Hover() {
	c.send("hover", "PCMD", pcmdArgs(false, 0, 0, 0, 0)...)
}

func (c *Client) Trim() {
	c.send("trim", "FTRIM")
}

func (c *Client) Move(lr, rb, vv, va float64) {
	c.send("move", "PCMD", pcmdArgs(true, lr, rb, vv, va)...)
}

// SetSpeed stores the speed for fixed-direction maneuvers. Move values are
// sent as given.
func (c *Client) SetSpeed(v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.speed = v
}

// Speed returns the stored maneuver speed.
func (c *Client) Speed() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speed
}

func (c *Client) LatestTelemetry() domain.TelemetrySnapshot {
	c.telemetryMu.RLock()
	defer c.telemetryMu.RUnlock()
	return c.latest
}

// Close stops the watchdog and the navdata receiver and releases both
// sockets.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.stopWatchdogLocked()
		c.mu.Unlock()

		c.cancel()
		_ = c.navConn.Close()
		c.wg.Wait()
		_ = c.cmdConn.Close()
	})
	return nil
}

// send writes one AT command. Every command after the first rearms the
// communication watchdog unless the drone was halted.
func (c *Client) send(op, name string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if op != "watchdog" && op != "halt" {
		c.halted = false
	}

	c.seq++
	datagram := formatAT(name, c.seq, args...)
	_, err := c.breaker.Execute(func() (any, error) {
		_, err := c.cmdConn.Write([]byte(datagram))
		return nil, err
	})
	if err != nil {
		c.fault(op, err)
	}

	c.armWatchdogLocked()
}

func (c *Client) fault(op string, err error) {
	fault := apperrors.ActuatorFault(op, err)
	c.logger.Warn("Drone command failed", fault.LogAttrs()...)
	if c.metrics != nil {
		c.metrics.Faults.WithLabelValues(op).Inc()
	}
}

func (c *Client) armWatchdogLocked() {
	c.stopWatchdogLocked()
	if c.halted || c.closed {
		return
	}
	c.watchdog = c.clock.AfterFunc(watchdogInterval, func() {
		c.send("watchdog", "COMWDG")
	})
}

func (c *Client) stopWatchdogLocked() {
	if c.watchdog != nil {
		c.watchdog.Stop()
		c.watchdog = nil
	}
}

// receiveNavdata wakes the navdata stream, then decodes packets until the
// stream goes quiet, in which case it wakes it again.
func (c *Client) receiveNavdata(ctx context.Context) {
	defer c.wg.Done()
	buf := make([]byte, 4096)

	for ctx.Err() == nil {
		if err := c.wake(ctx, buf); err != nil {
			if ctx.Err() == nil {
				c.logger.Warn("Navdata wake-up abandoned", "error", err)
			}
			return
		}

		for {
			_ = c.navConn.SetReadDeadline(time.Now().Add(navdataTimeout))
			n, _, err := c.navConn.ReadFromUDP(buf)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				var netErr net.Error
				if errors.As(err, &netErr) && netErr.Timeout() {
					c.logger.Debug("Navdata stream stalled, waking drone")
				} else {
					c.logger.Warn("Navdata read failed", "error", err)
				}
				break
			}
			c.handlePacket(buf[:n])
		}
	}
}

// wake sends the wake-up packet until the drone answers.
func (c *Client) wake(ctx context.Context, buf []byte) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = wakeTimeout
	bo.MaxInterval = 5 * time.Second
	bo.MaxElapsedTime = 0

	return backoff.Retry(func() error {
		if _, err := c.navConn.WriteToUDP(wakePacket, c.navAddr); err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		_ = c.navConn.SetReadDeadline(time.Now().Add(wakeTimeout))
		n, _, err := c.navConn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		c.handlePacket(buf[:n])
		return nil
	}, backoff.WithContext(bo, ctx))
}

func (c *Client) handlePacket(packet []byte) {
	nd, err := ParseNavdata(packet)
	if err != nil {
		c.logger.Debug("Navdata packet rejected", "error", err, "size", len(packet))
		if c.metrics != nil {
			c.metrics.NavdataRejected.Inc()
		}
		return
	}
	if c.metrics != nil {
		c.metrics.NavdataPackets.Inc()
	}
	if nd.Demo == nil {
		return
	}

	c.telemetryMu.Lock()
	c.latest = *nd.Demo
	c.telemetryMu.Unlock()
}

// LinkState maps the command breaker onto the link state: closed is up,
// half-open is probing and open is down.
func (c *Client) LinkState() domain.LinkState {
	switch c.breaker.State() {
	case gobreaker.StateClosed:
		return domain.LinkUp
	case gobreaker.StateHalfOpen:
		return domain.LinkProbing
	default:
		return domain.LinkDown
	}
}

func breakerStateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}
