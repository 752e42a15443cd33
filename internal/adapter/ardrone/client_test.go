package ardrone

import (
	"bytes"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/kvasnica/wspydrone/internal/adapter/metrics"
	"github.com/kvasnica/wspydrone/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDrone listens where the real drone would: one socket for AT commands
// and one for navdata wake-ups, which it answers with navdata.
type fakeDrone struct {
	commands *net.UDPConn
	navdata  *net.UDPConn
	reply    []byte
}

func newFakeDrone(t *testing.T, reply []byte) *fakeDrone {
	t.Helper()
	loopback := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)}

	commands, err := net.ListenUDP("udp4", loopback)
	require.NoError(t, err)
	navdata, err := net.ListenUDP("udp4", loopback)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = commands.Close()
		_ = navdata.Close()
	})

	d := &fakeDrone{commands: commands, navdata: navdata, reply: reply}
	go d.serveNavdata()
	return d
}

func (d *fakeDrone) serveNavdata() {
	buf := make([]byte, 64)
	for {
		n, from, err := d.navdata.ReadFromUDP(buf)
		if err != nil {
			return
		}
		if d.reply != nil && bytes.Equal(buf[:n], wakePacket) {
			_, _ = d.navdata.WriteToUDP(d.reply, from)
		}
	}
}

// next returns the next AT command the drone received.
func (d *fakeDrone) next(t *testing.T) string {
	t.Helper()
	buf := make([]byte, 1024)
	require.NoError(t, d.commands.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, _, err := d.commands.ReadFromUDP(buf)
	require.NoError(t, err)
	return string(buf[:n])
}

// quiet reports whether no command arrives within d.
func (d *fakeDrone) quiet(t *testing.T, wait time.Duration) bool {
	t.Helper()
	buf := make([]byte, 1024)
	require.NoError(t, d.commands.SetReadDeadline(time.Now().Add(wait)))
	_, _, err := d.commands.ReadFromUDP(buf)
	return err != nil
}

func (d *fakeDrone) options(clock clockwork.Clock, m *metrics.ActuatorMetrics) Options {
	return Options{
		Host:        "127.0.0.1",
		CommandPort: d.commands.LocalAddr().(*net.UDPAddr).Port,
		NavdataPort: d.navdata.LocalAddr().(*net.UDPAddr).Port,
		Clock:       clock,
		Metrics:     m,
	}
}

func dialFake(t *testing.T, d *fakeDrone, clock clockwork.Clock) (*Client, *metrics.ActuatorMetrics) {
	t.Helper()
	m := metrics.NewActuatorMetrics(prometheus.NewRegistry())
	c, err := Dial(d.options(clock, m))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	assert.Equal(t, "AT*CONFIG=1,\"general:navdata_demo\",\"TRUE\"\r", d.next(t))
	return c, m
}

func TestClient_TakeOffSequence(t *testing.T) {
	d := newFakeDrone(t, nil)
	c, _ := dialFake(t, d, clockwork.NewFakeClock())

	c.TakeOff()

	assert.Equal(t, "AT*FTRIM=2\r", d.next(t))
	assert.Equal(t, "AT*CONFIG=3,\"control:altitude_max\",\"20000\"\r", d.next(t))
	assert.Equal(t, "AT*REF=4,290718208\r", d.next(t))
}

func TestClient_CommandsUseIncreasingSequence(t *testing.T) {
	d := newFakeDrone(t, nil)
	c, _ := dialFake(t, d, clockwork.NewFakeClock())

	c.Land()
	c.Hover()
	c.Trim()
	c.Move(0.5, 0, 0, 0)

	assert.Equal(t, "AT*REF=2,290717696\r", d.next(t))
	assert.Equal(t, "AT*PCMD=3,0,0,0,0,0\r", d.next(t))
	assert.Equal(t, "AT*FTRIM=4\r", d.next(t))
	assert.Equal(t, "AT*PCMD=5,1,1056964608,0,0,0\r", d.next(t))
}

func TestClient_ResetHoldsEmergencyBeforeClearing(t *testing.T) {
	d := newFakeDrone(t, nil)
	clock := clockwork.NewFakeClock()
	c, _ := dialFake(t, d, clock)

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Reset()
	}()

	assert.Equal(t, "AT*REF=2,290717952\r", d.next(t))

	// The watchdog timer and the toggle delay.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 2))
	assert.True(t, d.quiet(t, 50*time.Millisecond), "emergency bit cleared without delay")

	clock.Advance(resetToggleDelay)

	assert.Equal(t, "AT*REF=3,290717696\r", d.next(t))
	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("Reset did not return")
	}
}

func TestClient_WatchdogRefreshesLinkUntilHalt(t *testing.T) {
	d := newFakeDrone(t, nil)
	clock := clockwork.NewFakeClock()
	c, _ := dialFake(t, d, clock)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(watchdogInterval)
	assert.Equal(t, "AT*COMWDG=2\r", d.next(t))

	c.Halt()
	assert.Equal(t, "AT*PCMD=3,0,0,0,0,0\r", d.next(t))
	assert.Equal(t, "AT*REF=4,290717696\r", d.next(t))

	clock.Advance(time.Second)
	assert.True(t, d.quiet(t, 100*time.Millisecond), "no watchdog refresh after halt")
}

func TestClient_ReceivesNavdataAfterWakeUp(t *testing.T) {
	d := newFakeDrone(t, buildPacket(t, sampleDemo()))
	c, m := dialFake(t, d, clockwork.NewFakeClock())

	require.Eventually(t, func() bool {
		return c.LatestTelemetry().Battery == 87
	}, 2*time.Second, 10*time.Millisecond)

	snap := c.LatestTelemetry()
	assert.Equal(t, 1250, snap.Altitude)
	assert.Equal(t, -33, snap.Psi)
	assert.GreaterOrEqual(t, testutil.ToFloat64(m.NavdataPackets), 1.0)
}

func TestClient_WriteFailureIsSwallowedAndCounted(t *testing.T) {
	d := newFakeDrone(t, nil)
	c, m := dialFake(t, d, clockwork.NewFakeClock())

	require.NoError(t, c.cmdConn.Close())
	c.Land()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Faults.WithLabelValues("land")))
}

func TestClient_LinkStateFollowsBreaker(t *testing.T) {
	d := newFakeDrone(t, nil)
	c, m := dialFake(t, d, clockwork.NewFakeClock())
	assert.Equal(t, domain.LinkUp, c.LinkState())

	require.NoError(t, c.cmdConn.Close())
	for range 5 {
		c.Hover()
	}

	assert.Equal(t, domain.LinkDown, c.LinkState())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.BreakerState))

	// Rejected by the open breaker, still counted as a fault.
	c.Hover()
	assert.Equal(t, 6.0, testutil.ToFloat64(m.Faults.WithLabelValues("hover")))
}

func TestClient_SetSpeedIsLocal(t *testing.T) {
	d := newFakeDrone(t, nil)
	c, _ := dialFake(t, d, clockwork.NewFakeClock())

	c.SetSpeed(0.8)

	assert.Equal(t, 0.8, c.Speed())
	assert.True(t, d.quiet(t, 50*time.Millisecond))
}

func TestClient_CloseIsIdempotentAndSilencesCommands(t *testing.T) {
	d := newFakeDrone(t, nil)
	c, _ := dialFake(t, d, clockwork.NewFakeClock())

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	c.Land()
	assert.True(t, d.quiet(t, 50*time.Millisecond))
}

func TestDial_RejectsInvalidPort(t *testing.T) {
	_, err := Dial(Options{Host: "127.0.0.1", CommandPort: -1})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "resolve command address"))
}
