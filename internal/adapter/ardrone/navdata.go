package ardrone

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/kvasnica/wspydrone/internal/domain"
)

const (
	navdataHeader   uint32 = 0x55667788
	navdataHdrSize         = 16
	optionHdrSize          = 4
	optionDemo      uint16 = 0
	optionChecksum  uint16 = 0xFFFF
	demoPayloadSize        = 40
)

var (
	ErrShortPacket = errors.New("navdata packet too short")
	ErrBadHeader   = errors.New("navdata header mismatch")
)

// Navdata is a decoded navdata packet. Demo is nil when the packet carried
// no demo option.
type Navdata struct {
	State       uint32
	Sequence    uint32
	VisionFlag  uint32
	Demo        *domain.TelemetrySnapshot
	OptionCount int
}

// ParseNavdata decodes a little-endian navdata packet. Truncated trailing
// options are ignored.
func ParseNavdata(packet []byte) (Navdata, error) {
	if len(packet) < navdataHdrSize {
		return Navdata{}, ErrShortPacket
	}
	le := binary.LittleEndian
	if h := le.Uint32(packet[0:4]); h != navdataHeader {
		return Navdata{}, fmt.Errorf("%w: got %#x", ErrBadHeader, h)
	}

	nd := Navdata{
		State:      le.Uint32(packet[4:8]),
		Sequence:   le.Uint32(packet[8:12]),
		VisionFlag: le.Uint32(packet[12:16]),
	}

	offset := navdataHdrSize
	for offset+optionHdrSize <= len(packet) {
		id := le.Uint16(packet[offset:])
		size := int(le.Uint16(packet[offset+2:]))
		if size < optionHdrSize || offset+size > len(packet) {
			break
		}
		body := packet[offset+optionHdrSize : offset+size]
		offset += size
		nd.OptionCount++

		switch id {
		case optionDemo:
			if len(body) >= demoPayloadSize {
				demo := parseDemo(body)
				nd.Demo = &demo
			}
		case optionChecksum:
			return nd, nil
		}
	}
	return nd, nil
}

func parseDemo(b []byte) domain.TelemetrySnapshot {
	le := binary.LittleEndian
	f32 := func(off int) float64 { return float64(math.Float32frombits(le.Uint32(b[off:]))) }

	return domain.TelemetrySnapshot{
		CtrlState: le.Uint32(b[0:]),
		Battery:   int(le.Uint32(b[4:])),
		Theta:     int(f32(8) / 1000),
		Phi:       int(f32(12) / 1000),
		Psi:       int(f32(16) / 1000),
		Altitude:  int(int32(le.Uint32(b[20:]))),
		VX:        f32(24),
		VY:        f32(28),
		VZ:        f32(32),
		NumFrames: le.Uint32(b[36:]),
	}
}
