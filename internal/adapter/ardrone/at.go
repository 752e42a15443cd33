package ardrone

import (
	"math"
	"strconv"
	"strings"
)

// AT*REF argument bits. Bits 18, 20, 22, 24 and 28 are always set.
const (
	refBase      = 290717696
	refTakeOff   = 1 << 9
	refEmergency = 1 << 8
)

// formatAT renders one AT command datagram. ints are written as decimals,
// floats as the int32 bit pattern of their float32 value and strings quoted.
func formatAT(name string, seq uint32, args ...any) string {
	var b strings.Builder
	b.WriteString("AT*")
	b.WriteString(name)
	b.WriteByte('=')
	b.WriteString(strconv.FormatUint(uint64(seq), 10))
	for _, arg := range args {
		b.WriteByte(',')
		switch v := arg.(type) {
		case int:
			b.WriteString(strconv.Itoa(v))
		case float64:
			b.WriteString(strconv.FormatInt(int64(f2i(v)), 10))
		case string:
			b.WriteByte('"')
			b.WriteString(v)
			b.WriteByte('"')
		}
	}
	b.WriteByte('\r')
	return b.String()
}

// f2i reinterprets f as a float32 and returns its bits as a signed integer.
func f2i(f float64) int32 {
	return int32(math.Float32bits(float32(f)))
}

func refArg(takeoff, emergency bool) int {
	p := refBase
	if takeoff {
		p += refTakeOff
	}
	if emergency {
		p += refEmergency
	}
	return p
}

// pcmdArgs builds AT*PCMD arguments. A non-progressive command makes the
// drone hover and ignores the motion values.
func pcmdArgs(progressive bool, lr, rb, vv, va float64) []any {
	flag := 0
	if progressive {
		flag = 1
	}
	return []any{flag, lr, rb, vv, va}
}
