package ardrone

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatAT(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"no args", formatAT("FTRIM", 7), "AT*FTRIM=7\r"},
		{"takeoff ref", formatAT("REF", 1, refArg(true, false)), "AT*REF=1,290718208\r"},
		{"land ref", formatAT("REF", 2, refArg(false, false)), "AT*REF=2,290717696\r"},
		{"emergency ref", formatAT("REF", 3, refArg(false, true)), "AT*REF=3,290717952\r"},
		{"config", formatAT("CONFIG", 4, "control:altitude_max", "20000"), "AT*CONFIG=4,\"control:altitude_max\",\"20000\"\r"},
		{"hover", formatAT("PCMD", 5, pcmdArgs(false, 0, 0, 0, 0)...), "AT*PCMD=5,0,0,0,0,0\r"},
		{"move", formatAT("PCMD", 6, pcmdArgs(true, -0.5, 0.5, 1, -1)...), "AT*PCMD=6,1,-1090519040,1056964608,1065353216,-1082130432\r"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestF2I(t *testing.T) {
	assert.Equal(t, int32(0), f2i(0))
	assert.Equal(t, int32(1065353216), f2i(1))
	assert.Equal(t, int32(-1082130432), f2i(-1))
	assert.Equal(t, int32(1036831949), f2i(0.1))
}
