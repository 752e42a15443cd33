package domain

// TelemetrySnapshot is a point-in-time readout of the drone's navdata demo block.
// It is sent as a flat JSON object.
type TelemetrySnapshot struct {
	Phi       int     `json:"phi"`
	Theta     int     `json:"theta"`
	Psi       int     `json:"psi"`
	Altitude  int     `json:"altitude"`
	VX        float64 `json:"vx"`
	VY        float64 `json:"vy"`
	VZ        float64 `json:"vz"`
	Battery   int     `json:"battery"`
	CtrlState uint32  `json:"ctrl_state"`
	NumFrames uint32  `json:"num_frames"`
}
