package osc

import (
	"encoding/binary"
	"math"
)

// Meter blob layout: 96 consecutive big-endian float32 levels, three banks
// of 32 (input, gate, dynamics).
const (
	MeterBankSize = 32
	MeterValues   = 3 * MeterBankSize
	meterBlobSize = MeterValues * bit32Size
)

// MeterFrame holds one decoded metering snapshot from the console.
type MeterFrame struct {
	Values [MeterValues]float32
}

// DecodeMeterFrame decodes one meter blob. Blobs longer than the 384-byte
// payload are accepted and the excess ignored.
func DecodeMeterFrame(blob []byte) (*MeterFrame, error) {
	if len(blob) < meterBlobSize {
		return nil, decodeErrorf("meter blob is %d bytes, need %d", len(blob), meterBlobSize)
	}
	f := &MeterFrame{}
	for i := 0; i < MeterValues; i++ {
		f.Values[i] = math.Float32frombits(binary.BigEndian.Uint32(blob[i*bit32Size:]))
	}
	return f, nil
}

// Input returns the input meter level for strip i (0-based).
func (f *MeterFrame) Input(i int) float32 {
	return f.Values[i]
}

// Gate returns the gate meter level for strip i (0-based).
func (f *MeterFrame) Gate(i int) float32 {
	return f.Values[MeterBankSize+i]
}

// Dynamics returns the dynamics meter level for strip i (0-based).
func (f *MeterFrame) Dynamics(i int) float32 {
	return f.Values[2*MeterBankSize+i]
}
