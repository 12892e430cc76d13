package game

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

const (
	MinCrashPoint = 1.01
	MaxCrashPoint = 100.00
)

// CrashPointGenerator draws the hidden target multiplier for a round from a
// cryptographically strong uniform source. A draw failure must never fall
// back to a weaker source; callers halt round creation instead.
type CrashPointGenerator struct {
	source io.Reader
}

func NewCrashPointGenerator() *CrashPointGenerator {
	return &CrashPointGenerator{source: crand.Reader}
}

// Draw returns a crash point in [1.01, 100.00] with two-decimal resolution.
func (g *CrashPointGenerator) Draw() (float64, error) {
	var buf [4]byte
	if _, err := io.ReadFull(g.source, buf[:]); err != nil {
		return 0, fmt.Errorf("crash point source exhausted: %w", err)
	}
	h := binary.BigEndian.Uint32(buf[:])
	return crashPointFromUint32(h), nil
}

// crashPointFromUint32 maps a uniform 32-bit draw onto the house-edge
// distribution: P(crash >= m) is roughly 99/m percent before clamping.
func crashPointFromUint32(h uint32) float64 {
	const e = float64(1 << 32)
	raw := math.Floor((100*e-float64(h))/(e-float64(h))) / 100

	if raw < MinCrashPoint {
		return MinCrashPoint
	}
	if raw > MaxCrashPoint {
		return MaxCrashPoint
	}
	return raw
}
