package engine

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

const (
	DefaultPaddleLow  = 100
	DefaultPaddleHigh = 1000
)

// PaddleAssigner derives a display paddle number from a participant's durable
// identity. It is a pure hash mapping: no registry, no coordination, and no
// collision handling. Two participants can share a number; the paddle is a
// display label, not an identity key.
type PaddleAssigner struct {
	low  int
	high int
}

func NewPaddleAssigner(low, high int) (*PaddleAssigner, error) {
	if low < 0 || high <= low {
		return nil, fmt.Errorf("invalid paddle range [%d,%d)", low, high)
	}
	return &PaddleAssigner{low: low, high: high}, nil
}

// PaddleNumber maps an identity into [low, high). Same identity, same number,
// always.
func (a *PaddleAssigner) PaddleNumber(participantID string) int {
	sum := sha256.Sum256([]byte(participantID))
	h := binary.BigEndian.Uint64(sum[:8])
	return a.low + int(h%uint64(a.high-a.low))
}
