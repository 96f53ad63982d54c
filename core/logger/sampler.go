package logger

import (
	"strconv"
	"strings"
	"sync/atomic"
)

const (
	defaultSampleNum = 1
	defaultSampleDen = 50
)

// ratioSampler lets num out of every den calls through. A zero ratio
// lets everything through.
type ratioSampler struct {
	ratio   atomic.Uint64 // num<<32 | den
	counter atomic.Uint64
}

func (s *ratioSampler) Set(num, den int) {
	if num <= 0 || den <= 0 {
		s.ratio.Store(0)
		return
	}
	num = min(num, den)
	s.counter.Store(0)
	s.ratio.Store(uint64(num)<<32 | uint64(uint32(den)))
}

func (s *ratioSampler) Allow() bool {
	r := s.ratio.Load()
	if r == 0 {
		return true
	}
	num, den := r>>32, r&0xffffffff
	return (s.counter.Add(1)-1)%den < num
}

// parseSampleRatio reads "num/den" or "den" (meaning 1/den). "0" disables
// sampling; empty or malformed input falls back to 1/50.
func parseSampleRatio(raw string) (int, int) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultSampleNum, defaultSampleDen
	}
	if n, d, found := strings.Cut(raw, "/"); found {
		num, err1 := strconv.Atoi(strings.TrimSpace(n))
		den, err2 := strconv.Atoi(strings.TrimSpace(d))
		if err1 != nil || err2 != nil || num < 0 || den <= 0 {
			return defaultSampleNum, defaultSampleDen
		}
		return num, den
	}
	v, err := strconv.Atoi(raw)
	switch {
	case err != nil || v < 0:
		return defaultSampleNum, defaultSampleDen
	case v == 0:
		return 0, 0
	default:
		return 1, v
	}
}
