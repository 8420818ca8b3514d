// Package rng provides the server's entropy source and the seeded,
// provably-fair draw streams that drive game outcomes.
// GLI-19 Chapter 3: RNG Requirements
package rng

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"sync"
	"time"
)

// Service provides cryptographically strong random number generation
// GLI-19 §3.2: General RNG Requirements
// GLI-19 §3.3: RNG Strength and Monitoring
type Service struct {
	entropy io.Reader
	mu      sync.Mutex

	lastHealthCheck  time.Time
	samplesGenerated int64
}

// New creates a new RNG service using crypto/rand
func New() *Service {
	return NewWithReader(rand.Reader)
}

// NewWithReader creates a service over a custom entropy reader
func NewWithReader(r io.Reader) *Service {
	return &Service{
		entropy:         r,
		lastHealthCheck: time.Now(),
	}
}

// GenerateBytes returns n cryptographically random bytes
// GLI-19 §3.3.1: RNG Strength for Outcome Determination
func (s *Service) GenerateBytes(n int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := make([]byte, n)
	if _, err := io.ReadFull(s.entropy, buf); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}

	s.samplesGenerated++
	return buf, nil
}

// GenerateSeed returns a fresh hex encoded server seed of n bytes
func (s *Service) GenerateSeed(n int) (string, error) {
	buf, err := s.GenerateBytes(n)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// GenerateInt returns a random integer in range [0, max)
// Uses rejection sampling to eliminate modulo bias (GLI-19 §3.2.3)
func (s *Service) GenerateInt(max int64) (int64, error) {
	if max <= 0 {
		return 0, fmt.Errorf("max must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	threshold := uint64(1<<63-1) - (uint64(1<<63-1) % uint64(max))
	buf := make([]byte, 8)
	for {
		if _, err := io.ReadFull(s.entropy, buf); err != nil {
			return 0, fmt.Errorf("failed to generate random int: %w", err)
		}

		n := binary.BigEndian.Uint64(buf) >> 1
		if n < threshold {
			s.samplesGenerated++
			return int64(n % uint64(max)), nil
		}
	}
}

// HealthCheck verifies the entropy source is functioning correctly
// GLI-19 §3.3.3: Dynamic Output Monitoring
func (s *Service) HealthCheck() (*HealthResult, error) {
	s.mu.Lock()
	s.lastHealthCheck = time.Now()
	s.mu.Unlock()

	const sampleSize = 1000
	samples := make([]int64, sampleSize)

	for i := 0; i < sampleSize; i++ {
		n, err := s.GenerateInt(100)
		if err != nil {
			return &HealthResult{
				Healthy:   false,
				Timestamp: time.Now(),
				Error:     err.Error(),
			}, err
		}
		samples[i] = n
	}

	chiSquare, passed := chiSquareTest(samples, 100)

	s.mu.Lock()
	generated := s.samplesGenerated
	s.mu.Unlock()

	return &HealthResult{
		Healthy:          passed,
		Timestamp:        time.Now(),
		SamplesGenerated: generated,
		ChiSquare:        chiSquare,
		ChiSquarePassed:  passed,
	}, nil
}

// chiSquareTest performs a basic chi-square test for uniformity
// GLI-19 §3.2.2: Statistical Analysis
func chiSquareTest(samples []int64, bins int) (float64, bool) {
	counts := make([]int, bins)
	for _, sample := range samples {
		counts[int(sample)%bins]++
	}

	expected := float64(len(samples)) / float64(bins)

	var chiSquare float64
	for _, count := range counts {
		diff := float64(count) - expected
		chiSquare += (diff * diff) / expected
	}

	// 99 degrees of freedom at 99% confidence
	criticalValue := 134.6
	if bins != 100 {
		criticalValue = float64(bins-1) + 2.576*math.Sqrt(2.0*float64(bins-1))
	}

	return chiSquare, chiSquare < criticalValue
}

// HealthResult contains RNG health check results
type HealthResult struct {
	Healthy          bool      `json:"healthy"`
	Timestamp        time.Time `json:"timestamp"`
	SamplesGenerated int64     `json:"samples_generated"`
	ChiSquare        float64   `json:"chi_square"`
	ChiSquarePassed  bool      `json:"chi_square_passed"`
	Error            string    `json:"error,omitempty"`
}
