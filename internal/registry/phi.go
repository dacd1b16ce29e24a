/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package registry

import (
	"math"
	"sync"
	"time"
)

// PhiAccrualDetector scores how overdue a peer's next heartbeat is,
// relative to the distribution of its own past intervals, rather than
// against a single fixed staleness deadline. The registry's hard
// Stale/removed transitions still use stale_timeout directly (spec.md
// §4.5); Phi is an additional, softer degradation signal surfaced via
// DegradationScore for operators. The should-sync hint does not use it.
type PhiAccrualDetector struct {
	mu         sync.Mutex
	intervals  []float64
	lastBeat   time.Time
	minSamples int
	maxSamples int
	threshold  float64
	mean       float64
	variance   float64
}

// NewPhiAccrualDetector creates a detector that reports 0 until minSamples
// heartbeats have been observed and retains at most maxSamples intervals.
func NewPhiAccrualDetector(threshold float64, minSamples, maxSamples int) *PhiAccrualDetector {
	return &PhiAccrualDetector{
		intervals:  make([]float64, 0, maxSamples),
		threshold:  threshold,
		minSamples: minSamples,
		maxSamples: maxSamples,
	}
}

// Heartbeat records a new beat and refreshes the interval statistics.
func (d *PhiAccrualDetector) Heartbeat() {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	if !d.lastBeat.IsZero() {
		interval := now.Sub(d.lastBeat).Seconds() * 1000
		d.intervals = append(d.intervals, interval)
		if len(d.intervals) > d.maxSamples {
			d.intervals = d.intervals[1:]
		}
		d.updateStats()
	}
	d.lastBeat = now
}

func (d *PhiAccrualDetector) updateStats() {
	sum := 0.0
	for _, v := range d.intervals {
		sum += v
	}
	d.mean = sum / float64(len(d.intervals))

	sumSq := 0.0
	for _, v := range d.intervals {
		diff := v - d.mean
		sumSq += diff * diff
	}
	d.variance = sumSq / float64(len(d.intervals))
}

// Phi returns the current suspicion level: 0 while there aren't enough
// samples yet, otherwise rising the longer the next expected heartbeat
// is overdue.
func (d *PhiAccrualDetector) Phi() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.intervals) < d.minSamples {
		return 0
	}
	if d.lastBeat.IsZero() {
		return d.threshold + 1
	}
	elapsed := time.Since(d.lastBeat).Seconds() * 1000
	return phi(elapsed, d.mean, d.variance)
}

func phi(elapsed, mean, variance float64) float64 {
	stdDev := math.Sqrt(variance)
	if stdDev < 1 {
		stdDev = 1
	}
	y := (elapsed - mean) / stdDev
	e := math.Exp(-y * (1.5976 + 0.070566*y*y))
	if elapsed > mean {
		return -math.Log10(e / (1 + e))
	}
	return -math.Log10(1 - 1/(1+e))
}
