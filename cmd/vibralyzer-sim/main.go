// Package main — cmd/vibralyzer-sim/main.go
//
// VIBRALYZER sample generator.
//
// Dials an ingress.Server (newline-delimited JSON over TCP) and emits
// synthetic accelerometer windows for a small fleet of simulated assets,
// one line per packet. Each asset/point pair walks a slowly worsening
// vibration signature so a live agent can be watched climbing through
// NORMAL → WATCH → WARNING → ALARM during a demo or smoke test.
//
// Signal model: a sinusoid at shaft rotation frequency plus harmonics,
// amplitude increasing linearly over the run to simulate bearing wear,
// plus Gaussian measurement noise.
//
// Usage:
//
//	vibralyzer-sim -addr 127.0.0.1:9000 -assets 3 -rate 1s -duration 5m
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"net"
	"os"
	"time"

	"github.com/solusimicro/vibralyzer/internal/ringbuf"
)

func main() {
	// ── Flags ─────────────────────────────────────────────────────────────────
	addr := flag.String("addr", "127.0.0.1:9000", "Ingress listener address")
	assetCount := flag.Int("assets", 3, "Number of simulated assets")
	windowSize := flag.Int("window-size", 4096, "Samples per packet")
	samplingRate := flag.Float64("sampling-rate", 25600, "Accelerometer sampling rate Hz")
	rpm := flag.Float64("rpm", 1800, "Simulated shaft speed RPM")
	rate := flag.Duration("rate", time.Second, "Interval between packets per asset/point")
	duration := flag.Duration("duration", time.Minute, "Total run duration (0 = run forever)")
	wearRate := flag.Float64("wear-rate", 0.00005, "Amplitude growth (g) per packet, simulating bearing wear")
	seed := flag.Int64("seed", time.Now().UnixNano(), "Random seed")
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: dial %q: %v\n", *addr, err)
		os.Exit(1)
	}
	defer conn.Close()

	w := bufio.NewWriter(conn)
	defer w.Flush()

	points := buildFleet(*assetCount)
	freq := *rpm / 60.0

	fmt.Fprintf(os.Stderr, "vibralyzer-sim: streaming %d points to %s every %s\n", len(points), *addr, *rate)

	ticker := time.NewTicker(*rate)
	defer ticker.Stop()

	var deadline <-chan time.Time
	if *duration > 0 {
		timer := time.NewTimer(*duration)
		defer timer.Stop()
		deadline = timer.C
	}

	tick := 0
	for {
		select {
		case <-deadline:
			fmt.Fprintln(os.Stderr, "vibralyzer-sim: duration elapsed, exiting")
			return
		case <-ticker.C:
			tick++
			for _, p := range points {
				amplitude := p.baseAmplitude + float64(tick)*(*wearRate)
				samples := sineWithHarmonics(amplitude, *windowSize, *samplingRate, freq, rng)

				pkt := ringbuf.SamplePacket{
					Site:         p.site,
					Asset:        p.asset,
					Point:        p.point,
					Timestamp:    float64(time.Now().UnixNano()) / 1e9,
					Acceleration: samples,
				}
				if err := writePacket(w, pkt); err != nil {
					fmt.Fprintf(os.Stderr, "ERROR: write packet: %v\n", err)
					return
				}
			}
			if err := w.Flush(); err != nil {
				fmt.Fprintf(os.Stderr, "ERROR: flush: %v\n", err)
				return
			}
		}
	}
}

// simPoint is one simulated (site, asset, point) measurement location.
type simPoint struct {
	site          string
	asset         string
	point         string
	baseAmplitude float64
}

// buildFleet creates n assets, each with a DE and NDE measurement point.
func buildFleet(n int) []simPoint {
	var out []simPoint
	for i := 0; i < n; i++ {
		asset := fmt.Sprintf("PUMP-%02d", i+1)
		out = append(out,
			simPoint{site: "site-1", asset: asset, point: "DE", baseAmplitude: 0.02},
			simPoint{site: "site-1", asset: asset, point: "NDE", baseAmplitude: 0.015},
		)
	}
	return out
}

// sineWithHarmonics synthesizes n samples of a fundamental plus its 2nd and
// 3rd harmonics (typical of a developing bearing defect) with additive
// Gaussian noise, sampled at fs Hz.
func sineWithHarmonics(amplitude float64, n int, fs, freq float64, rng *rand.Rand) []float64 {
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		t := float64(i) / fs
		v := amplitude * math.Sin(2*math.Pi*freq*t)
		v += 0.3 * amplitude * math.Sin(2*math.Pi*2*freq*t)
		v += 0.15 * amplitude * math.Sin(2*math.Pi*3*freq*t)
		v += 0.01 * rng.NormFloat64()
		out[i] = v
	}
	return out
}

// writePacket encodes pkt as JSON followed by a newline, the wire format
// internal/ingress.Server expects.
func writePacket(w *bufio.Writer, pkt ringbuf.SamplePacket) error {
	enc := json.NewEncoder(w)
	return enc.Encode(pkt)
}
