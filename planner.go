package compress

import "math"

// Bitrate clamp bounds for auto mode, bits per second.
const (
	minAutoBitrateBps = 500_000
	maxAutoBitrateBps = 5_000_000
)

// bitsPerPixel is the base budget before the speed factor is applied.
const bitsPerPixel = 1.5

// PlanRequest carries the already-validated inputs to PlanCompression.
type PlanRequest struct {
	SourceWidth     int
	SourceHeight    int
	RotationDegrees int

	MaxDimension       int // Longest output edge, 0 = no limit
	ExplicitBitrateBps int // >0 = use verbatim, 0 = auto
	SourceBitrateBps   int // Estimated source bitrate, 0 = unknown

	Codec VideoCodec
	Speed SpeedPreset
}

// CompressionPlan is the output geometry and bitrate for one session.
// Computed once, never mutated.
type CompressionPlan struct {
	Width      int // Even
	Height     int // Even
	BitrateBps int
	Codec      VideoCodec
	Speed      SpeedPreset
}

// PlanCompression derives output geometry and bitrate. Pure arithmetic:
// no I/O, no failure modes.
//
// The encoder operates in display orientation, so a 90/270 rotation
// swaps width and height before scaling. Scaling never upscales, and
// dimensions are rounded to the nearest even integer as required by
// the codecs.
func PlanCompression(req PlanRequest) CompressionPlan {
	w, h := req.SourceWidth, req.SourceHeight
	if rot := normalizeRotation(req.RotationDegrees); rot == 90 || rot == 270 {
		w, h = h, w
	}

	scale := 1.0
	if longest := maxInt(w, h); req.MaxDimension > 0 && longest > req.MaxDimension {
		scale = float64(req.MaxDimension) / float64(longest)
	}

	outW := evenRound(float64(w) * scale)
	outH := evenRound(float64(h) * scale)

	return CompressionPlan{
		Width:      outW,
		Height:     outH,
		BitrateBps: planBitrate(req, outW, outH),
		Codec:      req.Codec,
		Speed:      req.Speed,
	}
}

func planBitrate(req PlanRequest, outW, outH int) int {
	if req.ExplicitBitrateBps > 0 {
		return req.ExplicitBitrateBps
	}

	base := float64(outW) * float64(outH) * bitsPerPixel
	target := int(base * req.Speed.bitrateFactor())

	ceiling := maxAutoBitrateBps
	if req.SourceBitrateBps > 0 && req.SourceBitrateBps < ceiling {
		ceiling = req.SourceBitrateBps
	}

	if target > ceiling {
		target = ceiling
	}
	if target < minAutoBitrateBps {
		target = minAutoBitrateBps
	}
	return target
}

// evenRound rounds d to the nearest even integer, never below 2.
func evenRound(d float64) int {
	n := int(math.Round(d/2)) * 2
	if n < 2 {
		return 2
	}
	return n
}

func normalizeRotation(deg int) int {
	r := deg % 360
	if r < 0 {
		r += 360
	}
	return r
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
