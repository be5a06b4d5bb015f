package compress

import "fmt"

// VideoCodec identifies the target video codec.
type VideoCodec int

const (
	VideoCodecH264 VideoCodec = iota
	VideoCodecHEVC
)

func (c VideoCodec) String() string {
	switch c {
	case VideoCodecH264:
		return "h264"
	case VideoCodecHEVC:
		return "hevc"
	default:
		return "unknown"
	}
}

// MimeType returns the media type string used for track formats.
func (c VideoCodec) MimeType() string {
	switch c {
	case VideoCodecH264:
		return "video/avc"
	case VideoCodecHEVC:
		return "video/hevc"
	default:
		return ""
	}
}

// ParseVideoCodec parses a codec name ("h264" or "hevc").
func ParseVideoCodec(s string) (VideoCodec, error) {
	switch s {
	case "h264", "avc":
		return VideoCodecH264, nil
	case "hevc", "h265":
		return VideoCodecHEVC, nil
	default:
		return VideoCodecH264, fmt.Errorf("unknown video codec %q", s)
	}
}

// AudioCodec identifies an audio codec.
type AudioCodec int

const (
	AudioCodecUnknown AudioCodec = iota
	AudioCodecAAC
)

func (c AudioCodec) String() string {
	switch c {
	case AudioCodecAAC:
		return "aac"
	default:
		return "unknown"
	}
}

// MimeType returns the media type string used for track formats.
func (c AudioCodec) MimeType() string {
	switch c {
	case AudioCodecAAC:
		return "audio/mp4a-latm"
	default:
		return ""
	}
}

// SpeedPreset trades encoding speed against compression efficiency.
// Faster presets leave more headroom in the bitrate budget.
type SpeedPreset int

const (
	SpeedUltrafast SpeedPreset = iota
	SpeedFast
	SpeedBalanced
)

func (s SpeedPreset) String() string {
	switch s {
	case SpeedUltrafast:
		return "ultrafast"
	case SpeedFast:
		return "fast"
	case SpeedBalanced:
		return "balanced"
	default:
		return "unknown"
	}
}

// bitrateFactor scales the pixel-rate bitrate base for this preset.
func (s SpeedPreset) bitrateFactor() float64 {
	switch s {
	case SpeedFast:
		return 0.8
	case SpeedBalanced:
		return 0.7
	default:
		return 0.9
	}
}

// ParseSpeedPreset parses a preset name.
func ParseSpeedPreset(s string) (SpeedPreset, error) {
	switch s {
	case "ultrafast":
		return SpeedUltrafast, nil
	case "fast":
		return SpeedFast, nil
	case "balanced":
		return SpeedBalanced, nil
	default:
		return SpeedUltrafast, fmt.Errorf("unknown speed preset %q", s)
	}
}

// RateControlMode defines the encoder rate control mode.
type RateControlMode int

const (
	RateControlVBR RateControlMode = iota // Variable bitrate
	RateControlCBR                        // Constant bitrate
	RateControlCQ                         // Constant quality
)

func (r RateControlMode) String() string {
	switch r {
	case RateControlVBR:
		return "VBR"
	case RateControlCBR:
		return "CBR"
	case RateControlCQ:
		return "CQ"
	default:
		return "Unknown"
	}
}

// EncoderPriority hints how the encoder should schedule itself against
// other hardware codec users. Forwarded to the encoder untouched.
type EncoderPriority int

const (
	PriorityThroughput EncoderPriority = iota // Batch: finish as fast as possible
	PriorityRealtime                          // Yield to realtime codec sessions
)

func (p EncoderPriority) String() string {
	switch p {
	case PriorityRealtime:
		return "realtime"
	default:
		return "throughput"
	}
}
