package compress

import "sync"

var (
	hwOnce sync.Once
	hwH264 bool
	hwHEVC bool
)

// ProbeHardware reports whether a hardware codec runtime for the given
// codec can be loaded on this machine. Backends typically delegate
// their HardwareAvailable to this; the probe runs once and is cached.
//
// No software fallback exists behind this check: a negative probe
// surfaces as CodecConfigurationFailed before any native resource is
// created.
func ProbeHardware(codec VideoCodec) bool {
	hwOnce.Do(func() {
		hwH264, hwHEVC = probeCodecRuntime()
	})
	switch codec {
	case VideoCodecHEVC:
		return hwHEVC
	default:
		return hwH264
	}
}
