//go:build !darwin && !linux

package compress

// probeCodecRuntime: no hardware codec probe on this platform.
func probeCodecRuntime() (h264, hevc bool) {
	return false, false
}
