//go:build linux

package compress

import "github.com/ebitengine/purego"

// probeCodecRuntime looks for a loadable hardware codec runtime: the
// NDK media library on Android, VA-API elsewhere. Either one hosts
// both H.264 and HEVC sessions; per-codec capability is negotiated
// when the encoder is configured.
func probeCodecRuntime() (h264, hevc bool) {
	for _, lib := range []string{"libmediandk.so", "libva.so.2", "libva.so"} {
		handle, err := purego.Dlopen(lib, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err == nil && handle != 0 {
			return true, true
		}
	}
	return false, false
}
