//go:build darwin

package compress

import "github.com/ebitengine/purego"

// probeCodecRuntime checks whether VideoToolbox is loadable. It hosts
// both the H.264 and HEVC hardware sessions on this platform.
func probeCodecRuntime() (h264, hevc bool) {
	const videoToolbox = "/System/Library/Frameworks/VideoToolbox.framework/VideoToolbox"

	handle, err := purego.Dlopen(videoToolbox, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil || handle == 0 {
		return false, false
	}
	return true, true
}
