// Package compress transcodes complete video files into smaller,
// hardware-encoded derivatives for upload-constrained clients, and
// separately recompresses still images.
//
// Key pieces include:
//   - PlanCompression: output geometry/bitrate planning (pure)
//   - Compressor: Compress/Cancel/GetMetadata session surface
//   - SurfaceRelayPump: decode -> GPU relay -> encode -> mux engine
//   - AudioWriter: audio passthrough or PCM re-encode, run concurrently
//   - MuxerSequencer: format-gated container start and ordered writes
//   - ProgressReporter: throttled, monotonic progress events
//   - CompressImage: still-image resize and re-encode
//
// # Architecture
//
//	Compress: Demuxer -> TrackRouter -> SampleDecoder -> SurfaceRelay
//	          -> SurfaceEncoder -> MuxerSequencer -> ContainerWriter
//	Audio:    TrackRouter -> (copy | AudioDecoder -> AudioEncoder)
//	          -> MuxerSequencer
//
// The two pumps run concurrently and join before the container
// finalizes. The GPU compositing stage is confined to a single
// goroutine that exclusively owns the graphics context.
//
// # Platform Backends
//
// Container and codec primitives are capability interfaces (Backend);
// the package ships no software codecs. ProbeHardware checks for a
// loadable hardware codec runtime via dlopen; without one, sessions
// fail fast with CodecConfigurationFailed.
//
// # Cancellation
//
// Cancellation is cooperative: Cancel (or context cancellation) sets a
// one-way per-session flag that the pumps poll every iteration.
// A cancelled session deletes its partial output and reports
// OutcomeCancelled, distinct from failure.
package compress
