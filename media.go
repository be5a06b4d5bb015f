package compress

import "io"

// =============================================================================
// Platform Capability Interfaces
// =============================================================================
//
// The container, codec, and compositing primitives are delegated to a
// platform backend. The core pipeline only moves samples and frames
// between these interfaces; tests drive them with in-memory fakes.

// TrackDescriptor describes one elementary stream probed from the
// source container. Immutable once probed.
type TrackDescriptor struct {
	ID              int
	Kind            TrackKind
	MimeType        string // Declared media type, e.g. "video/avc"
	Width           int    // Native (pre-rotation) width, video only
	Height          int    // Native (pre-rotation) height, video only
	RotationDegrees int    // Display rotation: 0, 90, 180 or 270
	DurationMicros  int64
	BitrateBps      int // Estimated stream bitrate, 0 if unknown
	SampleRate      int // Audio only
	Channels        int // Audio only
}

// TrackFormat is the output format registered with the container
// writer before it starts.
type TrackFormat struct {
	Kind       TrackKind
	MimeType   string
	Width      int    // Video only
	Height     int    // Video only
	SampleRate int    // Audio only
	Channels   int    // Audio only
	ConfigData []byte // Codec parameter sets, if required by the container
}

// Demuxer reads a source container: enumerates tracks and yields
// compressed samples from the selected tracks in container order.
type Demuxer interface {
	io.Closer

	// Tracks returns the descriptors of all tracks in the container.
	Tracks() []TrackDescriptor

	// Select marks a track for reading.
	Select(trackID int) error

	// Deselect stops reading a track. Selection may change mid-stream;
	// the demuxer continues from its current position.
	Deselect(trackID int) error

	// ReadSample returns the next sample of any selected track in
	// container order, or io.EOF when all selected tracks are drained.
	ReadSample() (trackID int, sample *CompressedSample, err error)
}

// SampleDecoder decodes compressed video samples into frames on
// GPU-visible surfaces.
type SampleDecoder interface {
	io.Closer

	// Ready reports whether the decoder can accept another input sample.
	Ready() bool

	// Push queues one compressed sample. A sample with EndOfStream set
	// marks the end of input; no further pushes follow.
	Push(sample *CompressedSample) error

	// Frame returns the next decoded frame, nil if none is ready yet,
	// or io.EOF once the end-of-stream marker has propagated through.
	Frame() (*FrameUnit, error)
}

// EncoderConfig configures a hardware surface encoder.
type EncoderConfig struct {
	Codec       VideoCodec
	Width       int // Output width, even
	Height      int // Output height, even
	BitrateBps  int
	FPS         int // Hint only; pacing comes from frame timestamps
	Speed       SpeedPreset
	RateControl RateControlMode
	Priority    EncoderPriority
}

// SurfaceEncoder encodes frames presented on its input surface.
// Configuration data arrives as a sample with the Config flag set,
// before the first real frame.
type SurfaceEncoder interface {
	io.Closer

	// Surface returns the encoder's input surface. Frames relayed onto
	// it are consumed at their stamped presentation time.
	Surface() Surface

	// SignalEndOfInput tells the encoder no further frames will arrive.
	SignalEndOfInput() error

	// Sample returns the next output sample, nil if none is ready, or
	// io.EOF once the encoder has drained after end-of-input.
	Sample() (*CompressedSample, error)
}

// SurfaceRelay composites a decoded frame onto a destination surface
// without a CPU-side pixel copy, stamping the frame's presentation
// timestamp. Calls are serialized onto the owning graphics thread by
// the pipeline; implementations may assume single-threaded access.
type SurfaceRelay interface {
	io.Closer
	Render(frame *FrameUnit, dst Surface) error
}

// ContainerWriter writes an output container. Tracks must be added and
// Start called before the first WriteSample; Finalize writes the
// trailer/index.
type ContainerWriter interface {
	io.Closer
	AddTrack(format TrackFormat) (trackID int, err error)
	Start() error
	WriteSample(trackID int, sample *CompressedSample) error
	Finalize() error
}

// AudioDecoder decodes compressed audio to linear PCM. Used only by
// the re-encode audio strategy.
type AudioDecoder interface {
	io.Closer

	// Push queues one compressed sample; EndOfStream marks the end.
	Push(sample *CompressedSample) error

	// Samples returns the next decoded chunk, nil if none is ready, or
	// io.EOF once end-of-stream has propagated.
	Samples() (*PCMChunk, error)
}

// AudioEncoderConfig configures the audio re-encoder's fixed profile.
type AudioEncoderConfig struct {
	Codec      AudioCodec
	BitrateBps int
	SampleRate int
	Channels   int
}

// DefaultAudioEncoderConfig returns the profile used when source audio
// cannot be passed through untouched.
func DefaultAudioEncoderConfig() AudioEncoderConfig {
	return AudioEncoderConfig{
		Codec:      AudioCodecAAC,
		BitrateBps: 128_000,
		SampleRate: 44_100,
		Channels:   2,
	}
}

// AudioEncoder encodes linear PCM to the configured profile.
type AudioEncoder interface {
	io.Closer

	// Format returns the output track format for this encoder.
	Format() TrackFormat

	// Push queues one PCM chunk.
	Push(chunk *PCMChunk) error

	// SignalEndOfInput tells the encoder no further chunks will arrive.
	SignalEndOfInput() error

	// Sample returns the next encoded sample, nil if none is ready, or
	// io.EOF once the encoder has drained after end-of-input.
	Sample() (*CompressedSample, error)
}

// Backend bundles the platform constructors the pipeline needs.
type Backend interface {
	// HardwareAvailable reports whether a hardware path exists for the
	// codec. Checked before any native resource is created; see
	// ProbeHardware for the default dlopen-based probe.
	HardwareAvailable(codec VideoCodec) bool

	OpenDemuxer(uri string) (Demuxer, error)
	NewSampleDecoder(track TrackDescriptor) (SampleDecoder, error)
	NewSurfaceEncoder(cfg EncoderConfig) (SurfaceEncoder, error)
	NewSurfaceRelay() (SurfaceRelay, error)
	NewContainerWriter(uri string) (ContainerWriter, error)
	NewAudioDecoder(track TrackDescriptor) (AudioDecoder, error)
	NewAudioEncoder(cfg AudioEncoderConfig) (AudioEncoder, error)
}
