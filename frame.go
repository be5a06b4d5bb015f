package compress

// TrackKind distinguishes elementary stream types within a container.
type TrackKind int

const (
	TrackVideo TrackKind = iota
	TrackAudio
)

func (k TrackKind) String() string {
	switch k {
	case TrackVideo:
		return "video"
	case TrackAudio:
		return "audio"
	default:
		return "unknown"
	}
}

// Surface is an opaque GPU-visible image buffer. Surfaces are created
// and interpreted by the platform backend; the core only routes them.
type Surface interface {
	// Handle returns the native handle backing the surface.
	Handle() uintptr
}

// FrameUnit is one decoded image with its presentation timestamp.
// It is owned by the relay pump between the decoder yielding it and
// the relay consuming it, and must not be retained past that step.
type FrameUnit struct {
	Image  Surface // Decoded image, resident in GPU-visible memory
	Width  int     // Frame width in pixels
	Height int     // Frame height in pixels
	PTS    int64   // Presentation timestamp in microseconds
}

// CompressedSample is one encoded access unit plus its timing and
// framing flags. Produced by the demuxer or the encoder, consumed
// exactly once by its downstream stage.
type CompressedSample struct {
	Data        []byte
	PTS         int64 // Presentation timestamp in microseconds
	Key         bool  // Sync sample (can be decoded independently)
	Config      bool  // Codec parameter sets, not a timed sample
	EndOfStream bool  // No further samples follow on this stream
}

// Clone creates a deep copy of the sample. Use this when the sample
// data must outlive the producer's buffer.
func (s *CompressedSample) Clone() *CompressedSample {
	clone := &CompressedSample{
		PTS:         s.PTS,
		Key:         s.Key,
		Config:      s.Config,
		EndOfStream: s.EndOfStream,
	}
	if s.Data != nil {
		clone.Data = make([]byte, len(s.Data))
		copy(clone.Data, s.Data)
	}
	return clone
}

// PCMChunk holds uncompressed linear audio samples, the intermediate
// form between the audio decoder and re-encoder.
type PCMChunk struct {
	Data       []byte
	SampleRate int   // Samples per second per channel
	Channels   int   // 1 = mono, 2 = stereo
	PTS        int64 // Presentation timestamp in microseconds
}
