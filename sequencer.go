package compress

import (
	"sync"
)

// MuxerSequencer gates the container writer behind a start latch that
// opens only once every expected track format is registered: the video
// format is known only after the encoder emits its configuration data,
// the audio format from source probing or the re-encoder, and writing
// before both are registered is undefined for the underlying writer.
// Writes arriving before the latch opens are buffered and flushed in
// arrival order on start.
type MuxerSequencer struct {
	writer      ContainerWriter
	expectAudio bool

	mu          sync.Mutex
	videoFormat *TrackFormat
	audioFormat *TrackFormat
	started     bool
	finalized   bool
	videoTrack  int
	audioTrack  int
	pending     []pendingSample
	lastPTS     map[TrackKind]int64
}

type pendingSample struct {
	kind   TrackKind
	sample *CompressedSample
}

// NewMuxerSequencer wraps a container writer. expectAudio controls
// whether the start latch waits for an audio format.
func NewMuxerSequencer(writer ContainerWriter, expectAudio bool) *MuxerSequencer {
	return &MuxerSequencer{
		writer:      writer,
		expectAudio: expectAudio,
		lastPTS: map[TrackKind]int64{
			TrackVideo: -1,
			TrackAudio: -1,
		},
	}
}

// SetVideoFormat registers the encoder's output format. Idempotent on
// repeated configuration data: only the first registration counts.
func (m *MuxerSequencer) SetVideoFormat(f TrackFormat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.videoFormat == nil {
		m.videoFormat = &f
	}
	return m.maybeStartLocked()
}

// SetAudioFormat registers the audio track format.
func (m *MuxerSequencer) SetAudioFormat(f TrackFormat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.audioFormat == nil {
		m.audioFormat = &f
	}
	return m.maybeStartLocked()
}

// maybeStartLocked opens the latch when every expected format slot is
// filled. Starting is a single transition; it never runs twice.
func (m *MuxerSequencer) maybeStartLocked() error {
	if m.started || m.videoFormat == nil {
		return nil
	}
	if m.expectAudio && m.audioFormat == nil {
		return nil
	}

	var err error
	m.videoTrack, err = m.writer.AddTrack(*m.videoFormat)
	if err != nil {
		return wrapError(KindMuxerWriteFailed, err, "add video track")
	}
	if m.expectAudio {
		m.audioTrack, err = m.writer.AddTrack(*m.audioFormat)
		if err != nil {
			return wrapError(KindMuxerWriteFailed, err, "add audio track")
		}
	}
	if err := m.writer.Start(); err != nil {
		return wrapError(KindMuxerWriteFailed, err, "start container writer")
	}
	m.started = true

	for _, p := range m.pending {
		if err := m.writeLocked(p.kind, p.sample); err != nil {
			return err
		}
	}
	m.pending = nil
	return nil
}

// WriteVideo accepts one encoded video sample.
func (m *MuxerSequencer) WriteVideo(sample *CompressedSample) error {
	return m.write(TrackVideo, sample)
}

// WriteAudio accepts one audio sample.
func (m *MuxerSequencer) WriteAudio(sample *CompressedSample) error {
	return m.write(TrackAudio, sample)
}

func (m *MuxerSequencer) write(kind TrackKind, sample *CompressedSample) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if kind == TrackAudio && !m.expectAudio {
		return newError(KindMuxerWriteFailed, "audio sample on video-only output")
	}
	if m.finalized {
		return newError(KindMuxerWriteFailed, "write after finalize")
	}

	if !m.started {
		// The latch opens within the first sample of each track, so
		// the buffer stays small. Clone: the producer's buffer does
		// not outlive the call.
		m.pending = append(m.pending, pendingSample{kind: kind, sample: sample.Clone()})
		return nil
	}
	return m.writeLocked(kind, sample)
}

func (m *MuxerSequencer) writeLocked(kind TrackKind, sample *CompressedSample) error {
	if sample.PTS < m.lastPTS[kind] {
		return newError(KindMuxerWriteFailed,
			"%s sample out of order: pts %d after %d", kind, sample.PTS, m.lastPTS[kind])
	}
	m.lastPTS[kind] = sample.PTS

	trackID := m.videoTrack
	if kind == TrackAudio {
		trackID = m.audioTrack
	}
	if err := m.writer.WriteSample(trackID, sample); err != nil {
		return wrapError(KindMuxerWriteFailed, err, "write %s sample pts %d", kind, sample.PTS)
	}
	return nil
}

// Started reports whether the start latch has opened.
func (m *MuxerSequencer) Started() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

// Finalize writes the trailer/index after both tracks have drained.
func (m *MuxerSequencer) Finalize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.finalized {
		return nil
	}
	if !m.started {
		return newError(KindMuxerWriteFailed, "finalize before start: track formats never registered")
	}
	m.finalized = true
	if err := m.writer.Finalize(); err != nil {
		return wrapError(KindMuxerWriteFailed, err, "finalize container")
	}
	return nil
}

// Close closes the underlying writer without finalizing. Used on the
// failure and cancellation paths where partial output is discarded.
func (m *MuxerSequencer) Close() error {
	return m.writer.Close()
}
