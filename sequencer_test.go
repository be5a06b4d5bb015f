package compress

import (
	"errors"
	"os"
	"sync"
	"testing"
)

// fakeContainerWriter records the mux call sequence. When path is set
// it creates the output file on Start, mirroring real writers, so
// tests can assert partial output gets deleted.
type fakeContainerWriter struct {
	mu        sync.Mutex
	path      string
	tracks    []TrackFormat
	samples   map[int][]*CompressedSample
	started   bool
	finalized bool
	closed    bool

	startErr error
	writeErr error
}

func newFakeContainerWriter() *fakeContainerWriter {
	return &fakeContainerWriter{samples: make(map[int][]*CompressedSample)}
}

func (w *fakeContainerWriter) AddTrack(format TrackFormat) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return 0, errors.New("add track after start")
	}
	w.tracks = append(w.tracks, format)
	return len(w.tracks) - 1, nil
}

func (w *fakeContainerWriter) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.startErr != nil {
		return w.startErr
	}
	if w.path != "" {
		f, err := os.Create(w.path)
		if err != nil {
			return err
		}
		f.Close()
	}
	w.started = true
	return nil
}

func (w *fakeContainerWriter) WriteSample(trackID int, sample *CompressedSample) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.writeErr != nil {
		return w.writeErr
	}
	if !w.started {
		return errors.New("write before start")
	}
	w.samples[trackID] = append(w.samples[trackID], sample)
	return nil
}

func (w *fakeContainerWriter) Finalize() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.finalized = true
	return nil
}

func (w *fakeContainerWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *fakeContainerWriter) samplePTS(trackID int) []int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	var pts []int64
	for _, s := range w.samples[trackID] {
		pts = append(pts, s.PTS)
	}
	return pts
}

var (
	testVideoFormat = TrackFormat{Kind: TrackVideo, MimeType: "video/avc",
		Width: 1080, Height: 608, ConfigData: []byte{0x67, 0x68}}
	testAudioFormat = TrackFormat{Kind: TrackAudio, MimeType: "audio/mp4a-latm",
		SampleRate: 44_100, Channels: 2}
)

func TestSequencerStartGatedOnBothFormats(t *testing.T) {
	w := newFakeContainerWriter()
	m := NewMuxerSequencer(w, true)

	// Writes before the latch opens are buffered, not lost.
	if err := m.WriteVideo(videoSample(0)); err != nil {
		t.Fatalf("WriteVideo: %v", err)
	}
	if err := m.WriteAudio(audioSample(0)); err != nil {
		t.Fatalf("WriteAudio: %v", err)
	}
	if m.Started() || w.started {
		t.Fatal("started before formats registered")
	}

	if err := m.SetVideoFormat(testVideoFormat); err != nil {
		t.Fatalf("SetVideoFormat: %v", err)
	}
	if m.Started() {
		t.Fatal("started with audio format still missing")
	}
	if err := m.SetAudioFormat(testAudioFormat); err != nil {
		t.Fatalf("SetAudioFormat: %v", err)
	}
	if !m.Started() || !w.started {
		t.Fatal("latch did not open with both formats registered")
	}

	if len(w.tracks) != 2 {
		t.Fatalf("tracks = %d, want 2", len(w.tracks))
	}
	if got := w.samplePTS(0); len(got) != 1 || got[0] != 0 {
		t.Errorf("video samples = %v, want buffered write flushed", got)
	}
	if got := w.samplePTS(1); len(got) != 1 || got[0] != 0 {
		t.Errorf("audio samples = %v, want buffered write flushed", got)
	}
}

func TestSequencerVideoOnlyStartsOnVideoFormat(t *testing.T) {
	w := newFakeContainerWriter()
	m := NewMuxerSequencer(w, false)

	if err := m.SetVideoFormat(testVideoFormat); err != nil {
		t.Fatalf("SetVideoFormat: %v", err)
	}
	if !m.Started() {
		t.Fatal("video-only latch did not open on video format")
	}
	if len(w.tracks) != 1 {
		t.Fatalf("tracks = %d, want 1", len(w.tracks))
	}
}

func TestSequencerFirstFormatWins(t *testing.T) {
	w := newFakeContainerWriter()
	m := NewMuxerSequencer(w, false)

	if err := m.SetVideoFormat(testVideoFormat); err != nil {
		t.Fatalf("SetVideoFormat: %v", err)
	}
	dupe := testVideoFormat
	dupe.Width = 640
	if err := m.SetVideoFormat(dupe); err != nil {
		t.Fatalf("repeat SetVideoFormat: %v", err)
	}
	if len(w.tracks) != 1 || w.tracks[0].Width != 1080 {
		t.Fatalf("tracks = %+v, want single track with first format", w.tracks)
	}
}

func TestSequencerRejectsAudioOnVideoOnly(t *testing.T) {
	m := NewMuxerSequencer(newFakeContainerWriter(), false)
	err := m.WriteAudio(audioSample(0))
	if !IsKind(err, KindMuxerWriteFailed) {
		t.Fatalf("err = %v, want MuxerWriteFailed", err)
	}
}

func TestSequencerRejectsOutOfOrderPTS(t *testing.T) {
	w := newFakeContainerWriter()
	m := NewMuxerSequencer(w, false)
	if err := m.SetVideoFormat(testVideoFormat); err != nil {
		t.Fatalf("SetVideoFormat: %v", err)
	}

	if err := m.WriteVideo(videoSample(33_000)); err != nil {
		t.Fatalf("WriteVideo: %v", err)
	}
	// Equal timestamps are allowed, regressions are not.
	if err := m.WriteVideo(videoSample(33_000)); err != nil {
		t.Fatalf("WriteVideo equal pts: %v", err)
	}
	err := m.WriteVideo(videoSample(10_000))
	if !IsKind(err, KindMuxerWriteFailed) {
		t.Fatalf("err = %v, want MuxerWriteFailed", err)
	}
}

func TestSequencerFinalizeBeforeStart(t *testing.T) {
	m := NewMuxerSequencer(newFakeContainerWriter(), false)
	err := m.Finalize()
	if !IsKind(err, KindMuxerWriteFailed) {
		t.Fatalf("err = %v, want MuxerWriteFailed", err)
	}
}

func TestSequencerWriteAfterFinalize(t *testing.T) {
	w := newFakeContainerWriter()
	m := NewMuxerSequencer(w, false)
	if err := m.SetVideoFormat(testVideoFormat); err != nil {
		t.Fatalf("SetVideoFormat: %v", err)
	}
	if err := m.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if !w.finalized {
		t.Fatal("writer not finalized")
	}
	// Finalize is idempotent.
	if err := m.Finalize(); err != nil {
		t.Fatalf("second Finalize: %v", err)
	}

	err := m.WriteVideo(videoSample(99_000))
	if !IsKind(err, KindMuxerWriteFailed) {
		t.Fatalf("err = %v, want MuxerWriteFailed", err)
	}
}

func TestSequencerStartFailure(t *testing.T) {
	w := newFakeContainerWriter()
	w.startErr = errors.New("disk full")
	m := NewMuxerSequencer(w, false)
	err := m.SetVideoFormat(testVideoFormat)
	if !IsKind(err, KindMuxerWriteFailed) {
		t.Fatalf("err = %v, want MuxerWriteFailed", err)
	}
}
