package compress

import (
	"errors"
	"io"
	"sync"
	"testing"
)

// =============================================================================
// Audio codec fakes
// =============================================================================

type fakeAudioDecoder struct {
	mu      sync.Mutex
	pending []*PCMChunk
	eos     bool
	closed  bool
}

func (d *fakeAudioDecoder) Push(sample *CompressedSample) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if sample.EndOfStream {
		d.eos = true
		return nil
	}
	d.pending = append(d.pending, &PCMChunk{
		Data: make([]byte, 1024), SampleRate: 44_100, Channels: 2, PTS: sample.PTS,
	})
	return nil
}

func (d *fakeAudioDecoder) Samples() (*PCMChunk, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.pending) > 0 {
		c := d.pending[0]
		d.pending = d.pending[1:]
		return c, nil
	}
	if d.eos {
		return nil, io.EOF
	}
	return nil, nil
}

func (d *fakeAudioDecoder) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

type fakeAudioEncoder struct {
	mu      sync.Mutex
	cfg     AudioEncoderConfig
	pending []*CompressedSample
	eos     bool
	closed  bool
}

func (e *fakeAudioEncoder) Format() TrackFormat {
	return TrackFormat{
		Kind:       TrackAudio,
		MimeType:   e.cfg.Codec.MimeType(),
		SampleRate: e.cfg.SampleRate,
		Channels:   e.cfg.Channels,
	}
}

func (e *fakeAudioEncoder) Push(chunk *PCMChunk) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending = append(e.pending, &CompressedSample{Data: []byte{0x21}, PTS: chunk.PTS})
	return nil
}

func (e *fakeAudioEncoder) SignalEndOfInput() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.eos = true
	return nil
}

func (e *fakeAudioEncoder) Sample() (*CompressedSample, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.pending) > 0 {
		s := e.pending[0]
		e.pending = e.pending[1:]
		return s, nil
	}
	if e.eos {
		return nil, io.EOF
	}
	return nil, nil
}

func (e *fakeAudioEncoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// =============================================================================
// Tests
// =============================================================================

func newAudioRig(t *testing.T, entries []demuxEntry) (*TrackRouter, TrackDescriptor, *MuxerSequencer, *fakeContainerWriter, *Session) {
	t.Helper()
	dmx := newFakeDemuxer(testTracks, entries)
	router, err := NewTrackRouter(dmx)
	if err != nil {
		t.Fatalf("NewTrackRouter: %v", err)
	}
	track, ok := router.Audio()
	if !ok {
		t.Fatal("no audio track")
	}
	writer := newFakeContainerWriter()
	return router, track, NewMuxerSequencer(writer, true), writer, NewSessionRegistry().Open()
}

func TestAudioWriterPassthrough(t *testing.T) {
	router, track, seq, writer, session := newAudioRig(t, []demuxEntry{
		{2, audioSample(0)},
		{2, audioSample(23_000)},
		{2, audioSample(46_000)},
	})

	w, err := NewAudioWriter(AudioWriterConfig{
		Session: session, Router: router, Track: track,
		Sequencer: seq, Strategy: AudioPassthrough,
	})
	if err != nil {
		t.Fatalf("NewAudioWriter: %v", err)
	}
	if err := w.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// The latch is still waiting on the video format; the samples were
	// buffered and flush once it arrives.
	if seq.Started() {
		t.Fatal("sequencer started without video format")
	}
	if err := seq.SetVideoFormat(testVideoFormat); err != nil {
		t.Fatalf("SetVideoFormat: %v", err)
	}
	if got := writer.samplePTS(1); len(got) != 3 || got[0] != 0 || got[1] != 23_000 || got[2] != 46_000 {
		t.Fatalf("audio PTS = %v, want [0 23000 46000]", got)
	}

	// Passthrough registers the probed source format untouched.
	if len(writer.tracks) != 2 {
		t.Fatalf("tracks = %d, want 2", len(writer.tracks))
	}
	audio := writer.tracks[1]
	if audio.MimeType != track.MimeType || audio.SampleRate != 44_100 || audio.Channels != 2 {
		t.Errorf("audio format = %+v", audio)
	}
}

func TestAudioWriterReencode(t *testing.T) {
	router, track, seq, writer, session := newAudioRig(t, []demuxEntry{
		{2, audioSample(0)},
		{2, audioSample(23_000)},
	})
	if err := seq.SetVideoFormat(testVideoFormat); err != nil {
		t.Fatalf("SetVideoFormat: %v", err)
	}

	w, err := NewAudioWriter(AudioWriterConfig{
		Session: session, Router: router, Track: track,
		Sequencer: seq, Strategy: AudioReencode,
		Decoder: &fakeAudioDecoder{},
		Encoder: &fakeAudioEncoder{cfg: DefaultAudioEncoderConfig()},
	})
	if err != nil {
		t.Fatalf("NewAudioWriter: %v", err)
	}
	if err := w.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := writer.samplePTS(1); len(got) != 2 || got[0] != 0 || got[1] != 23_000 {
		t.Fatalf("audio PTS = %v, want [0 23000]", got)
	}
	audio := writer.tracks[1]
	if audio.MimeType != AudioCodecAAC.MimeType() || audio.SampleRate != 44_100 || audio.Channels != 2 {
		t.Errorf("audio format = %+v, want re-encode target profile", audio)
	}
}

func TestAudioWriterCancelled(t *testing.T) {
	router, track, seq, _, session := newAudioRig(t, []demuxEntry{
		{2, audioSample(0)},
	})
	session.Cancel()

	w, err := NewAudioWriter(AudioWriterConfig{
		Session: session, Router: router, Track: track,
		Sequencer: seq, Strategy: AudioPassthrough,
	})
	if err != nil {
		t.Fatalf("NewAudioWriter: %v", err)
	}
	if err := w.Run(); !errors.Is(err, errCancelled) {
		t.Fatalf("Run = %v, want cancellation", err)
	}
}

func TestAudioWriterReencodeRequiresCodecs(t *testing.T) {
	router, track, seq, _, session := newAudioRig(t, nil)
	_, err := NewAudioWriter(AudioWriterConfig{
		Session: session, Router: router, Track: track,
		Sequencer: seq, Strategy: AudioReencode,
	})
	if err == nil {
		t.Fatal("reencode without codecs accepted")
	}
}
