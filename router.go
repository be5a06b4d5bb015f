package compress

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// TrackRouter wraps the source demuxer: it picks the first video track
// and, when present, the first audio track, then exposes ordered
// per-track sample pulls on top of the demuxer's interleaved reads.
// Reads are serialized internally; the video and audio pumps pull from
// it concurrently.
type TrackRouter struct {
	dmx      Demuxer
	video    TrackDescriptor
	audio    TrackDescriptor
	hasAudio bool

	mu sync.Mutex
	// Samples read while draining another track, keyed by track id.
	pending map[int][]*CompressedSample
	eof     bool
}

// NewTrackRouter probes the container and selects tracks by media type
// prefix. Fails with KindNoVideoTrack when no video track exists; this
// is fatal for the whole session.
func NewTrackRouter(dmx Demuxer) (*TrackRouter, error) {
	r := &TrackRouter{
		dmx:     dmx,
		pending: make(map[int][]*CompressedSample),
	}

	var haveVideo bool
	for _, t := range dmx.Tracks() {
		switch {
		case !haveVideo && strings.HasPrefix(t.MimeType, "video/"):
			r.video = t
			haveVideo = true
		case !r.hasAudio && strings.HasPrefix(t.MimeType, "audio/"):
			r.audio = t
			r.hasAudio = true
		}
	}
	if !haveVideo {
		return nil, newError(KindNoVideoTrack, "source has no video track")
	}

	if err := dmx.Select(r.video.ID); err != nil {
		return nil, wrapError(KindSourceUnreadable, err, "select video track %d", r.video.ID)
	}
	if r.hasAudio {
		if err := dmx.Select(r.audio.ID); err != nil {
			return nil, wrapError(KindSourceUnreadable, err, "select audio track %d", r.audio.ID)
		}
	}
	return r, nil
}

// Video returns the selected video track descriptor.
func (r *TrackRouter) Video() TrackDescriptor { return r.video }

// Audio returns the selected audio track descriptor, if any.
func (r *TrackRouter) Audio() (TrackDescriptor, bool) { return r.audio, r.hasAudio }

// Next returns the next compressed sample for the given track in
// container order, or io.EOF when the track is exhausted. Samples of
// the other selected track encountered on the way are buffered, not
// dropped.
func (r *TrackRouter) Next(trackID int) (*CompressedSample, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nextLocked(trackID)
}

func (r *TrackRouter) nextLocked(trackID int) (*CompressedSample, error) {
	if q := r.pending[trackID]; len(q) > 0 {
		s := q[0]
		r.pending[trackID] = q[1:]
		return s, nil
	}
	if r.eof {
		return nil, io.EOF
	}

	for {
		id, sample, err := r.dmx.ReadSample()
		if errors.Is(err, io.EOF) {
			r.eof = true
			return nil, io.EOF
		}
		if err != nil {
			return nil, wrapError(KindSourceUnreadable, err, "read sample")
		}
		if id == trackID {
			return sample, nil
		}
		r.pending[id] = append(r.pending[id], sample)
	}
}

// Peek returns the next sample for the given track without consuming
// it. The other track is deselected for the read so the demuxer can
// advance straight to the requested one, then restored; the muxer
// needs both track formats before it can start and audio formats are
// sometimes only available after reading one sample.
func (r *TrackRouter) Peek(trackID int) (*CompressedSample, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if q := r.pending[trackID]; len(q) > 0 {
		return q[0], nil
	}

	other, hasOther := r.otherTrack(trackID)
	if hasOther {
		if err := r.dmx.Deselect(other); err != nil {
			return nil, wrapError(KindSourceUnreadable, err, "deselect track %d", other)
		}
	}

	sample, err := r.nextLocked(trackID)

	if hasOther {
		if selErr := r.dmx.Select(other); selErr != nil && err == nil {
			err = wrapError(KindSourceUnreadable, selErr, "reselect track %d", other)
		}
	}
	if err != nil {
		return nil, err
	}

	r.pending[trackID] = append([]*CompressedSample{sample}, r.pending[trackID]...)
	return sample, nil
}

func (r *TrackRouter) otherTrack(trackID int) (int, bool) {
	if r.hasAudio && trackID == r.audio.ID {
		return r.video.ID, true
	}
	if r.hasAudio && trackID == r.video.ID {
		return r.audio.ID, true
	}
	return 0, false
}

// Close closes the underlying demuxer.
func (r *TrackRouter) Close() error {
	if r.dmx == nil {
		return nil
	}
	err := r.dmx.Close()
	r.dmx = nil
	if err != nil {
		return fmt.Errorf("close demuxer: %w", err)
	}
	return nil
}
