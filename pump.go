package compress

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-hclog"
)

// PumpState represents the state of the surface relay pump.
type PumpState int32

const (
	PumpIdle       PumpState = iota // Not started
	PumpRunning                     // Feeding and draining
	PumpFinalizing                  // Encoder end-of-stream seen, draining tail
	PumpCompleted
	PumpCancelled
	PumpFailed
)

func (s PumpState) String() string {
	switch s {
	case PumpIdle:
		return "idle"
	case PumpRunning:
		return "running"
	case PumpFinalizing:
		return "finalizing"
	case PumpCompleted:
		return "completed"
	case PumpCancelled:
		return "cancelled"
	case PumpFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// defaultFrameWait bounds how long the pump waits for a newly decoded
// frame before declaring the relay stalled.
const defaultFrameWait = 50 * time.Millisecond

// SurfaceRelayPump moves compressed video through the hardware path:
// it feeds the decoder from the track router, relays each decoded
// frame through the GPU compositing stage onto the encoder's input
// surface with the frame's original presentation timestamp, and drains
// the encoder into the muxer sequencer. It runs until both
// end-of-stream markers propagate.
//
// The pump polls rather than blocks: if no stage has work ready it
// yields and retries, except that waiting longer than the configured
// frame-wait timeout with no progress at all is a fatal stall.
type SurfaceRelayPump struct {
	session  *Session
	router   *TrackRouter
	decoder  SampleDecoder
	encoder  SurfaceEncoder
	relay    *relayContext
	seq      *MuxerSequencer
	progress *ProgressReporter
	plan     CompressionPlan

	frameWait time.Duration
	log       hclog.Logger

	state atomic.Int32

	stats   PumpStats
	statsMu sync.Mutex
}

// PumpStats provides relay pump metrics.
type PumpStats struct {
	SamplesFed    uint64 // Compressed samples pushed into the decoder
	FramesRelayed uint64 // Frames composited onto the encoder surface
	SamplesMuxed  uint64 // Encoded samples forwarded to the sequencer
	ConfigSamples uint64 // Parameter-set samples consumed as track format
}

// PumpConfig configures a surface relay pump.
type PumpConfig struct {
	Session   *Session
	Router    *TrackRouter
	Decoder   SampleDecoder
	Encoder   SurfaceEncoder
	Relay     SurfaceRelay
	Sequencer *MuxerSequencer
	Progress  *ProgressReporter
	Plan      CompressionPlan
	FrameWait time.Duration // 0 = defaultFrameWait
	Logger    hclog.Logger  // nil = discard
}

// NewSurfaceRelayPump creates the video relay pump.
func NewSurfaceRelayPump(cfg PumpConfig) (*SurfaceRelayPump, error) {
	if cfg.Session == nil {
		return nil, errors.New("session is required")
	}
	if cfg.Router == nil {
		return nil, errors.New("router is required")
	}
	if cfg.Decoder == nil {
		return nil, errors.New("decoder is required")
	}
	if cfg.Encoder == nil {
		return nil, errors.New("encoder is required")
	}
	if cfg.Relay == nil {
		return nil, errors.New("relay is required")
	}
	if cfg.Sequencer == nil {
		return nil, errors.New("sequencer is required")
	}
	if cfg.FrameWait <= 0 {
		cfg.FrameWait = defaultFrameWait
	}
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}

	p := &SurfaceRelayPump{
		session:   cfg.Session,
		router:    cfg.Router,
		decoder:   cfg.Decoder,
		encoder:   cfg.Encoder,
		relay:     newRelayContext(cfg.Relay),
		seq:       cfg.Sequencer,
		progress:  cfg.Progress,
		plan:      cfg.Plan,
		frameWait: cfg.FrameWait,
		log:       cfg.Logger.Named("video-pump"),
	}
	p.state.Store(int32(PumpIdle))
	return p, nil
}

// State returns the current pump state.
func (p *SurfaceRelayPump) State() PumpState {
	return PumpState(p.state.Load())
}

// Stats returns pump metrics.
func (p *SurfaceRelayPump) Stats() PumpStats {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	return p.stats
}

// Run drives the pump to a terminal state. The returned error is nil
// for OutcomeCompleted and OutcomeCancelled, and a *Error for
// OutcomeFailed. Run never retries: a broken relay cannot resume
// mid-frame.
func (p *SurfaceRelayPump) Run() (Outcome, error) {
	p.state.Store(int32(PumpRunning))

	var (
		feeding     = true // Still pulling demux samples
		decoderDone = false
		videoTrack  = p.router.Video().ID
		lastMove    = time.Now()
	)

	for {
		// Cancellation is polled once per iteration; in-flight codec
		// calls complete before the flag is observed.
		if p.session.Cancelled() {
			p.state.Store(int32(PumpCancelled))
			p.log.Debug("cancelled", "session", p.session.ID())
			return OutcomeCancelled, nil
		}

		moved := false

		if feeding && p.decoder.Ready() {
			ok, err := p.feed(videoTrack)
			if err != nil {
				return p.fail(err)
			}
			if ok {
				moved = true
			} else {
				feeding = false
			}
		}

		drained, err := p.drainDecoder(&decoderDone)
		if err != nil {
			return p.fail(err)
		}
		moved = moved || drained

		encoderDone, wrote, err := p.drainEncoder()
		if err != nil {
			return p.fail(err)
		}
		moved = moved || wrote

		if encoderDone {
			p.state.Store(int32(PumpCompleted))
			return OutcomeCompleted, nil
		}

		if moved {
			lastMove = time.Now()
			continue
		}
		if time.Since(lastMove) > p.frameWait {
			return p.fail(newError(KindRelayStall,
				"no frame within %s (decoder done: %v)", p.frameWait, decoderDone))
		}
		time.Sleep(time.Millisecond)
	}
}

// feed pushes the next compressed video sample into the decoder.
// Returns false once the demux is exhausted, after pushing the
// explicit end-of-stream marker.
func (p *SurfaceRelayPump) feed(videoTrack int) (bool, error) {
	sample, err := p.router.Next(videoTrack)
	if errors.Is(err, io.EOF) {
		if err := p.decoder.Push(&CompressedSample{EndOfStream: true}); err != nil {
			return false, wrapError(KindCodecConfigurationFailed, err, "push end-of-stream")
		}
		p.log.Debug("demux exhausted, end-of-stream queued")
		return false, nil
	}
	if err != nil {
		return false, err // Already kinded by the router
	}
	if err := p.decoder.Push(sample); err != nil {
		return false, wrapError(KindCodecConfigurationFailed, err, "push sample pts %d", sample.PTS)
	}
	p.statsMu.Lock()
	p.stats.SamplesFed++
	p.statsMu.Unlock()
	return true, nil
}

// drainDecoder relays every available decoded frame onto the encoder
// surface. The frame's presentation timestamp is forwarded verbatim:
// the encoder paces rate control from inter-frame timestamp deltas.
func (p *SurfaceRelayPump) drainDecoder(decoderDone *bool) (bool, error) {
	moved := false
	for {
		frame, err := p.decoder.Frame()
		if errors.Is(err, io.EOF) {
			if !*decoderDone {
				*decoderDone = true
				if err := p.encoder.SignalEndOfInput(); err != nil {
					return moved, wrapError(KindCodecConfigurationFailed, err, "signal end of input")
				}
				p.log.Debug("decoder drained, encoder end-of-input signalled")
			}
			return moved, nil
		}
		if err != nil {
			return moved, wrapError(KindCodecConfigurationFailed, err, "decode")
		}
		if frame == nil {
			return moved, nil
		}

		if err := p.relay.Render(frame, p.encoder.Surface()); err != nil {
			return moved, wrapError(KindCodecConfigurationFailed, err, "relay frame pts %d", frame.PTS)
		}
		if p.progress != nil {
			p.progress.Update(frame.PTS)
		}
		p.statsMu.Lock()
		p.stats.FramesRelayed++
		p.statsMu.Unlock()
		moved = true
	}
}

// drainEncoder forwards encoder output to the sequencer. Configuration
// data registers the video track format instead of being written as a
// timed sample.
func (p *SurfaceRelayPump) drainEncoder() (done, moved bool, err error) {
	for {
		sample, err := p.encoder.Sample()
		if errors.Is(err, io.EOF) {
			return true, moved, nil
		}
		if err != nil {
			return false, moved, wrapError(KindCodecConfigurationFailed, err, "encode")
		}
		if sample == nil {
			return false, moved, nil
		}
		moved = true

		if sample.Config {
			if err := p.seq.SetVideoFormat(p.videoFormat(sample.Data)); err != nil {
				return false, moved, err
			}
			p.statsMu.Lock()
			p.stats.ConfigSamples++
			p.statsMu.Unlock()
			continue
		}
		if sample.EndOfStream && len(sample.Data) == 0 {
			// Bare marker; the next Sample call reports io.EOF.
			continue
		}
		if err := p.seq.WriteVideo(sample); err != nil {
			return false, moved, err
		}
		p.statsMu.Lock()
		p.stats.SamplesMuxed++
		p.statsMu.Unlock()
	}
}

func (p *SurfaceRelayPump) videoFormat(configData []byte) TrackFormat {
	return TrackFormat{
		Kind:       TrackVideo,
		MimeType:   p.plan.Codec.MimeType(),
		Width:      p.plan.Width,
		Height:     p.plan.Height,
		ConfigData: configData,
	}
}

func (p *SurfaceRelayPump) fail(err error) (Outcome, error) {
	p.state.Store(int32(PumpFailed))
	pe := asPipelineError(err, KindCodecConfigurationFailed)
	p.log.Error("pump failed", "kind", pe.Kind.String(), "detail", pe.Detail)
	return OutcomeFailed, pe
}

// CloseRelay tears down the thread-confined relay context. Called by
// the session teardown in its fixed order; Run must have returned.
func (p *SurfaceRelayPump) CloseRelay() error {
	if p.relay == nil {
		return nil
	}
	err := p.relay.Close()
	p.relay = nil
	if err != nil {
		return fmt.Errorf("close relay: %w", err)
	}
	return nil
}
