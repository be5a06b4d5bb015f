package compress

import (
	"errors"
	"io"
	"time"

	"github.com/hashicorp/go-hclog"
)

// AudioStrategy selects how source audio reaches the output container.
type AudioStrategy int

const (
	// AudioPassthrough copies compressed samples with unchanged
	// timestamps and flags. Used when the source audio codec is
	// acceptable in the target container.
	AudioPassthrough AudioStrategy = iota

	// AudioReencode decodes to PCM and re-encodes to the fixed target
	// profile. Used when codec renegotiation is required.
	AudioReencode
)

func (s AudioStrategy) String() string {
	switch s {
	case AudioReencode:
		return "reencode"
	default:
		return "passthrough"
	}
}

// AudioWriter pumps the source audio track into the muxer sequencer,
// concurrently with and independent of the video relay. Both pumps
// must reach end-of-stream before the container finalizes.
type AudioWriter struct {
	session  *Session
	router   *TrackRouter
	track    TrackDescriptor
	seq      *MuxerSequencer
	strategy AudioStrategy
	decoder  AudioDecoder
	encoder  AudioEncoder
	log      hclog.Logger
}

// AudioWriterConfig configures an audio writer. Decoder and Encoder
// are required only for AudioReencode.
type AudioWriterConfig struct {
	Session   *Session
	Router    *TrackRouter
	Track     TrackDescriptor
	Sequencer *MuxerSequencer
	Strategy  AudioStrategy
	Decoder   AudioDecoder
	Encoder   AudioEncoder
	Logger    hclog.Logger
}

// NewAudioWriter creates an audio writer for the selected strategy.
func NewAudioWriter(cfg AudioWriterConfig) (*AudioWriter, error) {
	if cfg.Session == nil || cfg.Router == nil || cfg.Sequencer == nil {
		return nil, errors.New("session, router and sequencer are required")
	}
	if cfg.Strategy == AudioReencode && (cfg.Decoder == nil || cfg.Encoder == nil) {
		return nil, errors.New("reencode strategy requires audio decoder and encoder")
	}
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}
	return &AudioWriter{
		session:  cfg.Session,
		router:   cfg.Router,
		track:    cfg.Track,
		seq:      cfg.Sequencer,
		strategy: cfg.Strategy,
		decoder:  cfg.Decoder,
		encoder:  cfg.Encoder,
		log:      cfg.Logger.Named("audio-pump"),
	}, nil
}

// Run drives the audio track to end-of-stream. Returns errCancelled on
// cooperative cancellation and a *Error on failure.
func (w *AudioWriter) Run() error {
	if w.strategy == AudioReencode {
		return w.runReencode()
	}
	return w.runPassthrough()
}

// runPassthrough copies samples source → output verbatim. The format
// is known from probing alone, so it is registered up front.
func (w *AudioWriter) runPassthrough() error {
	if err := w.seq.SetAudioFormat(TrackFormat{
		Kind:       TrackAudio,
		MimeType:   w.track.MimeType,
		SampleRate: w.track.SampleRate,
		Channels:   w.track.Channels,
	}); err != nil {
		return err
	}

	for {
		if w.session.Cancelled() {
			return errCancelled
		}
		sample, err := w.router.Next(w.track.ID)
		if errors.Is(err, io.EOF) {
			w.log.Debug("audio track drained")
			return nil
		}
		if err != nil {
			return err
		}
		if err := w.seq.WriteAudio(sample); err != nil {
			return err
		}
	}
}

// runReencode decodes to PCM and encodes to the fixed target profile.
func (w *AudioWriter) runReencode() error {
	if err := w.seq.SetAudioFormat(w.encoder.Format()); err != nil {
		return err
	}

	feeding := true
	decoderDone := false
	for {
		if w.session.Cancelled() {
			return errCancelled
		}
		moved := false

		if feeding {
			sample, err := w.router.Next(w.track.ID)
			if errors.Is(err, io.EOF) {
				if err := w.decoder.Push(&CompressedSample{EndOfStream: true}); err != nil {
					return wrapError(KindCodecConfigurationFailed, err, "audio end-of-stream")
				}
				feeding = false
			} else if err != nil {
				return err
			} else if err := w.decoder.Push(sample); err != nil {
				return wrapError(KindCodecConfigurationFailed, err, "audio decode push")
			} else {
				moved = true
			}
		}

		for {
			chunk, err := w.decoder.Samples()
			if errors.Is(err, io.EOF) {
				if !decoderDone {
					decoderDone = true
					if err := w.encoder.SignalEndOfInput(); err != nil {
						return wrapError(KindCodecConfigurationFailed, err, "audio encoder end of input")
					}
				}
				break
			}
			if err != nil {
				return wrapError(KindCodecConfigurationFailed, err, "audio decode")
			}
			if chunk == nil {
				break
			}
			if err := w.encoder.Push(chunk); err != nil {
				return wrapError(KindCodecConfigurationFailed, err, "audio encode push")
			}
			moved = true
		}

		done, wrote, err := w.drainEncoder()
		if err != nil {
			return err
		}
		if done {
			w.log.Debug("audio re-encode drained")
			return nil
		}
		if !moved && !wrote {
			time.Sleep(time.Millisecond)
		}
	}
}

func (w *AudioWriter) drainEncoder() (done, wrote bool, err error) {
	for {
		sample, err := w.encoder.Sample()
		if errors.Is(err, io.EOF) {
			return true, wrote, nil
		}
		if err != nil {
			return false, wrote, wrapError(KindCodecConfigurationFailed, err, "audio encode")
		}
		if sample == nil {
			return false, wrote, nil
		}
		if sample.Config {
			// Profile is fixed; parameter sets are already part of the
			// registered format.
			continue
		}
		if sample.EndOfStream && len(sample.Data) == 0 {
			continue
		}
		if err := w.seq.WriteAudio(sample); err != nil {
			return false, wrote, err
		}
		wrote = true
	}
}
