package compress

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	multierror "github.com/hashicorp/go-multierror"
)

// Options configures one compression session.
type Options struct {
	MaxDimension int         // Longest output edge, default 1080
	BitrateBps   int         // Explicit bitrate, 0 = auto
	Codec        VideoCodec  // Default h264
	Speed        SpeedPreset // Default ultrafast

	// Encoder collaborator knobs, forwarded untouched.
	RateControl RateControlMode
	Priority    EncoderPriority

	// MinimumSourceMB skips compression entirely for sources at or
	// below this size (0 disables the check).
	MinimumSourceMB float64

	// ProgressDivider throttles progress events; 0 reports every
	// percent change.
	ProgressDivider int

	// FrameWaitTimeout bounds the wait for a newly decoded frame
	// before the session fails with RelayStall. Default 50ms.
	FrameWaitTimeout time.Duration

	AudioStrategy AudioStrategy

	// OutputPath for the compressed file. Empty = a temp file named
	// after the session id.
	OutputPath string

	OnProgress ProgressFunc
}

// DefaultOptions returns the default compression options.
func DefaultOptions() Options {
	return Options{
		MaxDimension:     1080,
		Codec:            VideoCodecH264,
		Speed:            SpeedUltrafast,
		FrameWaitTimeout: defaultFrameWait,
	}
}

// Result is the terminal result of a compression session.
type Result struct {
	SessionID string
	URI       string // Output path, or the source URI when skipped
	Outcome   Outcome
	Skipped   bool // Source was at or below MinimumSourceMB
	Plan      CompressionPlan
}

// Compressor runs hardware compression sessions against a platform
// backend. Safe for concurrent use; each session is independent.
type Compressor struct {
	backend  Backend
	registry *SessionRegistry
	log      hclog.Logger
}

// NewCompressor creates a compressor. A nil logger discards logs.
func NewCompressor(backend Backend, logger hclog.Logger) *Compressor {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Compressor{
		backend:  backend,
		registry: NewSessionRegistry(),
		log:      logger.Named("compress"),
	}
}

// Cancel requests cancellation of an active session. No-op for unknown
// or already-finished sessions.
func (c *Compressor) Cancel(sessionID string) bool {
	return c.registry.Cancel(sessionID)
}

// ActiveSessions returns the number of sessions currently running.
func (c *Compressor) ActiveSessions() int {
	return c.registry.Active()
}

// Compress transcodes sourceURI into a smaller hardware-encoded file.
//
// On success the result carries the output path and OutcomeCompleted.
// Cancellation (via Cancel or ctx) yields OutcomeCancelled with a nil
// error and no output file. Failures return a *Error with a stable
// kind; partial output is deleted and every native handle torn down
// in a fixed order regardless of how the session ends.
func (c *Compressor) Compress(ctx context.Context, sourceURI string, opts Options) (*Result, error) {
	if opts.MaxDimension == 0 {
		opts.MaxDimension = 1080
	}
	if opts.FrameWaitTimeout <= 0 {
		opts.FrameWaitTimeout = defaultFrameWait
	}

	path := uriToPath(sourceURI)
	fi, err := os.Stat(path)
	if err != nil {
		return nil, wrapError(KindSourceUnreadable, err, "stat %s", path)
	}

	if opts.MinimumSourceMB > 0 {
		sizeMB := float64(fi.Size()) / (1 << 20)
		if sizeMB <= opts.MinimumSourceMB {
			c.log.Debug("source below minimum size, returning unchanged",
				"source", sourceURI, "size_mb", sizeMB, "minimum_mb", opts.MinimumSourceMB)
			return &Result{URI: sourceURI, Outcome: OutcomeCompleted, Skipped: true}, nil
		}
	}

	if !c.backend.HardwareAvailable(opts.Codec) {
		return nil, newError(KindCodecConfigurationFailed,
			"no hardware path for %s", opts.Codec)
	}

	dmx, err := c.backend.OpenDemuxer(sourceURI)
	if err != nil {
		return nil, wrapError(KindSourceUnreadable, err, "open %s", path)
	}
	router, err := NewTrackRouter(dmx)
	if err != nil {
		dmx.Close()
		return nil, err
	}

	videoTrack := router.Video()
	plan := PlanCompression(PlanRequest{
		SourceWidth:        videoTrack.Width,
		SourceHeight:       videoTrack.Height,
		RotationDegrees:    videoTrack.RotationDegrees,
		MaxDimension:       opts.MaxDimension,
		ExplicitBitrateBps: opts.BitrateBps,
		SourceBitrateBps:   videoTrack.BitrateBps,
		Codec:              opts.Codec,
		Speed:              opts.Speed,
	})

	session := c.registry.Open()
	defer c.registry.Remove(session.ID())
	log := c.log.With("session", session.ID())
	log.Info("session start", "source", sourceURI,
		"width", plan.Width, "height", plan.Height, "bitrate", plan.BitrateBps)

	// Bridge context cancellation onto the session flag.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			session.Cancel()
		case <-stop:
		}
	}()

	outputPath := opts.OutputPath
	if outputPath == "" {
		outputPath = filepath.Join(os.TempDir(), session.ID()+".mp4")
	}

	decoder, err := c.backend.NewSampleDecoder(videoTrack)
	if err != nil {
		router.Close()
		return nil, wrapError(KindCodecConfigurationFailed, err, "create decoder")
	}
	encoder, err := c.backend.NewSurfaceEncoder(EncoderConfig{
		Codec:       plan.Codec,
		Width:       plan.Width,
		Height:      plan.Height,
		BitrateBps:  plan.BitrateBps,
		Speed:       plan.Speed,
		RateControl: opts.RateControl,
		Priority:    opts.Priority,
	})
	if err != nil {
		decoder.Close()
		router.Close()
		return nil, wrapError(KindCodecConfigurationFailed, err, "create encoder")
	}
	relay, err := c.backend.NewSurfaceRelay()
	if err != nil {
		encoder.Close()
		decoder.Close()
		router.Close()
		return nil, wrapError(KindCodecConfigurationFailed, err, "create surface relay")
	}
	writer, err := c.backend.NewContainerWriter(outputPath)
	if err != nil {
		relay.Close()
		encoder.Close()
		decoder.Close()
		router.Close()
		return nil, wrapError(KindMuxerWriteFailed, err, "create container writer")
	}

	audioTrack, hasAudio := router.Audio()
	seq := NewMuxerSequencer(writer, hasAudio)
	progress := NewProgressReporter(session.ID(), videoTrack.DurationMicros,
		opts.ProgressDivider, opts.OnProgress)

	pump, err := NewSurfaceRelayPump(PumpConfig{
		Session:   session,
		Router:    router,
		Decoder:   decoder,
		Encoder:   encoder,
		Relay:     relay,
		Sequencer: seq,
		Progress:  progress,
		Plan:      plan,
		FrameWait: opts.FrameWaitTimeout,
		Logger:    log,
	})
	if err != nil {
		seq.Close()
		relay.Close()
		encoder.Close()
		decoder.Close()
		router.Close()
		return nil, wrapError(KindCodecConfigurationFailed, err, "create pump")
	}

	// Fixed teardown order: decoder, graphics context, encoder, muxer,
	// demuxer. Runs on every exit path from here on.
	teardown := func() {
		var errs *multierror.Error
		errs = multierror.Append(errs, decoder.Close())
		errs = multierror.Append(errs, pump.CloseRelay())
		errs = multierror.Append(errs, encoder.Close())
		errs = multierror.Append(errs, seq.Close())
		errs = multierror.Append(errs, router.Close())
		if err := errs.ErrorOrNil(); err != nil {
			log.Warn("teardown", "error", err)
		}
	}
	discard := func() {
		if err := os.Remove(outputPath); err != nil && !os.IsNotExist(err) {
			log.Warn("discard partial output", "path", outputPath, "error", err)
		}
	}

	var audioWriter *AudioWriter
	if hasAudio {
		var adec AudioDecoder
		var aenc AudioEncoder
		if opts.AudioStrategy == AudioReencode {
			adec, err = c.backend.NewAudioDecoder(audioTrack)
			if err == nil {
				aenc, err = c.backend.NewAudioEncoder(DefaultAudioEncoderConfig())
				if err != nil {
					adec.Close()
				}
			}
			if err != nil {
				teardown()
				discard()
				return nil, wrapError(KindCodecConfigurationFailed, err, "create audio codec")
			}
		}
		audioWriter, err = NewAudioWriter(AudioWriterConfig{
			Session:   session,
			Router:    router,
			Track:     audioTrack,
			Sequencer: seq,
			Strategy:  opts.AudioStrategy,
			Decoder:   adec,
			Encoder:   aenc,
			Logger:    log,
		})
		if err != nil {
			teardown()
			discard()
			return nil, wrapError(KindCodecConfigurationFailed, err, "create audio writer")
		}
		if adec != nil {
			defer adec.Close()
		}
		if aenc != nil {
			defer aenc.Close()
		}
	}

	// The two pumps run independently; the WaitGroup is the join
	// barrier before finalize.
	var (
		wg           sync.WaitGroup
		videoOutcome Outcome
		videoErr     error
		audioErr     error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		videoOutcome, videoErr = pump.Run()
		if videoErr != nil {
			session.Cancel() // Unwind the audio pump
		}
	}()
	if audioWriter != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			audioErr = audioWriter.Run()
			if audioErr != nil && !errors.Is(audioErr, errCancelled) {
				session.Cancel() // Unwind the video pump
			}
		}()
	}
	wg.Wait()

	if videoErr != nil {
		teardown()
		discard()
		return nil, videoErr
	}
	if audioErr != nil && !errors.Is(audioErr, errCancelled) {
		teardown()
		discard()
		return nil, asPipelineError(audioErr, KindCodecConfigurationFailed)
	}
	if videoOutcome == OutcomeCancelled || errors.Is(audioErr, errCancelled) {
		teardown()
		discard()
		log.Info("session cancelled")
		return &Result{SessionID: session.ID(), Outcome: OutcomeCancelled, Plan: plan}, nil
	}

	if err := seq.Finalize(); err != nil {
		teardown()
		discard()
		return nil, asPipelineError(err, KindMuxerWriteFailed)
	}
	teardown()
	progress.Finish()
	log.Info("session completed", "output", outputPath)

	return &Result{
		SessionID: session.ID(),
		URI:       outputPath,
		Outcome:   OutcomeCompleted,
		Plan:      plan,
	}, nil
}
