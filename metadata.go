package compress

import (
	"os"
	"path/filepath"
	"strings"
)

// SourceMetadata describes a source media file as probed from its
// container and the filesystem. Probing is read-only: calling it twice
// on an unmodified file yields identical results.
type SourceMetadata struct {
	Width           int
	Height          int
	DurationSeconds float64
	SizeBytes       int64
	BitrateBps      int
	Extension       string
}

// GetMetadata probes a source file.
func (c *Compressor) GetMetadata(sourceURI string) (*SourceMetadata, error) {
	path := uriToPath(sourceURI)

	fi, err := os.Stat(path)
	if err != nil {
		return nil, wrapError(KindSourceUnreadable, err, "stat %s", path)
	}

	dmx, err := c.backend.OpenDemuxer(sourceURI)
	if err != nil {
		return nil, wrapError(KindSourceUnreadable, err, "open %s", path)
	}
	defer dmx.Close()

	router, err := NewTrackRouter(dmx)
	if err != nil {
		return nil, err
	}
	video := router.Video()

	return &SourceMetadata{
		Width:           video.Width,
		Height:          video.Height,
		DurationSeconds: float64(video.DurationMicros) / 1e6,
		SizeBytes:       fi.Size(),
		BitrateBps:      video.BitrateBps,
		Extension:       strings.TrimPrefix(filepath.Ext(path), "."),
	}, nil
}

// uriToPath maps file URIs to filesystem paths; bare paths pass
// through unchanged.
func uriToPath(uri string) string {
	return strings.TrimPrefix(uri, "file://")
}
