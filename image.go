package compress

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

// ImageFormat selects the output encoding for image recompression.
type ImageFormat int

const (
	ImageJPEG ImageFormat = iota
	ImagePNG
	ImageWebP
)

func (f ImageFormat) String() string {
	switch f {
	case ImagePNG:
		return "png"
	case ImageWebP:
		return "webp"
	default:
		return "jpeg"
	}
}

func (f ImageFormat) extension() string {
	switch f {
	case ImagePNG:
		return ".png"
	case ImageWebP:
		return ".webp"
	default:
		return ".jpg"
	}
}

// ImageOptions configures CompressImage.
type ImageOptions struct {
	MaxDimension int         // Longest output edge, default 1280; never upscales
	Quality      int         // 1-100, default 80 (JPEG/WebP only)
	Format       ImageFormat // Default JPEG
	OutputPath   string      // Empty = "<source>_compressed.<ext>"
}

// DefaultImageOptions returns the default image recompression options.
func DefaultImageOptions() ImageOptions {
	return ImageOptions{
		MaxDimension: 1280,
		Quality:      80,
		Format:       ImageJPEG,
	}
}

// CompressImage recompresses a still image: decodes it with EXIF
// orientation applied, fits it inside MaxDimension without upscaling,
// and re-encodes it at the configured quality. Returns the output
// path.
func CompressImage(sourceURI string, opts ImageOptions) (string, error) {
	if opts.MaxDimension == 0 {
		opts.MaxDimension = 1280
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = 80
	}

	path := uriToPath(sourceURI)
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return "", wrapError(KindSourceUnreadable, err, "open image %s", path)
	}

	bounds := img.Bounds()
	if maxInt(bounds.Dx(), bounds.Dy()) > opts.MaxDimension {
		img = imaging.Fit(img, opts.MaxDimension, opts.MaxDimension, imaging.Lanczos)
	}

	out := opts.OutputPath
	if out == "" {
		base := strings.TrimSuffix(path, filepath.Ext(path))
		out = base + "_compressed" + opts.Format.extension()
	}

	switch opts.Format {
	case ImageWebP:
		f, err := os.Create(out)
		if err != nil {
			return "", fmt.Errorf("create %s: %w", out, err)
		}
		if err := webp.Encode(f, img, &webp.Options{Quality: float32(opts.Quality)}); err != nil {
			f.Close()
			os.Remove(out)
			return "", fmt.Errorf("encode webp: %w", err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("close %s: %w", out, err)
		}
	case ImagePNG:
		if err := imaging.Save(img, out); err != nil {
			return "", fmt.Errorf("encode png: %w", err)
		}
	default:
		if err := imaging.Save(img, out, imaging.JPEGQuality(opts.Quality)); err != nil {
			return "", fmt.Errorf("encode jpeg: %w", err)
		}
	}
	return out, nil
}
