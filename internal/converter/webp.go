package converter

import (
	"bufio"
	"context"
	"image"
	"os"
	"path/filepath"
	"time"

	"github.com/ah-its-andy/img2webp/internal/utils"
	"github.com/chai2010/webp"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog/log"
)

// WebPConverter converts any registered raster format to lossy WebP
type WebPConverter struct{}

// NewWebPConverter creates a new WebP converter
func NewWebPConverter() *WebPConverter {
	return &WebPConverter{}
}

func (c *WebPConverter) Name() string {
	return "img2webp"
}

func (c *WebPConverter) CanConvert(srcPath string) bool {
	return Supported(srcPath)
}

func (c *WebPConverter) TargetFormat() string {
	return "webp"
}

func (c *WebPConverter) Convert(ctx context.Context, srcPath string, dstPath string, opts ConvertOptions) (Result, error) {
	start := time.Now()
	result := Result{OutputPath: dstPath}
	fail := func(err error) (Result, error) {
		result.ErrorDetail = err.Error()
		result.Duration = time.Since(start)
		return result, err
	}

	// Quality is checked before the source is even opened
	quality, err := EncoderQuality(opts.QualityLevel)
	if err != nil {
		return fail(err)
	}
	result.EncoderQuality = quality

	if err := ctx.Err(); err != nil {
		return fail(errors.Wrap(err, "conversion cancelled"))
	}

	img, format, orientation, size, err := decodeSource(srcPath, opts.AutoOrient)
	if err != nil {
		return fail(err)
	}
	result.SourceFormat = format
	result.Orientation = orientation
	result.InputBytes = size

	written, err := writeWebP(dstPath, img, quality)
	if err != nil {
		return fail(err)
	}
	result.OutputBytes = written
	result.Success = true
	result.Duration = time.Since(start)

	log.Debug().
		Str("path", srcPath).
		Str("output", dstPath).
		Str("format", format).
		Int("quality", quality).
		Int("orientation", orientation).
		Int64("input_bytes", size).
		Int64("output_bytes", written).
		Dur("duration", result.Duration).
		Msg("Converted image")

	return result, nil
}

// decodeSource opens and decodes srcPath, sniffing the format from content.
func decodeSource(srcPath string, autoOrient bool) (*image.NRGBA, string, int, int64, error) {
	f, err := os.Open(srcPath)
	if err != nil {
		return nil, "", 0, 0, decodeErr(err, "failed to open %s", srcPath)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, "", 0, 0, decodeErr(err, "failed to stat %s", srcPath)
	}

	img, format, err := image.Decode(bufio.NewReader(f))
	if err != nil {
		return nil, "", 0, 0, decodeErr(err, "failed to decode %s", srcPath)
	}
	if b := img.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, "", 0, 0, decodeErr(errors.Newf("empty bounds %v", b), "failed to decode %s", srcPath)
	}

	if expected, ok := FormatFor(srcPath); ok && expected != format {
		log.Debug().
			Str("path", srcPath).
			Str("extension_format", expected).
			Str("content_format", format).
			Msg("Extension does not match content")
	}

	orientation := 0
	if autoOrient {
		if o, err := readOrientation(f); err == nil && o > 1 {
			orientation = o
		}
	}

	return normalize(img, orientation), format, orientation, fi.Size(), nil
}

// writeWebP encodes img into a temporary file next to dstPath and renames it
// into place, so dstPath is either absent or complete.
func writeWebP(dstPath string, img *image.NRGBA, quality int) (int64, error) {
	dir := filepath.Dir(dstPath)
	tmp, err := os.CreateTemp(dir, utils.TempPrefix+"*.tmp")
	if err != nil {
		return 0, encodeErr(err, "failed to create temp file in %s", dir)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	w := bufio.NewWriter(tmp)
	if err := webp.Encode(w, straightRGBA(img), &webp.Options{Lossless: false, Quality: float32(quality)}); err != nil {
		return 0, encodeErr(err, "failed to encode %s", dstPath)
	}
	if err := w.Flush(); err != nil {
		return 0, encodeErr(err, "failed to write %s", tmpPath)
	}
	// Sync to ensure data is written to disk before the rename
	if err := tmp.Sync(); err != nil {
		return 0, encodeErr(err, "failed to sync %s", tmpPath)
	}
	fi, err := tmp.Stat()
	if err != nil {
		return 0, encodeErr(err, "failed to stat %s", tmpPath)
	}
	if err := tmp.Close(); err != nil {
		return 0, encodeErr(err, "failed to close %s", tmpPath)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return 0, encodeErr(err, "failed to chmod %s", tmpPath)
	}
	if err := os.Rename(tmpPath, dstPath); err != nil {
		return 0, encodeErr(err, "failed to move output to %s", dstPath)
	}
	committed = true
	return fi.Size(), nil
}

// straightRGBA views n as an *image.RGBA without copying. The encoder hands
// RGBA bytes to libwebp as-is and libwebp expects unpremultiplied alpha, so
// the bytes must stay straight.
func straightRGBA(n *image.NRGBA) *image.RGBA {
	return &image.RGBA{Pix: n.Pix, Stride: n.Stride, Rect: n.Rect}
}
