package converter

import (
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/webp"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, gradient(w, h)))
}

func writeJPEG(t *testing.T, path string, w, h int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, jpeg.Encode(f, gradient(w, h), &jpeg.Options{Quality: 85}))
}

func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 20), uint8(y * 20), 128, 255})
		}
	}
	return img
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestEncoderQuality(t *testing.T) {
	want := map[int]int{1: 10, 2: 30, 3: 50, 4: 70, 5: 90}
	for level, q := range want {
		got, err := EncoderQuality(level)
		require.NoError(t, err)
		assert.Equal(t, q, got, "level %d", level)
	}

	for _, level := range []int{-1, 0, 6, 100} {
		_, err := EncoderQuality(level)
		assert.True(t, errors.Is(err, ErrInvalidQuality), "level %d", level)
	}
}

func TestConvertInvalidQualityTouchesNothing(t *testing.T) {
	dir := t.TempDir()
	// The source does not exist: an open attempt would surface as ErrDecode.
	src := filepath.Join(dir, "missing.png")
	dst := filepath.Join(dir, "new_missing.webp")

	for _, level := range []int{0, 6} {
		res, err := NewWebPConverter().Convert(context.Background(), src, dst, ConvertOptions{QualityLevel: level})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidQuality))
		assert.False(t, errors.Is(err, ErrDecode))
		assert.False(t, res.Success)
		assert.NotEmpty(t, res.ErrorDetail)
	}
	assert.Empty(t, listDir(t, dir))
}

func TestConvertPNG(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "photo.png")
	dst := filepath.Join(dir, "new_photo.webp")
	writePNG(t, src, 10, 6)

	res, err := NewWebPConverter().Convert(context.Background(), src, dst, ConvertOptions{QualityLevel: 3})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, dst, res.OutputPath)
	assert.Equal(t, 50, res.EncoderQuality)
	assert.Equal(t, "png", res.SourceFormat)
	assert.Positive(t, res.OutputBytes)

	require.NoError(t, VerifyFile(dst))
	// Source is left alone; deletion belongs to the runner.
	assert.FileExists(t, src)
	assert.ElementsMatch(t, []string{"photo.png", "new_photo.webp"}, listDir(t, dir))
}

func TestConvertPreservesSemiTransparentColour(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "overlay.png")
	dst := filepath.Join(dir, "new_overlay.webp")

	img := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.SetNRGBA(x, y, color.NRGBA{200, 200, 200, 128})
		}
	}
	f, err := os.Create(src)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	_, err = NewWebPConverter().Convert(context.Background(), src, dst, ConvertOptions{QualityLevel: 5})
	require.NoError(t, err)

	out, err := os.Open(dst)
	require.NoError(t, err)
	defer out.Close()
	decoded, err := webp.Decode(out)
	require.NoError(t, err)

	for _, p := range []image.Point{{0, 0}, {8, 8}, {15, 15}} {
		got := color.NRGBAModel.Convert(decoded.At(p.X, p.Y)).(color.NRGBA)
		assert.InDelta(t, 200, int(got.R), 12, "red at %v", p)
		assert.InDelta(t, 200, int(got.G), 12, "green at %v", p)
		assert.InDelta(t, 200, int(got.B), 12, "blue at %v", p)
		assert.InDelta(t, 128, int(got.A), 4, "alpha at %v", p)
	}
}

func TestConvertJPEGWithMismatchedExtension(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "actually-jpeg.png")
	dst := filepath.Join(dir, "out.webp")
	writeJPEG(t, src, 8, 8)

	res, err := NewWebPConverter().Convert(context.Background(), src, dst, ConvertOptions{QualityLevel: 1})
	require.NoError(t, err)
	assert.Equal(t, "jpeg", res.SourceFormat)
	assert.True(t, Verify(dst))
}

func TestConvertCorruptSource(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "bad.png")
	dst := filepath.Join(dir, "new_bad.webp")
	require.NoError(t, os.WriteFile(src, []byte("definitely not an image"), 0o644))

	res, err := NewWebPConverter().Convert(context.Background(), src, dst, ConvertOptions{QualityLevel: 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDecode))
	assert.Equal(t, "decode", KindOf(err))
	assert.False(t, res.Success)
	assert.Contains(t, res.ErrorDetail, "bad.png")

	// No output and no leftover temp file
	assert.Equal(t, []string{"bad.png"}, listDir(t, dir))
}

func TestConvertUnwritableDirectory(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "photo.png")
	writePNG(t, src, 4, 4)
	dst := filepath.Join(dir, "no-such-dir", "new_photo.webp")

	_, err := NewWebPConverter().Convert(context.Background(), src, dst, ConvertOptions{QualityLevel: 2})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEncode))
	assert.Equal(t, "encode", KindOf(err))
}

func TestConvertCancelled(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "photo.png")
	writePNG(t, src, 4, 4)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewWebPConverter().Convert(ctx, src, filepath.Join(dir, "out.webp"), ConvertOptions{QualityLevel: 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, []string{"photo.png"}, listDir(t, dir))
}

func TestWebPConverterMetadata(t *testing.T) {
	c := NewWebPConverter()
	assert.Equal(t, "webp", c.TargetFormat())
	assert.NotEmpty(t, c.Name())
	assert.True(t, c.CanConvert("a/b/photo.JPG"))
	assert.False(t, c.CanConvert("notes.txt"))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, "", KindOf(nil))
	assert.Equal(t, "unknown", KindOf(errors.New("boom")))
	assert.Equal(t, "verification", KindOf(VerifyFile(filepath.Join(t.TempDir(), "nope.webp"))))
}
