package converter

import (
	"bufio"
	"os"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/image/webp"
)

const webpMIME = "image/webp"

// Verify reports whether path holds a non-empty, fully decodable WebP image.
// It never modifies or removes the file.
func Verify(path string) bool {
	return VerifyFile(path) == nil
}

// VerifyFile is Verify with the reason for rejection, marked ErrVerification.
func VerifyFile(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return verifyErr(err, "cannot stat %s", path)
	}
	if !fi.Mode().IsRegular() {
		return verifyErr(nil, "%s is not a regular file", path)
	}
	if fi.Size() == 0 {
		return verifyErr(nil, "%s is empty", path)
	}

	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return verifyErr(err, "cannot sniff %s", path)
	}
	if !mt.Is(webpMIME) {
		return verifyErr(nil, "%s is %s, not %s", path, mt.String(), webpMIME)
	}

	f, err := os.Open(path)
	if err != nil {
		return verifyErr(err, "cannot open %s", path)
	}
	defer f.Close()

	cfg, err := webp.DecodeConfig(bufio.NewReader(f))
	if err != nil {
		return verifyErr(err, "invalid webp header in %s", path)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return verifyErr(nil, "%s has invalid dimensions %dx%d", path, cfg.Width, cfg.Height)
	}

	if _, err := f.Seek(0, 0); err != nil {
		return verifyErr(err, "cannot rewind %s", path)
	}
	img, err := webp.Decode(bufio.NewReader(f))
	if err != nil {
		return verifyErr(err, "cannot decode %s", path)
	}
	if b := img.Bounds(); b.Dx() != cfg.Width || b.Dy() != cfg.Height {
		return verifyErr(nil, "%s decoded to %dx%d, header says %dx%d", path, b.Dx(), b.Dy(), cfg.Width, cfg.Height)
	}
	return nil
}
