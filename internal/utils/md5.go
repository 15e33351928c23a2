package utils

import (
	"bufio"
	"crypto/md5"
	"encoding/hex"
	"io"
	"os"

	"github.com/cockroachdb/errors"
)

const defaultHashChunk = 8 << 10

// MD5File returns the hex MD5 of path, reading it chunkSize bytes at a time.
func MD5File(path string, chunkSize int64) (string, error) {
	if chunkSize <= 0 {
		chunkSize = defaultHashChunk
	}
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrapf(err, "failed to open %s for hashing", path)
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, bufio.NewReaderSize(f, int(chunkSize))); err != nil {
		return "", errors.Wrapf(err, "failed to hash %s", path)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
