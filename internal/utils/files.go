package utils

import (
	"context"
	"os"
	"strings"
	"time"
)

// TempPrefix marks in-progress outputs written by the converter.
const TempPrefix = ".img2webp-"

// IsTempFile reports whether name looks like an in-progress output.
func IsTempFile(name string) bool {
	return strings.HasPrefix(name, TempPrefix)
}

// WaitFileStable waits until two consecutive size checks separated by delay
// agree, up to five cycles. Returns early with ctx.Err() when cancelled.
func WaitFileStable(ctx context.Context, path string, delay time.Duration) error {
	var lastSize int64 = -1
	for i := 0; i < 5; i++ {
		fi, err := os.Stat(path)
		if err != nil {
			return err
		}
		sz := fi.Size()
		if lastSize == sz {
			return nil
		}
		lastSize = sz
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil
}
