package converter

import (
	"github.com/cockroachdb/errors"
)

const (
	MinQualityLevel = 1
	MaxQualityLevel = 5
)

// ValidateQualityLevel reports an ErrInvalidQuality error for levels outside 1..5.
func ValidateQualityLevel(level int) error {
	if level < MinQualityLevel || level > MaxQualityLevel {
		return errors.Mark(
			errors.Newf("quality level must be between %d and %d, got %d", MinQualityLevel, MaxQualityLevel, level),
			ErrInvalidQuality,
		)
	}
	return nil
}

// EncoderQuality maps a quality level to the WebP encoder quality:
// 1->10, 2->30, 3->50, 4->70, 5->90.
func EncoderQuality(level int) (int, error) {
	if err := ValidateQualityLevel(level); err != nil {
		return 0, err
	}
	return (level-1)*20 + 10, nil
}
