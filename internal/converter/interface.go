package converter

import (
	"context"
	"time"
)

// ConvertOptions holds configuration for a conversion operation
type ConvertOptions struct {
	QualityLevel int  // Quality level (1-5), mapped by EncoderQuality
	AutoOrient   bool // Apply the EXIF Orientation tag before encoding
}

// Result describes the outcome of a single conversion
type Result struct {
	Success        bool          `json:"success"`
	OutputPath     string        `json:"output_path"`
	ErrorDetail    string        `json:"error_detail,omitempty"`
	EncoderQuality int           `json:"encoder_quality"`
	SourceFormat   string        `json:"source_format"` // format sniffed by the decoder
	Orientation    int           `json:"orientation"`   // EXIF orientation applied, 0 when none
	InputBytes     int64         `json:"input_bytes"`
	OutputBytes    int64         `json:"output_bytes"`
	Duration       time.Duration `json:"duration"`
}

// Converter defines the interface for format converters
type Converter interface {
	// Name returns the unique name of this converter
	Name() string

	// CanConvert checks if this converter can handle the given source file
	CanConvert(srcPath string) bool

	// TargetFormat returns the file extension of the output format (without dot)
	TargetFormat() string

	// Convert decodes srcPath and writes the re-encoded image to dstPath.
	// It must not leave a partially written dstPath behind on failure.
	Convert(ctx context.Context, srcPath string, dstPath string, opts ConvertOptions) (Result, error)
}
