package converter

import (
	"github.com/cockroachdb/errors"
)

// Error kinds. Failures returned by this package are marked with one of
// these, so errors.Is classifies them while Error() keeps the cause.
var (
	ErrInvalidQuality = errors.New("invalid quality level")
	ErrDecode         = errors.New("decode error")
	ErrEncode         = errors.New("encode error")
	ErrVerification   = errors.New("verification failure")
)

// KindOf returns a stable name for the kind of err, for logs and history.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidQuality):
		return "invalid_quality"
	case errors.Is(err, ErrDecode):
		return "decode"
	case errors.Is(err, ErrEncode):
		return "encode"
	case errors.Is(err, ErrVerification):
		return "verification"
	default:
		return "unknown"
	}
}

func decodeErr(err error, format string, args ...interface{}) error {
	return errors.Mark(errors.Wrapf(err, format, args...), ErrDecode)
}

func encodeErr(err error, format string, args ...interface{}) error {
	return errors.Mark(errors.Wrapf(err, format, args...), ErrEncode)
}

func verifyErr(err error, format string, args ...interface{}) error {
	if err == nil {
		return errors.Mark(errors.Newf(format, args...), ErrVerification)
	}
	return errors.Mark(errors.Wrapf(err, format, args...), ErrVerification)
}
