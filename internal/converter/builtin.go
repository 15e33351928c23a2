package converter

import (
	// Decoders register themselves with image.RegisterFormat.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// builtinExtensions maps every allow-listed source extension to the name
// image.Decode reports for that format.
var builtinExtensions = map[string]string{
	"jpg":  "jpeg",
	"jpeg": "jpeg",
	"png":  "png",
	"gif":  "gif",
	"bmp":  "bmp",
	"tiff": "tiff",
	"webp": "webp",
}

// RegisterBuiltinDecoders registers the allow-listed source extensions.
// It is safe to call more than once.
func RegisterBuiltinDecoders() {
	for ext, format := range builtinExtensions {
		Register(ext, format)
	}
}

func init() {
	RegisterBuiltinDecoders()
}
