package transcode

// Package transcode converts raw image bytes into the relay's output codec.
// Pure and stateless: decode whatever the bytes contain, re-encode as JPEG
// at the requested quality.

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"

	// Register the webp decoder; imaging handles jpeg/png/gif/tiff/bmp itself.
	_ "golang.org/x/image/webp"
)

// OutputExtension is the file extension of every transcoded image.
const OutputExtension = "jpg"

// DecodeError reports input bytes that are not a decodable image. This is an
// expected failure (corrupt downloads, unsupported formats like heic).
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("decode image: %v", e.Err) }
func (e *DecodeError) Unwrap() error { return e.Err }

// EncodeError reports an output-codec failure. Unexpected; not retried.
type EncodeError struct {
	Err error
}

func (e *EncodeError) Error() string { return fmt.Sprintf("encode image: %v", e.Err) }
func (e *EncodeError) Unwrap() error { return e.Err }

// Transcoder converts a single image. The interface exists so the pipeline
// can be tested without pulling in real codecs.
type Transcoder interface {
	Transcode(raw []byte, quality int) ([]byte, error)
}

// JPEGTranscoder re-encodes images as JPEG through the imaging library.
type JPEGTranscoder struct{}

// NewJPEG returns the standard JPEG transcoder.
func NewJPEG() *JPEGTranscoder { return &JPEGTranscoder{} }

// Transcode decodes raw and re-encodes it as JPEG. The quality value is
// handed to the encoder unmodified; tier validation is the caller's job.
func (t *JPEGTranscoder) Transcode(raw []byte, quality int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, &DecodeError{Err: err}
	}

	var out bytes.Buffer
	if err := imaging.Encode(&out, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, &EncodeError{Err: err}
	}
	return out.Bytes(), nil
}
