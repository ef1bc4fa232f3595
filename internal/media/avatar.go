package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // Register GIF decoder
	"image/jpeg"
	_ "image/png" // Register PNG decoder
	"io"

	"github.com/bbrks/go-blurhash"
	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	// MaxUploadBytes caps any image accepted from a browser.
	MaxUploadBytes = 8 << 20

	avatarSize   = 512
	photoSize    = 1600
	blurHashSize = 64
	jpegQuality  = 85
)

// ErrUnsupportedImage is returned for uploads that are not a decodable image.
var ErrUnsupportedImage = errors.New("unsupported image type")

var allowedTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// Prepared is an image ready for upload.
type Prepared struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
	BlurHash    string
}

// PrepareAvatar decodes an uploaded image, downsizes it to fit a 512px square
// and re-encodes it as JPEG with a blurhash placeholder.
func PrepareAvatar(r io.Reader) (*Prepared, error) {
	return prepare(r, avatarSize)
}

// PreparePhoto does the same for challenge proof photos with a larger bound.
func PreparePhoto(r io.Reader) (*Prepared, error) {
	return prepare(r, photoSize)
}

func prepare(r io.Reader, bound int) (*Prepared, error) {
	raw, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(raw) > MaxUploadBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", MaxUploadBytes)
	}

	mt := mimetype.Detect(raw)
	if !mimetype.EqualsAny(mt.String(), allowedTypes...) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedImage, mt.String())
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}

	scaled := fit(img, bound, draw.CatmullRom)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}

	hash, err := blurhash.Encode(4, 3, fit(scaled, blurHashSize, draw.ApproxBiLinear))
	if err != nil {
		return nil, fmt.Errorf("encode blurhash: %w", err)
	}

	b := scaled.Bounds()
	return &Prepared{
		Data:        buf.Bytes(),
		ContentType: "image/jpeg",
		Width:       b.Dx(),
		Height:      b.Dy(),
		BlurHash:    hash,
	}, nil
}

// fit scales img down so neither side exceeds bound, keeping the aspect ratio.
func fit(img image.Image, bound int, scaler draw.Scaler) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= bound && h <= bound {
		return img
	}

	var dw, dh int
	if w >= h {
		dw, dh = bound, max(1, h*bound/w)
	} else {
		dw, dh = max(1, w*bound/h), bound
	}

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	scaler.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}
