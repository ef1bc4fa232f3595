package media

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hosted = "https://res.cloudinary.com/demo/image/upload/v1/ecocampus/avatars/usr-1.jpg"

func TestOptimizeURL(t *testing.T) {
	assert.Equal(t,
		"https://res.cloudinary.com/demo/image/upload/q_auto,f_auto,w_400/v1/ecocampus/avatars/usr-1.jpg",
		OptimizeURL(hosted, 400, false))
	assert.Equal(t,
		"https://res.cloudinary.com/demo/image/upload/q_auto:low,f_auto,w_266/v1/ecocampus/avatars/usr-1.jpg",
		OptimizeURL(hosted, 400, true))

	other := "https://example.com/poster.png"
	assert.Equal(t, other, OptimizeURL(other, 400, false))
	assert.True(t, strings.HasPrefix(OptimizeURL("", 400, false), "https://placehold.co/400x300/"))
}

func TestAvatar(t *testing.T) {
	assert.Equal(t,
		"https://res.cloudinary.com/demo/image/upload/w_80,q_auto:low/v1/ecocampus/avatars/usr-1.jpg",
		Avatar(hosted))
	assert.Equal(t, "", Avatar(""))
}

func TestPlaceholder(t *testing.T) {
	assert.Equal(t,
		"https://placehold.co/400x300/EBFBEE/166534?text=Eco+Store&font=inter",
		Placeholder(400, 300, "Eco Store", false))
	assert.Equal(t,
		"https://placehold.co/200x150/EBFBEE/166534?text=AM&font=inter",
		Placeholder(400, 300, "AM", true))
}

func TestInitialsAvatar(t *testing.T) {
	got := InitialsAvatar(80, "AM", "usr-1", false)
	assert.Equal(t, got, InitialsAvatar(80, "AM", "usr-1", false))
	assert.True(t, strings.HasPrefix(got, "https://placehold.co/80x80/"), got)
	assert.True(t, strings.HasSuffix(got, "/FFFFFF?text=AM&font=inter"), got)
	assert.NotEqual(t, got, InitialsAvatar(80, "AM", "usr-2", false))
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: 120, B: uint8(y % 256), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestPrepareAvatar_DownscalesAndHashes(t *testing.T) {
	p, err := PrepareAvatar(bytes.NewReader(pngBytes(t, 1024, 768)))
	require.NoError(t, err)

	assert.Equal(t, "image/jpeg", p.ContentType)
	assert.Equal(t, 512, p.Width)
	assert.Equal(t, 384, p.Height)
	assert.NotEmpty(t, p.BlurHash)

	_, format, err := image.DecodeConfig(bytes.NewReader(p.Data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
}

func TestPrepareAvatar_KeepsSmallImages(t *testing.T) {
	p, err := PrepareAvatar(bytes.NewReader(pngBytes(t, 100, 200)))
	require.NoError(t, err)
	assert.Equal(t, 100, p.Width)
	assert.Equal(t, 200, p.Height)
}

func TestPrepareAvatar_RejectsNonImages(t *testing.T) {
	_, err := PrepareAvatar(strings.NewReader("definitely not a picture"))
	assert.ErrorIs(t, err, ErrUnsupportedImage)
}

func TestDisabledUploader(t *testing.T) {
	_, err := DisabledUploader{}.Upload(t.Context(), FolderAvatars, "usr-1", &Prepared{})
	assert.ErrorIs(t, err, ErrUploadsDisabled)
}
