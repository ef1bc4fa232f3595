package color

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTint_Stable(t *testing.T) {
	a := Tint("user-1")
	assert.Equal(t, a, Tint("user-1"))
	assert.Len(t, a, 6)
	assert.NotEqual(t, a, Tint("user-2"))
}

func TestTint_EmptySeedUsesCampusGreen(t *testing.T) {
	assert.Equal(t, "166534", Tint(""))
}

func TestHSLToRGB(t *testing.T) {
	r, g, b := hslToRGB(0, 1, 0.5)
	assert.Equal(t, [3]uint8{255, 0, 0}, [3]uint8{r, g, b})

	r, g, b = hslToRGB(120, 1, 0.25)
	assert.Equal(t, [3]uint8{0, 128, 0}, [3]uint8{r, g, b})

	r, g, b = hslToRGB(200, 0, 0.5)
	assert.Equal(t, [3]uint8{127, 127, 127}, [3]uint8{r, g, b})
}
