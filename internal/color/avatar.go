// Package color derives stable avatar colours for students without a photo.
package color

import (
	"fmt"
	"hash/fnv"
)

// Tint returns a hex colour (no leading '#') for seed. The same seed always
// yields the same colour; lightness is low enough for white initials.
func Tint(seed string) string {
	if seed == "" {
		return "166534"
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(seed))
	hue := float64(h.Sum32() % 360)

	r, g, b := hslToRGB(hue, 0.45, 0.38)
	return fmt.Sprintf("%02X%02X%02X", r, g, b)
}

// hslToRGB converts h in degrees and s, l in [0,1] to 8-bit channels.
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	if s == 0 {
		v := uint8(l * 255)
		return v, v, v
	}
	h /= 360
	q := l + s - l*s
	if l < 0.5 {
		q = l * (1 + s)
	}
	p := 2*l - q
	return channel(p, q, h+1.0/3), channel(p, q, h), channel(p, q, h-1.0/3)
}

func channel(p, q, t float64) uint8 {
	switch {
	case t < 0:
		t++
	case t > 1:
		t--
	}
	var v float64
	switch {
	case t < 1.0/6:
		v = p + (q-p)*6*t
	case t < 0.5:
		v = q
	case t < 2.0/3:
		v = p + (q-p)*(2.0/3-t)*6
	default:
		v = p
	}
	return uint8(v*255 + 0.5)
}
