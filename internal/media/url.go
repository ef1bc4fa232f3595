// Package media prepares and hosts user images: content sniffing, avatar
// resizing, blurhash placeholders, uploads to the image host and delivery
// URL optimisation.
package media

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/ecocampus/ecocampus-server/internal/color"
)

const (
	uploadSegment = "/upload/"

	placeholderBG = "EBFBEE"
	placeholderFG = "166534"
)

// OptimizeURL injects quality, format and width transformations into an image
// host delivery URL. Low-data clients get lower quality and two thirds of the
// width. Other URLs pass through; an empty URL becomes a placeholder.
func OptimizeURL(raw string, width int, lowData bool) string {
	if raw == "" {
		return Placeholder(width, width*3/4, "EcoCampus", lowData)
	}
	if !strings.Contains(raw, "cloudinary.com") || !strings.Contains(raw, uploadSegment) {
		return raw
	}

	quality := "q_auto,f_auto"
	if lowData {
		quality = "q_auto:low,f_auto"
		width = int(float64(width) / 1.5)
	}
	return strings.Replace(raw, uploadSegment, fmt.Sprintf("%s%s,w_%d/", uploadSegment, quality, width), 1)
}

// Avatar returns a small, low quality variant for list rows.
func Avatar(raw string) string {
	if raw == "" || !strings.Contains(raw, uploadSegment) {
		return raw
	}
	return strings.Replace(raw, uploadSegment, uploadSegment+"w_80,q_auto:low/", 1)
}

// Placeholder builds a placehold.co URL in the campus colours. Low-data
// clients get half the dimensions.
func Placeholder(width, height int, text string, lowData bool) string {
	return placehold(width, height, placeholderBG, placeholderFG, text, lowData)
}

// InitialsAvatar is a square placeholder showing initials on a colour derived
// from seed.
func InitialsAvatar(size int, initials, seed string, lowData bool) string {
	return placehold(size, size, color.Tint(seed), "FFFFFF", initials, lowData)
}

func placehold(width, height int, bg, fg, text string, lowData bool) string {
	if width <= 0 {
		width = 400
	}
	if height <= 0 {
		height = 300
	}
	if lowData {
		width, height = width/2, height/2
	}
	size := strconv.Itoa(width) + "x" + strconv.Itoa(height)
	return "https://placehold.co/" + size + "/" + bg + "/" + fg +
		"?text=" + url.QueryEscape(text) + "&font=inter"
}
