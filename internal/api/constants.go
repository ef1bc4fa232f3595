package api

import "github.com/ecocampus/ecocampus-server/internal/media"

// API limits and constants.
const (
	// MaxUploadSize caps a photo request body: the largest accepted image plus
	// room for multipart framing.
	MaxUploadSize = media.MaxUploadBytes + 1<<20
)
