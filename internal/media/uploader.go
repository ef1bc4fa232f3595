package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// Upload folders on the image host.
const (
	FolderAvatars    = "ecocampus/avatars"
	FolderChallenges = "ecocampus/challenges"
)

// ErrUploadsDisabled is returned when no image host is configured.
var ErrUploadsDisabled = errors.New("image uploads are not configured")

// Uploader stores an image and returns its public delivery URL.
type Uploader interface {
	Upload(ctx context.Context, folder, publicID string, img *Prepared) (string, error)
}

// CloudinaryConfig holds the image host credentials.
type CloudinaryConfig struct {
	CloudName    string
	APIKey       string
	APISecret    string
	UploadPreset string
}

// CloudinaryUploader uploads to Cloudinary.
type CloudinaryUploader struct {
	cld    *cloudinary.Cloudinary
	preset string
	logger *slog.Logger
}

// NewCloudinaryUploader creates an uploader from credentials.
func NewCloudinaryUploader(cfg CloudinaryConfig, logger *slog.Logger) (*CloudinaryUploader, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary configuration is missing")
	}
	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("initialize cloudinary: %w", err)
	}
	return &CloudinaryUploader{cld: cld, preset: cfg.UploadPreset, logger: logger}, nil
}

// Upload sends img and returns its secure URL.
func (u *CloudinaryUploader) Upload(ctx context.Context, folder, publicID string, img *Prepared) (string, error) {
	overwrite := true
	res, err := u.cld.Upload.Upload(ctx, bytes.NewReader(img.Data), uploader.UploadParams{
		PublicID:     publicID,
		Folder:       folder,
		Overwrite:    &overwrite,
		ResourceType: "image",
		UploadPreset: u.preset,
	})
	if err != nil {
		return "", fmt.Errorf("upload to cloudinary: %w", err)
	}
	if res.Error.Message != "" {
		return "", fmt.Errorf("upload to cloudinary: %s", res.Error.Message)
	}

	u.logger.Debug("image uploaded",
		"folder", folder,
		"public_id", res.PublicID,
		"bytes", len(img.Data),
	)
	return res.SecureURL, nil
}

// DisabledUploader rejects every upload. It stands in when no credentials are configured.
type DisabledUploader struct{}

// Upload always fails with ErrUploadsDisabled.
func (DisabledUploader) Upload(context.Context, string, string, *Prepared) (string, error) {
	return "", ErrUploadsDisabled
}
