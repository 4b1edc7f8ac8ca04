package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"

	"eventhub/internal/domain"
)

// CloudinaryConfig holds credentials and the destination folder for uploads.
type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// uploadAPI is the subset of the Cloudinary uploader the store uses.
type uploadAPI interface {
	Upload(ctx context.Context, file interface{}, uploadParams uploader.UploadParams) (*uploader.UploadResult, error)
	Destroy(ctx context.Context, params uploader.DestroyParams) (*uploader.DestroyResult, error)
}

type cloudinaryStore struct {
	api    uploadAPI
	folder string
}

// NewImageStore returns a Cloudinary-backed ImageStore, or a store that refuses
// uploads when no cloud name is configured.
func NewImageStore(cfg CloudinaryConfig) (domain.ImageStore, error) {
	if cfg.CloudName == "" {
		return disabledStore{}, nil
	}
	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("cloudinary config: %w", err)
	}
	return &cloudinaryStore{api: &cld.Upload, folder: cfg.Folder}, nil
}

func (s *cloudinaryStore) Upload(ctx context.Context, r io.Reader, filename string) (string, error) {
	res, err := s.api.Upload(ctx, r, uploader.UploadParams{Folder: s.folder})
	if err != nil {
		return "", fmt.Errorf("upload image %s: %w", filename, err)
	}
	if res.SecureURL == "" {
		return "", fmt.Errorf("upload image %s: empty url in response", filename)
	}
	return res.SecureURL, nil
}

func (s *cloudinaryStore) Delete(ctx context.Context, imageURL string) error {
	publicID, err := publicIDFromURL(imageURL)
	if err != nil {
		return err
	}
	if _, err := s.api.Destroy(ctx, uploader.DestroyParams{PublicID: publicID}); err != nil {
		return fmt.Errorf("delete image %s: %w", publicID, err)
	}
	return nil
}

// publicIDFromURL extracts the public id from a delivery URL such as
// https://res.cloudinary.com/demo/image/upload/v1234567890/events/abc123.jpg,
// which yields events/abc123.
func publicIDFromURL(imageURL string) (string, error) {
	u, err := url.Parse(imageURL)
	if err != nil {
		return "", fmt.Errorf("parse image url: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	idx := -1
	for i, p := range parts {
		if p == "upload" {
			idx = i
			break
		}
	}
	if idx < 0 || idx == len(parts)-1 {
		return "", fmt.Errorf("not a cloudinary upload url: %s", imageURL)
	}
	rest := parts[idx+1:]
	if len(rest) > 1 && isVersion(rest[0]) {
		rest = rest[1:]
	}
	joined := path.Join(rest...)
	return strings.TrimSuffix(joined, path.Ext(joined)), nil
}

func isVersion(s string) bool {
	if len(s) < 2 || s[0] != 'v' {
		return false
	}
	for _, c := range s[1:] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

type disabledStore struct{}

func (disabledStore) Upload(context.Context, io.Reader, string) (string, error) {
	return "", fmt.Errorf("%w: image storage is not configured", domain.ErrInvalidInput)
}

func (disabledStore) Delete(context.Context, string) error { return nil }
