// Package publish uploads finished flyer artifacts to Cloudinary and hands
// back their public URLs.
package publish

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"

	"flyergen/internal/domain"
)

// Cloudinary publishes local files and returns their delivery URLs.
type Cloudinary struct {
	cld    *cloudinary.Cloudinary
	logger zerolog.Logger
}

// NewCloudinary constructs a publisher from a cloudinary:// connection URL.
func NewCloudinary(cloudinaryURL string, logger *zerolog.Logger) (*Cloudinary, error) {
	if cloudinaryURL == "" {
		return nil, errors.New("publish: cloudinary url is required")
	}
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, fmt.Errorf("publish: init cloudinary: %w", err)
	}
	log := zerolog.Nop()
	if logger != nil {
		log = *logger
	}
	return &Cloudinary{cld: cld, logger: log}, nil
}

// PublishImage uploads one flyer page and returns its secure delivery URL.
func (p *Cloudinary) PublishImage(ctx context.Context, path string) (string, error) {
	return p.upload(ctx, path, "image")
}

// PublishDocument uploads the assembled PDF. Cloudinary stores non-image
// files under the raw resource type.
func (p *Cloudinary) PublishDocument(ctx context.Context, path string) (string, error) {
	return p.upload(ctx, path, "raw")
}

func (p *Cloudinary) upload(ctx context.Context, path, resourceType string) (string, error) {
	name := filepath.Base(path)
	result, err := p.cld.Upload.Upload(ctx, path, uploader.UploadParams{ResourceType: resourceType})
	if err != nil {
		return "", fmt.Errorf("%w: upload %s: %v", domain.ErrAssembly, name, err)
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("%w: upload %s: %s", domain.ErrAssembly, name, result.Error.Message)
	}
	if result.SecureURL == "" {
		return "", fmt.Errorf("%w: upload %s: no url in response", domain.ErrAssembly, name)
	}
	p.logger.Info().Str("file", name).Str("resource_type", resourceType).Str("url", result.SecureURL).Msg("publish: uploaded")
	return result.SecureURL, nil
}
