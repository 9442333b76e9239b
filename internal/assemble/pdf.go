// Package assemble merges the generated flyer pages into one PDF document.
package assemble

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/go-pdf/fpdf"
	"github.com/rs/zerolog"

	"flyergen/internal/domain"
)

// PDF builds a multi-page document where each page matches the pixel
// dimensions of its source image.
type PDF struct {
	quality int
	logger  zerolog.Logger
}

// NewPDF constructs the assembler. A nil logger disables logging.
func NewPDF(logger *zerolog.Logger) *PDF {
	log := zerolog.Nop()
	if logger != nil {
		log = *logger
	}
	return &PDF{quality: 92, logger: log}
}

// Assemble writes the images at imagePaths into a PDF at outPath, one page
// per image in the given order. An empty input produces no document and
// returns an empty path with no error.
func (a *PDF) Assemble(ctx context.Context, imagePaths []string, outPath string) (string, error) {
	if len(imagePaths) == 0 {
		return "", nil
	}

	var doc *fpdf.Fpdf
	for i, path := range imagePaths {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("%w: %v", domain.ErrAssembly, err)
		}

		img, err := imaging.Open(path)
		if err != nil {
			return "", fmt.Errorf("%w: open page %s: %v", domain.ErrAssembly, filepath.Base(path), err)
		}

		var buf bytes.Buffer
		if err := imaging.Encode(&buf, flattenToWhite(img), imaging.JPEG, imaging.JPEGQuality(a.quality)); err != nil {
			return "", fmt.Errorf("%w: encode page %s: %v", domain.ErrAssembly, filepath.Base(path), err)
		}

		bounds := img.Bounds()
		size := fpdf.SizeType{Wd: float64(bounds.Dx()), Ht: float64(bounds.Dy())}
		if doc == nil {
			doc = fpdf.NewCustom(&fpdf.InitType{UnitStr: "pt", Size: size})
			doc.SetMargins(0, 0, 0)
			doc.SetAutoPageBreak(false, 0)
		}
		// Size is passed in portrait terms; landscape pages keep their
		// exact pixel dimensions rather than being swapped.
		doc.AddPageFormat("P", size)

		name := fmt.Sprintf("page_%d", i)
		opts := fpdf.ImageOptions{ImageType: "JPG"}
		doc.RegisterImageOptionsReader(name, opts, &buf)
		doc.ImageOptions(name, 0, 0, size.Wd, size.Ht, false, opts, 0, "")
	}

	if err := doc.OutputFileAndClose(outPath); err != nil {
		return "", fmt.Errorf("%w: write document: %v", domain.ErrAssembly, err)
	}
	a.logger.Info().Int("pages", len(imagePaths)).Str("path", outPath).Msg("assemble: document written")
	return outPath, nil
}

// flattenToWhite composites the image over an opaque white canvas so that
// transparent regions survive the JPEG re-encode.
func flattenToWhite(img image.Image) *image.NRGBA {
	bounds := img.Bounds()
	canvas := imaging.New(bounds.Dx(), bounds.Dy(), color.White)
	return imaging.Overlay(canvas, img, image.Pt(0, 0), 1.0)
}
