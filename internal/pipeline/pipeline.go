// Package pipeline orchestrates a full campaign run: resolve assets, render
// pages in order, assemble the document and publish the results.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"flyergen/internal/domain"
	"flyergen/internal/gemini"
	"flyergen/internal/prompt"
	"flyergen/internal/storage"
)

// Resolver turns an asset identifier and source into a local file path.
type Resolver interface {
	Resolve(ctx context.Context, identifier, source string) (string, error)
}

// Renderer produces flyer page images and standalone product photos.
type Renderer interface {
	RenderPage(ctx context.Context, promptText string, refs []gemini.Image) ([]gemini.Image, error)
	SynthesizeProductPhoto(ctx context.Context, productName string) (gemini.Image, error)
}

// Assembler merges page images into one document file.
type Assembler interface {
	Assemble(ctx context.Context, imagePaths []string, outPath string) (string, error)
}

// Publisher pushes local files to the CDN and returns their public URLs.
type Publisher interface {
	PublishImage(ctx context.Context, path string) (string, error)
	PublishDocument(ctx context.Context, path string) (string, error)
}

// Options carries the collaborators a Service needs.
type Options struct {
	Logos     Resolver
	Products  Resolver
	Renderer  Renderer
	Assembler Assembler
	Publisher Publisher
	Scratch   *storage.Scratch
	Logger    *zerolog.Logger
}

// Service runs campaigns end to end.
type Service struct {
	logos     Resolver
	products  Resolver
	renderer  Renderer
	assembler Assembler
	publisher Publisher
	scratch   *storage.Scratch
	logger    zerolog.Logger
}

// NewService wires a campaign pipeline from its collaborators.
func NewService(opts Options) *Service {
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	return &Service{
		logos:     opts.Logos,
		products:  opts.Products,
		renderer:  opts.Renderer,
		assembler: opts.Assembler,
		publisher: opts.Publisher,
		scratch:   opts.Scratch,
		logger:    log,
	}
}

// Result is the outcome of a successful run.
type Result struct {
	FlyerCount  int
	DocumentURL string
	ImageURLs   []string
}

// continuityState threads visual continuity through the page fold: the
// first image produced by the first page becomes the style reference every
// later page receives.
type continuityState struct {
	reference *gemini.Image
	pagePaths []string
}

// Run executes one campaign. Pages render strictly in order; a page that
// yields no images is tolerated, and a campaign where every page yields
// nothing succeeds with a zero count and no document.
func (s *Service) Run(ctx context.Context, c domain.Campaign) (*Result, error) {
	c.Normalize()
	if err := c.Validate(); err != nil {
		return nil, err
	}

	logo, err := s.logoImage(ctx, c)
	if err != nil {
		return nil, err
	}

	campaignKey := path.Join("generated_campaigns", c.Slug())
	pages := c.Pages()
	s.logger.Info().
		Str("supermarket", c.SupermarketName).
		Int("products", len(c.Products)).
		Int("pages", len(pages)).
		Msg("pipeline: campaign started")

	state, err := s.renderPages(ctx, c, pages, logo, campaignKey)
	if err != nil {
		return nil, err
	}

	if len(state.pagePaths) == 0 {
		s.logger.Warn().Str("supermarket", c.SupermarketName).Msg("pipeline: no flyers produced")
		s.cleanup(campaignKey)
		return &Result{}, nil
	}

	docPath, err := s.assembler.Assemble(ctx, state.pagePaths, s.documentPath(campaignKey))
	if err != nil {
		return nil, err
	}

	imageURLs := make([]string, 0, len(state.pagePaths))
	for _, p := range state.pagePaths {
		url, err := s.publisher.PublishImage(ctx, p)
		if err != nil {
			return nil, err
		}
		imageURLs = append(imageURLs, url)
	}
	docURL, err := s.publisher.PublishDocument(ctx, docPath)
	if err != nil {
		return nil, err
	}

	s.cleanup(campaignKey)
	s.logger.Info().
		Str("supermarket", c.SupermarketName).
		Int("flyers", len(state.pagePaths)).
		Msg("pipeline: campaign finished")
	return &Result{
		FlyerCount:  len(state.pagePaths),
		DocumentURL: docURL,
		ImageURLs:   imageURLs,
	}, nil
}

// renderPages folds over the pages in order, saving every produced image
// under the campaign's scratch directory.
func (s *Service) renderPages(ctx context.Context, c domain.Campaign, pages [][]domain.Product, logo gemini.Image, campaignKey string) (continuityState, error) {
	var state continuityState
	for i, page := range pages {
		refs, err := s.pageReferences(ctx, page, i == 0, logo, state.reference)
		if err != nil {
			return state, err
		}

		role := prompt.RoleContinuation
		if i == 0 {
			role = prompt.RoleFirst
		}
		images, err := s.renderer.RenderPage(ctx, prompt.Build(c, page, role), refs)
		if err != nil {
			return state, err
		}
		if len(images) == 0 {
			s.logger.Warn().Int("page", i).Msg("pipeline: page yielded no images")
			continue
		}

		for j, img := range images {
			saved, err := s.scratch.Write(path.Join(campaignKey, fmt.Sprintf("flyer_page_%d_%d.png", i, j)), img.Data)
			if err != nil {
				return state, fmt.Errorf("%w: save page %d image %d: %v", domain.ErrAssembly, i, j, err)
			}
			if state.reference == nil && i == 0 && j == 0 {
				ref := img
				state.reference = &ref
			}
			state.pagePaths = append(state.pagePaths, saved)
		}
	}
	return state, nil
}

// pageReferences gathers the reference images for one page in order: the
// product images first, then the logo on the opening page or the style
// reference on later pages. The logo is never resent after the first page,
// and a later page renders without a style reference when the first page
// produced nothing.
func (s *Service) pageReferences(ctx context.Context, page []domain.Product, first bool, logo gemini.Image, reference *gemini.Image) ([]gemini.Image, error) {
	refs := make([]gemini.Image, 0, len(page)+1)
	for _, p := range page {
		img, err := s.productImage(ctx, p)
		if err != nil {
			return nil, err
		}
		refs = append(refs, img)
	}
	if first {
		refs = append(refs, logo)
	} else if reference != nil {
		refs = append(refs, *reference)
	}
	return refs, nil
}

// productImage loads the resolved product image, synthesizing a studio
// photo when the product came without an image source.
func (s *Service) productImage(ctx context.Context, p domain.Product) (gemini.Image, error) {
	if strings.TrimSpace(p.ImageURL) == "" {
		return s.renderer.SynthesizeProductPhoto(ctx, p.Name)
	}
	local, err := s.products.Resolve(ctx, p.Name, p.ImageURL)
	if err != nil {
		return gemini.Image{}, err
	}
	return readImage(local)
}

func (s *Service) logoImage(ctx context.Context, c domain.Campaign) (gemini.Image, error) {
	local, err := s.logos.Resolve(ctx, c.SupermarketName, c.SupermarketLogoURL)
	if err != nil {
		return gemini.Image{}, err
	}
	return readImage(local)
}

func (s *Service) documentPath(campaignKey string) string {
	full, err := s.scratch.Dir(campaignKey)
	if err != nil {
		// Falls through to Assemble, which will surface the write failure.
		return filepath.Join(s.scratch.Root(), campaignKey, uuid.NewString()+"_flyer.pdf")
	}
	return filepath.Join(full, uuid.NewString()+"_flyer.pdf")
}

// cleanup removes the campaign's scratch directory. Failures are logged and
// never surfaced: the artifacts are already published.
func (s *Service) cleanup(campaignKey string) {
	if err := s.scratch.Remove(campaignKey); err != nil {
		s.logger.Warn().Err(err).Str("dir", campaignKey).Msg("pipeline: scratch cleanup failed")
	}
}

func readImage(localPath string) (gemini.Image, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return gemini.Image{}, fmt.Errorf("%w: read %s: %v", domain.ErrResolution, localPath, err)
	}
	return gemini.Image{Data: data, MIME: "image/png"}, nil
}
