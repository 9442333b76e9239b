// Package gemini wraps the Gemini image model behind the two calls the
// flyer pipeline needs: rendering a page and synthesizing a product photo.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"flyergen/internal/domain"
)

const productPhotoPrompt = "High-quality supermarket product photo of %s, " +
	"fresh and realistic, transparent background, professional studio lighting, " +
	"sharp details, vibrant colors, centered composition, 4k resolution"

// Image is one inline image exchanged with the model.
type Image struct {
	Data []byte
	MIME string
}

// Options controls how the client is configured.
type Options struct {
	APIKey string
	Model  string
	// RequestsPerMinute paces outbound calls across all campaigns.
	RequestsPerMinute int
	// MaxRetries caps retries after a rate-limit signal. The upstream
	// behavior this replaces retried indefinitely; the cap bounds how long
	// a single page render can block.
	MaxRetries    uint64
	RetryInterval time.Duration
	Logger        *zerolog.Logger
}

// Client invokes the Gemini image model.
type Client struct {
	genai         *genai.Client
	model         string
	limiter       *rate.Limiter
	maxRetries    uint64
	retryInterval time.Duration
	logger        zerolog.Logger
}

// NewClient constructs a Gemini client. The API key is held by the injected
// client handle; no package-level state is involved.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("gemini: api key is required")
	}

	inner, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	model := opts.Model
	if model == "" {
		model = "gemini-2.5-flash-image-preview"
	}
	rpm := opts.RequestsPerMinute
	if rpm <= 0 {
		rpm = 10
	}
	maxRetries := opts.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}
	retryInterval := opts.RetryInterval
	if retryInterval <= 0 {
		retryInterval = 2 * time.Second
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	return &Client{
		genai:         inner,
		model:         model,
		limiter:       rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1),
		maxRetries:    maxRetries,
		retryInterval: retryInterval,
		logger:        logger,
	}, nil
}

// RenderPage sends one prompt plus the ordered reference images in a single
// generation call and returns every inline image the model produced, in
// response order. A response without image parts yields an empty slice, not
// an error: callers must tolerate a page contributing nothing.
func (c *Client) RenderPage(ctx context.Context, promptText string, refs []Image) ([]Image, error) {
	parts := make([]*genai.Part, 0, len(refs)+1)
	parts = append(parts, genai.NewPartFromText(promptText))
	for _, ref := range refs {
		mime := ref.MIME
		if mime == "" {
			mime = "image/png"
		}
		parts = append(parts, genai.NewPartFromBytes(ref.Data, mime))
	}
	contents := []*genai.Content{{Parts: parts}}

	resp, err := c.generateWithRetry(ctx, contents)
	if err != nil {
		return nil, err
	}
	return c.extractImages(resp), nil
}

// SynthesizeProductPhoto generates a studio photo for a product that was
// submitted without an image source.
func (c *Client) SynthesizeProductPhoto(ctx context.Context, productName string) (Image, error) {
	contents := []*genai.Content{{Parts: []*genai.Part{
		genai.NewPartFromText(fmt.Sprintf(productPhotoPrompt, productName)),
	}}}

	resp, err := c.generateWithRetry(ctx, contents)
	if err != nil {
		return Image{}, err
	}
	images := c.extractImages(resp)
	if len(images) == 0 {
		return Image{}, fmt.Errorf("%w: no image returned for product %q", domain.ErrGeneration, productName)
	}
	return images[0], nil
}

// generateWithRetry performs one GenerateContent call, retrying only on a
// rate-limit signal with exponential delay up to the configured cap. Any
// other failure propagates immediately.
func (c *Client) generateWithRetry(ctx context.Context, contents []*genai.Content) (*genai.GenerateContentResponse, error) {
	var resp *genai.GenerateContentResponse

	operation := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		result, err := c.genai.Models.GenerateContent(ctx, c.model, contents, nil)
		if err != nil {
			if isRateLimited(err) {
				c.logger.Warn().Err(err).Str("model", c.model).Msg("gemini: rate limited, backing off")
				return fmt.Errorf("%w: %v", domain.ErrRateLimited, err)
			}
			return backoff.Permanent(fmt.Errorf("%w: %v", domain.ErrGeneration, err))
		}
		resp = result
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryInterval
	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(bo, c.maxRetries), ctx)); err != nil {
		return nil, err
	}
	return resp, nil
}

// extractImages pulls every inline image part out of the response, in order.
// Text parts are logged and dropped.
func (c *Client) extractImages(resp *genai.GenerateContentResponse) []Image {
	var images []Image
	if resp == nil {
		return images
	}
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				images = append(images, Image{Data: part.InlineData.Data, MIME: part.InlineData.MIMEType})
				continue
			}
			if part.Text != "" {
				c.logger.Debug().Str("model", c.model).Str("text", truncate(part.Text, 200)).Msg("gemini: text part ignored")
			}
		}
	}
	return images
}

func isRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, domain.ErrRateLimited) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "resource_exhausted") ||
		strings.Contains(msg, "quota")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
