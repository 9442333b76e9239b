// Package asset turns caller-supplied image references (data URIs, remote
// URLs, local paths) into normalized PNG files in the scratch directory.
package asset

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	// Product photos in the wild are frequently served as webp.
	_ "golang.org/x/image/webp"

	"flyergen/internal/domain"
)

const fetchUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// Options controls how the Resolver is configured.
type Options struct {
	// Dir is the directory resolved files are written to.
	Dir string
	// HTTPClient is used for remote fetches; a default with a 15s timeout
	// is created when nil.
	HTTPClient *http.Client
	// AllowedHosts restricts remote fetches when non-empty.
	AllowedHosts []string
	Logger       *zerolog.Logger
}

// Resolver caches resolved images on disk, keyed by identifier. The cache key
// is the identifier, not a content hash: two different images sharing an
// identifier collide, so identifiers must be caller-unique within a campaign.
type Resolver struct {
	dir        string
	client     *http.Client
	allowHosts map[string]struct{}
	index      *gocache.Cache
	group      singleflight.Group
	logger     zerolog.Logger
}

// NewResolver creates a Resolver rooted at opts.Dir, creating it if needed.
func NewResolver(opts Options) (*Resolver, error) {
	if strings.TrimSpace(opts.Dir) == "" {
		return nil, fmt.Errorf("asset: dir is required")
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("asset: ensure dir: %w", err)
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	var allow map[string]struct{}
	if len(opts.AllowedHosts) > 0 {
		allow = make(map[string]struct{}, len(opts.AllowedHosts))
		for _, host := range opts.AllowedHosts {
			allow[strings.ToLower(strings.TrimSpace(host))] = struct{}{}
		}
	}

	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	return &Resolver{
		dir:        opts.Dir,
		client:     client,
		allowHosts: allow,
		index:      gocache.New(time.Hour, 10*time.Minute),
		logger:     logger,
	}, nil
}

// Resolve returns the local file path for the given identifier, fetching and
// normalizing the source image on a cache miss. Resolution is idempotent by
// identifier: an existing file short-circuits the fetch. Concurrent calls for
// one identifier are collapsed into a single fetch.
func (r *Resolver) Resolve(ctx context.Context, identifier, source string) (string, error) {
	if strings.TrimSpace(identifier) == "" {
		return "", fmt.Errorf("%w: identifier cannot be empty", domain.ErrResolution)
	}
	if strings.TrimSpace(source) == "" {
		return "", fmt.Errorf("%w: image source for %q is required", domain.ErrResolution, identifier)
	}

	path := filepath.Join(r.dir, SafeName(identifier)+".png")

	if _, ok := r.index.Get(path); ok {
		return path, nil
	}
	if _, err := os.Stat(path); err == nil {
		r.index.SetDefault(path, struct{}{})
		return path, nil
	}

	_, err, _ := r.group.Do(path, func() (any, error) {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		data, err := r.fetch(ctx, source)
		if err != nil {
			return nil, err
		}
		img, err := imaging.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: source for %q is not a valid image: %v", domain.ErrResolution, identifier, err)
		}
		if err := imaging.Save(img, path); err != nil {
			return nil, fmt.Errorf("%w: save %q: %v", domain.ErrResolution, identifier, err)
		}
		r.logger.Debug().Str("identifier", identifier).Str("path", path).Msg("asset: resolved image")
		return path, nil
	})
	if err != nil {
		return "", err
	}

	r.index.SetDefault(path, struct{}{})
	return path, nil
}

func (r *Resolver) fetch(ctx context.Context, source string) ([]byte, error) {
	switch {
	case strings.HasPrefix(source, "data:image/"):
		return decodeDataURI(source)
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		return r.fetchRemote(ctx, source)
	default:
		data, err := os.ReadFile(source)
		if err != nil {
			return nil, fmt.Errorf("%w: local file %q: %v", domain.ErrResolution, source, err)
		}
		return data, nil
	}
}

func (r *Resolver) fetchRemote(ctx context.Context, rawURL string) ([]byte, error) {
	rawURL = RewriteDriveURL(rawURL)

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: parse url %q: %v", domain.ErrResolution, rawURL, err)
	}
	if r.allowHosts != nil {
		if _, ok := r.allowHosts[strings.ToLower(parsed.Hostname())]; !ok {
			return nil, fmt.Errorf("%w: host %q is not on the fetch allowlist", domain.ErrResolution, parsed.Hostname())
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", domain.ErrResolution, err)
	}
	req.Header.Set("User-Agent", fetchUserAgent)
	req.Header.Set("Accept", "image/webp,image/apng,image/svg+xml,image/*,*/*;q=0.8")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %q: %v", domain.ErrResolution, rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: fetch %q: status %d", domain.ErrResolution, rawURL, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read %q: %v", domain.ErrResolution, rawURL, err)
	}
	return data, nil
}

func decodeDataURI(source string) ([]byte, error) {
	_, payload, ok := strings.Cut(source, ",")
	if !ok {
		return nil, fmt.Errorf("%w: malformed data URI", domain.ErrResolution)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: decode base64 image: %v", domain.ErrResolution, err)
	}
	return data, nil
}

// SafeName derives the deterministic cache filename for an identifier:
// lower-cased, spaces replaced, path separators stripped.
func SafeName(identifier string) string {
	name := strings.ToLower(strings.TrimSpace(identifier))
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	return name
}

// RewriteDriveURL converts a Google Drive share link to its direct-download
// form. Other URLs pass through unchanged.
func RewriteDriveURL(rawURL string) string {
	if !strings.Contains(rawURL, "drive.google.com") || strings.Contains(rawURL, "uc?id=") {
		return rawURL
	}
	_, after, ok := strings.Cut(rawURL, "/d/")
	if !ok {
		return rawURL
	}
	id, _, _ := strings.Cut(after, "/")
	if id == "" {
		return rawURL
	}
	return "https://drive.google.com/uc?id=" + id + "&export=download"
}
