package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"flyergen/internal/domain"
	"flyergen/internal/gemini"
	"flyergen/internal/storage"
)

type fakeResolver struct {
	dir    string
	calls  []string
	failOn string
}

func (f *fakeResolver) Resolve(_ context.Context, identifier, source string) (string, error) {
	f.calls = append(f.calls, identifier)
	if f.failOn != "" && identifier == f.failOn {
		return "", fmt.Errorf("%w: %s", domain.ErrResolution, identifier)
	}
	path := filepath.Join(f.dir, identifier+".png")
	if err := os.WriteFile(path, []byte("img:"+identifier), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

type renderCall struct {
	prompt string
	refs   []gemini.Image
}

type fakeRenderer struct {
	calls []renderCall
	// imagesPerPage[i] is how many images the i-th call yields.
	imagesPerPage []int
	err           error
	synthesized   []string
}

func (f *fakeRenderer) RenderPage(_ context.Context, promptText string, refs []gemini.Image) ([]gemini.Image, error) {
	call := len(f.calls)
	f.calls = append(f.calls, renderCall{prompt: promptText, refs: refs})
	if f.err != nil {
		return nil, f.err
	}
	n := 1
	if call < len(f.imagesPerPage) {
		n = f.imagesPerPage[call]
	}
	images := make([]gemini.Image, 0, n)
	for j := 0; j < n; j++ {
		images = append(images, gemini.Image{Data: []byte(fmt.Sprintf("page%d-img%d", call, j)), MIME: "image/png"})
	}
	return images, nil
}

func (f *fakeRenderer) SynthesizeProductPhoto(_ context.Context, productName string) (gemini.Image, error) {
	f.synthesized = append(f.synthesized, productName)
	return gemini.Image{Data: []byte("synth:" + productName), MIME: "image/png"}, nil
}

type fakeAssembler struct {
	paths []string
}

func (f *fakeAssembler) Assemble(_ context.Context, imagePaths []string, outPath string) (string, error) {
	f.paths = append([]string(nil), imagePaths...)
	if len(imagePaths) == 0 {
		return "", nil
	}
	if err := os.WriteFile(outPath, []byte("%PDF-fake"), 0o644); err != nil {
		return "", err
	}
	return outPath, nil
}

type fakePublisher struct {
	images []string
	docs   []string
}

func (f *fakePublisher) PublishImage(_ context.Context, path string) (string, error) {
	f.images = append(f.images, path)
	return "https://cdn.example/" + filepath.Base(path), nil
}

func (f *fakePublisher) PublishDocument(_ context.Context, path string) (string, error) {
	f.docs = append(f.docs, path)
	return "https://cdn.example/" + filepath.Base(path), nil
}

type fixture struct {
	service   *Service
	logos     *fakeResolver
	products  *fakeResolver
	renderer  *fakeRenderer
	assembler *fakeAssembler
	publisher *fakePublisher
	scratch   *storage.Scratch
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	scratch, err := storage.NewScratch(t.TempDir())
	if err != nil {
		t.Fatalf("NewScratch: %v", err)
	}
	f := &fixture{
		logos:     &fakeResolver{dir: t.TempDir()},
		products:  &fakeResolver{dir: t.TempDir()},
		renderer:  &fakeRenderer{},
		assembler: &fakeAssembler{},
		publisher: &fakePublisher{},
		scratch:   scratch,
	}
	f.service = NewService(Options{
		Logos:     f.logos,
		Products:  f.products,
		Renderer:  f.renderer,
		Assembler: f.assembler,
		Publisher: f.publisher,
		Scratch:   scratch,
	})
	return f
}

func testCampaign(n int) domain.Campaign {
	products := make([]domain.Product, 0, n)
	for i := 0; i < n; i++ {
		products = append(products, domain.Product{
			Name:     fmt.Sprintf("product%d", i),
			OldPrice: 10,
			NewPrice: 8,
			Currency: "$",
			ImageURL: fmt.Sprintf("https://example.com/p%d.png", i),
		})
	}
	return domain.Campaign{
		SupermarketName:    "Interfood",
		WhyThisCampaign:    "Eid Sale",
		SupermarketAddress: "Main St 1",
		CampaignStartDate:  "2025-09-10",
		CampaignEndDate:    "2025-09-25",
		SupermarketLogoURL: "https://example.com/logo.png",
		Products:           products,
		ProductsPerPage:    4,
	}
}

func refData(refs []gemini.Image) []string {
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		out = append(out, string(r.Data))
	}
	return out
}

func TestRunSinglePage(t *testing.T) {
	f := newFixture(t)

	res, err := f.service.Run(context.Background(), testCampaign(2))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(f.renderer.calls) != 1 {
		t.Fatalf("renderer called %d times, want 1", len(f.renderer.calls))
	}
	refs := refData(f.renderer.calls[0].refs)
	if len(refs) != 3 || refs[2] != "img:Interfood" {
		t.Fatalf("first page refs should be two products then the logo, got %v", refs)
	}
	if !strings.Contains(f.renderer.calls[0].prompt, "attached logo") {
		t.Fatalf("first page should use the opening prompt:\n%s", f.renderer.calls[0].prompt)
	}

	if res.FlyerCount != 1 || len(res.ImageURLs) != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.DocumentURL == "" || !strings.HasSuffix(res.DocumentURL, "_flyer.pdf") {
		t.Fatalf("unexpected document url %q", res.DocumentURL)
	}
	if len(f.publisher.docs) != 1 {
		t.Fatalf("document published %d times, want 1", len(f.publisher.docs))
	}

	// Scratch files are gone once everything is published.
	if _, err := os.Stat(filepath.Join(f.scratch.Root(), "generated_campaigns", "interfood")); !os.IsNotExist(err) {
		t.Fatalf("campaign scratch dir should be removed: %v", err)
	}
}

func TestRunThreadsStyleReference(t *testing.T) {
	f := newFixture(t)

	res, err := f.service.Run(context.Background(), testCampaign(9))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(f.renderer.calls) != 3 {
		t.Fatalf("renderer called %d times, want 3", len(f.renderer.calls))
	}

	first := refData(f.renderer.calls[0].refs)
	if first[len(first)-1] != "img:Interfood" {
		t.Fatalf("opening page must end with the logo, got %v", first)
	}
	for i := 1; i < 3; i++ {
		refs := refData(f.renderer.calls[i].refs)
		if refs[len(refs)-1] != "page0-img0" {
			t.Fatalf("page %d must end with the first page's output, got %v", i, refs)
		}
		for _, r := range refs {
			if r == "img:Interfood" {
				t.Fatalf("logo resent on page %d: %v", i, refs)
			}
		}
		if !strings.Contains(f.renderer.calls[i].prompt, "reference flyer") {
			t.Fatalf("page %d should use the continuation prompt", i)
		}
	}

	if res.FlyerCount != 3 {
		t.Fatalf("flyer count = %d, want 3", res.FlyerCount)
	}
	// Accumulation preserves page order.
	for i, p := range f.assembler.paths {
		if filepath.Base(p) != fmt.Sprintf("flyer_page_%d_0.png", i) {
			t.Fatalf("assembled pages out of order: %v", f.assembler.paths)
		}
	}
}

func TestRunFirstPageYieldsNothing(t *testing.T) {
	f := newFixture(t)
	f.renderer.imagesPerPage = []int{0, 1}

	res, err := f.service.Run(context.Background(), testCampaign(5))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// The second page had no style reference to lean on.
	refs := refData(f.renderer.calls[1].refs)
	if len(refs) != 1 || refs[0] != "img:product4" {
		t.Fatalf("second page should carry only its product image, got %v", refs)
	}
	if res.FlyerCount != 1 {
		t.Fatalf("flyer count = %d, want 1", res.FlyerCount)
	}
}

func TestRunAllPagesEmpty(t *testing.T) {
	f := newFixture(t)
	f.renderer.imagesPerPage = []int{0, 0}

	res, err := f.service.Run(context.Background(), testCampaign(5))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.FlyerCount != 0 || res.DocumentURL != "" || len(res.ImageURLs) != 0 {
		t.Fatalf("empty campaign should succeed with nothing published: %+v", res)
	}
	if len(f.assembler.paths) != 0 || len(f.publisher.images) != 0 || len(f.publisher.docs) != 0 {
		t.Fatal("nothing should be assembled or published")
	}
}

func TestRunSynthesizesMissingProductImages(t *testing.T) {
	f := newFixture(t)
	c := testCampaign(2)
	c.Products[1].ImageURL = ""

	if _, err := f.service.Run(context.Background(), c); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(f.renderer.synthesized) != 1 || f.renderer.synthesized[0] != "product1" {
		t.Fatalf("expected one synthesized photo for product1, got %v", f.renderer.synthesized)
	}
	if len(f.products.calls) != 1 || f.products.calls[0] != "product0" {
		t.Fatalf("only product0 should hit the resolver, got %v", f.products.calls)
	}
}

func TestRunValidationFailure(t *testing.T) {
	f := newFixture(t)
	c := testCampaign(2)
	c.SupermarketName = ""

	_, err := f.service.Run(context.Background(), c)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(f.logos.calls) != 0 {
		t.Fatal("no asset work should happen for an invalid campaign")
	}
}

func TestRunRendererFailure(t *testing.T) {
	f := newFixture(t)
	f.renderer.err = fmt.Errorf("%w: model unavailable", domain.ErrGeneration)

	_, err := f.service.Run(context.Background(), testCampaign(2))
	if !errors.Is(err, domain.ErrGeneration) {
		t.Fatalf("expected generation error, got %v", err)
	}
	if len(f.publisher.images) != 0 || len(f.publisher.docs) != 0 {
		t.Fatal("nothing should be published after a render failure")
	}
}

func TestRunLogoResolutionFailure(t *testing.T) {
	f := newFixture(t)
	f.logos.failOn = "Interfood"

	_, err := f.service.Run(context.Background(), testCampaign(2))
	if !errors.Is(err, domain.ErrResolution) {
		t.Fatalf("expected resolution error, got %v", err)
	}
	if len(f.renderer.calls) != 0 {
		t.Fatal("no rendering should happen without a logo")
	}
}
