package tryon

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"tryon/internal/imagegen"
	"tryon/internal/providers/genai"
	imageprovider "tryon/internal/providers/image"
	"tryon/internal/providers/prompt"
)

const (
	testImageModel = "image-model"
	testTextModel  = "text-model"
	testAPIKey     = "test-key"
)

type generateFunc func(ctx context.Context, req genai.Request) (*genai.Response, error)

type fakeProvider struct {
	mu    sync.Mutex
	calls []genai.Request
	edit  generateFunc
	size  generateFunc
}

func (f *fakeProvider) GenerateContent(ctx context.Context, req genai.Request) (*genai.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	if req.Model == testImageModel {
		if f.edit != nil {
			return f.edit(ctx, req)
		}
		return imageResponse(pngBytes(64, 96)), nil
	}
	if f.size != nil {
		return f.size(ctx, req)
	}
	return textResponse("M"), nil
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeProvider) request(model string) (genai.Request, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, req := range f.calls {
		if req.Model == model {
			return req, true
		}
	}
	return genai.Request{}, false
}

type countingFetcher struct {
	calls int
	src   imagegen.Source
	err   error
}

func (f *countingFetcher) Fetch(context.Context, string) (imagegen.Source, error) {
	f.calls++
	return f.src, f.err
}

func pngBytes(w, h int) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func imageResponse(raw []byte) *genai.Response {
	return &genai.Response{Candidates: []genai.Candidate{{
		Parts: []genai.Part{
			genai.TextPart("Here is the result."),
			genai.InlinePart("image/png", base64.StdEncoding.EncodeToString(raw)),
		},
		FinishReason: "STOP",
	}}}
}

func textResponse(text string) *genai.Response {
	return &genai.Response{Candidates: []genai.Candidate{{
		Parts:        []genai.Part{genai.TextPart(text)},
		FinishReason: "STOP",
	}}}
}

func newTestService(t *testing.T, apiKey string, provider genai.Generator, fetcher ImageFetcher) *Service {
	t.Helper()
	builder, err := prompt.NewBuilder(prompt.BuilderOptions{ImageModel: testImageModel, TextModel: testTextModel})
	if err != nil {
		t.Fatalf("NewBuilder returned error: %v", err)
	}
	svc, err := NewService(Options{
		APIKey:   apiKey,
		Provider: provider,
		Builder:  builder,
		Fetcher:  fetcher,
	})
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}
	return svc
}

func productFromBytes(raw []byte) ProductSource {
	return ProductSource{Source: imagegen.FromBytes(raw)}
}

func expectKind(t *testing.T, err error, want Kind) *PipelineError {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", want)
	}
	var pe *PipelineError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *PipelineError, got %T: %v", err, err)
	}
	if pe.Kind != want {
		t.Fatalf("Kind = %s, want %s (detail %q)", pe.Kind, want, pe.Detail)
	}
	return pe
}

func TestNewServiceRequiresProvider(t *testing.T) {
	if _, err := NewService(Options{APIKey: testAPIKey}); err == nil {
		t.Fatal("expected error without provider")
	}
}

func TestPerformTryOnMissingCredential(t *testing.T) {
	for _, key := range []string{"", "undefined", "  "} {
		provider := &fakeProvider{}
		fetcher := &countingFetcher{}
		svc := newTestService(t, key, provider, fetcher)

		res, err := svc.PerformTryOn(context.Background(), imagegen.FromBytes(pngBytes(10, 10)), ProductSource{URL: "https://shop.example.com/p.jpg"}, "Set")
		if res != nil {
			t.Fatalf("key %q: expected no result", key)
		}
		expectKind(t, err, KindMissingCredential)
		if provider.callCount() != 0 || fetcher.calls != 0 {
			t.Fatalf("key %q: expected zero network calls, provider=%d fetcher=%d", key, provider.callCount(), fetcher.calls)
		}
	}
}

func TestPerformTryOnEndToEnd(t *testing.T) {
	var proxied string
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		proxied = r.URL.Query().Get("url")
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(pngBytes(1200, 1600))
	}))
	defer proxy.Close()

	provider := &fakeProvider{
		size: func(context.Context, genai.Request) (*genai.Response, error) {
			return textResponse("  I think size L fits well  "), nil
		},
	}
	fetcher := imageprovider.NewFetcher(imageprovider.FetcherOptions{ProxyURL: proxy.URL, HTTPClient: proxy.Client()})
	svc := newTestService(t, testAPIKey, provider, fetcher)

	res, err := svc.PerformTryOn(
		context.Background(),
		imagegen.FromBytes(pngBytes(2000, 1000)),
		ProductSource{URL: "https://shop.example.com/products/maroon.jpg"},
		"Maroon Performance Set",
	)
	if err != nil {
		t.Fatalf("PerformTryOn returned error: %v", err)
	}
	if res.Image.IsZero() || res.Image.MediaType != imagegen.CanonicalMediaType {
		t.Fatalf("image = %s (%d bytes)", res.Image.MediaType, res.Image.Size)
	}
	if !res.RecommendedSize.Valid() || res.RecommendedSize != imagegen.SizeL {
		t.Fatalf("RecommendedSize = %q, want L", res.RecommendedSize)
	}
	if _, err := uuid.Parse(res.AttemptID); err != nil {
		t.Fatalf("AttemptID %q is not a uuid: %v", res.AttemptID, err)
	}
	if proxied != "https://shop.example.com/products/maroon.jpg" {
		t.Fatalf("proxy saw url %q", proxied)
	}

	raw, err := res.Image.Bytes()
	if err != nil {
		t.Fatalf("decode result: %v", err)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil || format != "jpeg" {
		t.Fatalf("result format = %q, err %v", format, err)
	}
	if cfg.Width != 64 || cfg.Height != 96 {
		t.Fatalf("result geometry = %dx%d, want 64x96", cfg.Width, cfg.Height)
	}

	edit, ok := provider.request(testImageModel)
	if !ok || len(edit.Parts) != 3 {
		t.Fatalf("edit request = %#v", edit)
	}
	userRaw, err := base64.StdEncoding.DecodeString(edit.Parts[1].Inline.Data)
	if err != nil {
		t.Fatalf("user payload: %v", err)
	}
	userCfg, _, err := image.DecodeConfig(bytes.NewReader(userRaw))
	if err != nil {
		t.Fatalf("user payload decode: %v", err)
	}
	if userCfg.Width != 1024 || userCfg.Height != 512 {
		t.Fatalf("user image = %dx%d, want 1024x512", userCfg.Width, userCfg.Height)
	}
	productRaw, _ := base64.StdEncoding.DecodeString(edit.Parts[2].Inline.Data)
	productCfg, _, err := image.DecodeConfig(bytes.NewReader(productRaw))
	if err != nil {
		t.Fatalf("product payload decode: %v", err)
	}
	if productCfg.Width != 600 || productCfg.Height != 800 {
		t.Fatalf("product image = %dx%d, want 600x800", productCfg.Width, productCfg.Height)
	}
	if _, ok := provider.request(testTextModel); !ok {
		t.Fatal("size request was not sent")
	}
}

func TestPerformTryOnSafetyRejected(t *testing.T) {
	responses := map[string]*genai.Response{
		"finish reason": {Candidates: []genai.Candidate{{FinishReason: "SAFETY"}}},
		"block reason":  {BlockReason: "PROHIBITED_CONTENT"},
		"image safety":  {Candidates: []genai.Candidate{{Parts: []genai.Part{genai.TextPart("I can't help with that.")}, FinishReason: "IMAGE_SAFETY"}}},
	}
	for name, resp := range responses {
		t.Run(name, func(t *testing.T) {
			provider := &fakeProvider{edit: func(context.Context, genai.Request) (*genai.Response, error) {
				return resp, nil
			}}
			svc := newTestService(t, testAPIKey, provider, nil)
			_, err := svc.PerformTryOn(context.Background(), imagegen.FromBytes(pngBytes(20, 20)), productFromBytes(pngBytes(20, 20)), "Set")
			expectKind(t, err, KindSafetyRejected)
			if !errors.Is(err, ErrSafetyRejected) {
				t.Fatalf("expected ErrSafetyRejected in chain: %v", err)
			}
		})
	}
}

func TestPerformTryOnEmptyResult(t *testing.T) {
	responses := map[string]*genai.Response{
		"no candidates": {},
		"no parts":      {Candidates: []genai.Candidate{{FinishReason: "STOP"}}},
		"text only":     textResponse("I could not edit this image."),
		"undecodable":   {Candidates: []genai.Candidate{{Parts: []genai.Part{genai.InlinePart("image/png", base64.StdEncoding.EncodeToString([]byte("not an image")))}}}},
	}
	for name, resp := range responses {
		t.Run(name, func(t *testing.T) {
			provider := &fakeProvider{edit: func(context.Context, genai.Request) (*genai.Response, error) {
				return resp, nil
			}}
			svc := newTestService(t, testAPIKey, provider, nil)
			_, err := svc.PerformTryOn(context.Background(), imagegen.FromBytes(pngBytes(20, 20)), productFromBytes(pngBytes(20, 20)), "Set")
			expectKind(t, err, KindEmptyResult)
		})
	}
}

func TestPerformTryOnProviderErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"bad request", &genai.StatusError{Code: http.StatusBadRequest, Status: "INVALID_ARGUMENT", Message: "Request payload size exceeds the limit"}, KindPayloadTooLarge},
		{"unavailable", &genai.StatusError{Code: http.StatusServiceUnavailable, Status: "UNAVAILABLE", Message: "overloaded"}, KindTransientProviderFault},
		{"deadline", context.DeadlineExceeded, KindTransientProviderFault},
		{"other", errors.New("model returned gibberish"), KindUnknown},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			provider := &fakeProvider{edit: func(context.Context, genai.Request) (*genai.Response, error) {
				return nil, tc.err
			}}
			svc := newTestService(t, testAPIKey, provider, nil)
			_, err := svc.PerformTryOn(context.Background(), imagegen.FromBytes(pngBytes(20, 20)), productFromBytes(pngBytes(20, 20)), "Set")
			expectKind(t, err, tc.want)
			if provider.callCount() != 2 {
				t.Fatalf("expected both requests dispatched, got %d", provider.callCount())
			}
		})
	}
}

func TestPerformTryOnPrepareFailures(t *testing.T) {
	t.Run("user image", func(t *testing.T) {
		provider := &fakeProvider{}
		svc := newTestService(t, testAPIKey, provider, nil)
		_, err := svc.PerformTryOn(context.Background(), imagegen.FromBytes([]byte("garbage")), productFromBytes(pngBytes(20, 20)), "Set")
		expectKind(t, err, KindTransientProviderFault)
		if provider.callCount() != 0 {
			t.Fatalf("expected no provider calls, got %d", provider.callCount())
		}
	})

	t.Run("fetch", func(t *testing.T) {
		provider := &fakeProvider{}
		fetcher := &countingFetcher{err: &imageprovider.FetchError{Origin: "https://shop.example.com", StatusCode: http.StatusNotFound}}
		svc := newTestService(t, testAPIKey, provider, fetcher)
		_, err := svc.PerformTryOn(context.Background(), imagegen.FromBytes(pngBytes(20, 20)), ProductSource{URL: "https://shop.example.com/p.jpg?sig=secret"}, "Set")
		pe := expectKind(t, err, KindTransientProviderFault)
		if fetcher.calls != 1 || provider.callCount() != 0 {
			t.Fatalf("fetcher=%d provider=%d", fetcher.calls, provider.callCount())
		}
		if bytes.Contains([]byte(pe.Detail), []byte("secret")) {
			t.Fatalf("detail leaks query string: %s", pe.Detail)
		}
	})

	t.Run("missing product", func(t *testing.T) {
		svc := newTestService(t, testAPIKey, &fakeProvider{}, nil)
		_, err := svc.PerformTryOn(context.Background(), imagegen.FromBytes(pngBytes(20, 20)), ProductSource{}, "Set")
		expectKind(t, err, KindTransientProviderFault)
	})

	t.Run("data uri product skips fetcher", func(t *testing.T) {
		fetcher := &countingFetcher{}
		svc := newTestService(t, testAPIKey, &fakeProvider{}, fetcher)
		uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes(20, 20))
		if _, err := svc.PerformTryOn(context.Background(), imagegen.FromBytes(pngBytes(20, 20)), ProductSource{URL: uri}, "Set"); err != nil {
			t.Fatalf("PerformTryOn returned error: %v", err)
		}
		if fetcher.calls != 0 {
			t.Fatalf("fetcher called %d times", fetcher.calls)
		}
	})
}

func TestPerformTryOnSizeFailureFallsBackToDefault(t *testing.T) {
	answers := map[string]generateFunc{
		"error": func(context.Context, genai.Request) (*genai.Response, error) {
			return nil, &genai.StatusError{Code: http.StatusInternalServerError}
		},
		"no code": func(context.Context, genai.Request) (*genai.Response, error) {
			return textResponse("xyz"), nil
		},
		"empty": func(context.Context, genai.Request) (*genai.Response, error) {
			return &genai.Response{}, nil
		},
	}
	for name, size := range answers {
		t.Run(name, func(t *testing.T) {
			svc := newTestService(t, testAPIKey, &fakeProvider{size: size}, nil)
			res, err := svc.PerformTryOn(context.Background(), imagegen.FromBytes(pngBytes(20, 20)), productFromBytes(pngBytes(20, 20)), "Set")
			if err != nil {
				t.Fatalf("PerformTryOn returned error: %v", err)
			}
			if res.RecommendedSize != imagegen.DefaultSize {
				t.Fatalf("RecommendedSize = %q, want default", res.RecommendedSize)
			}
		})
	}
}

func TestPerformTryOnDispatchesConcurrently(t *testing.T) {
	var arrived sync.WaitGroup
	arrived.Add(2)
	both := make(chan struct{})
	go func() {
		arrived.Wait()
		close(both)
	}()
	rendezvous := func() error {
		arrived.Done()
		select {
		case <-both:
			return nil
		case <-time.After(2 * time.Second):
			return errors.New("requests were not in flight together")
		}
	}

	provider := &fakeProvider{
		edit: func(context.Context, genai.Request) (*genai.Response, error) {
			if err := rendezvous(); err != nil {
				return nil, err
			}
			return imageResponse(pngBytes(16, 16)), nil
		},
		size: func(context.Context, genai.Request) (*genai.Response, error) {
			if err := rendezvous(); err != nil {
				return nil, err
			}
			return textResponse("XL"), nil
		},
	}
	svc := newTestService(t, testAPIKey, provider, nil)
	res, err := svc.PerformTryOn(context.Background(), imagegen.FromBytes(pngBytes(20, 20)), productFromBytes(pngBytes(20, 20)), "Set")
	if err != nil {
		t.Fatalf("PerformTryOn returned error: %v", err)
	}
	if res.RecommendedSize != imagegen.SizeXL {
		t.Fatalf("RecommendedSize = %q, want XL", res.RecommendedSize)
	}
}

func TestPerformTryOnLatencyIsBoundedBySlowestCall(t *testing.T) {
	const slow = 200 * time.Millisecond
	provider := &fakeProvider{
		edit: func(context.Context, genai.Request) (*genai.Response, error) {
			time.Sleep(slow)
			return imageResponse(pngBytes(16, 16)), nil
		},
		size: func(context.Context, genai.Request) (*genai.Response, error) {
			time.Sleep(slow)
			return textResponse("S"), nil
		},
	}
	svc := newTestService(t, testAPIKey, provider, nil)

	start := time.Now()
	res, err := svc.PerformTryOn(context.Background(), imagegen.FromBytes(pngBytes(20, 20)), productFromBytes(pngBytes(20, 20)), "Set")
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("PerformTryOn returned error: %v", err)
	}
	if res.RecommendedSize != imagegen.SizeS {
		t.Fatalf("size response was not awaited: %q", res.RecommendedSize)
	}
	if elapsed < slow {
		t.Fatalf("returned after %s, before the slow calls finished", elapsed)
	}
	// Sequential calls would take at least 2*slow.
	if elapsed >= 350*time.Millisecond {
		t.Fatalf("took %s, provider calls did not overlap", elapsed)
	}
}

func TestPerformTryOnSuperseded(t *testing.T) {
	sessions := NewSessions()
	started := make(chan struct{})
	var once sync.Once
	provider := &fakeProvider{
		edit: func(ctx context.Context, req genai.Request) (*genai.Response, error) {
			first := false
			once.Do(func() {
				first = true
				close(started)
			})
			if first {
				<-ctx.Done()
				return nil, ctx.Err()
			}
			return imageResponse(pngBytes(16, 16)), nil
		},
	}
	svc := newTestService(t, testAPIKey, provider, nil)

	firstCtx, firstDone := sessions.Begin(context.Background(), "shopper-1")
	errCh := make(chan error, 1)
	go func() {
		defer firstDone()
		_, err := svc.PerformTryOn(firstCtx, imagegen.FromBytes(pngBytes(20, 20)), productFromBytes(pngBytes(20, 20)), "Set")
		errCh <- err
	}()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("first attempt never reached the provider")
	}

	secondCtx, secondDone := sessions.Begin(context.Background(), "shopper-1")
	defer secondDone()

	var firstErr error
	select {
	case firstErr = <-errCh:
	case <-time.After(2 * time.Second):
		t.Fatal("first attempt was not cancelled")
	}
	expectKind(t, firstErr, KindTransientProviderFault)
	if !errors.Is(firstErr, ErrSuperseded) {
		t.Fatalf("expected ErrSuperseded, got %v", firstErr)
	}

	res, err := svc.PerformTryOn(secondCtx, imagegen.FromBytes(pngBytes(20, 20)), productFromBytes(pngBytes(20, 20)), "Set")
	if err != nil {
		t.Fatalf("second attempt returned error: %v", err)
	}
	if res.Image.IsZero() {
		t.Fatal("second attempt has no image")
	}
}

func TestEstimateSize(t *testing.T) {
	t.Run("answer", func(t *testing.T) {
		provider := &fakeProvider{size: func(_ context.Context, req genai.Request) (*genai.Response, error) {
			if len(req.Parts) != 2 || req.Parts[1].Inline == nil {
				t.Errorf("size request parts = %#v", req.Parts)
			}
			return textResponse("XXL"), nil
		}}
		svc := newTestService(t, testAPIKey, provider, nil)
		if got := svc.EstimateSize(context.Background(), imagegen.FromBytes(pngBytes(20, 20)), "Set"); got != imagegen.SizeXXL {
			t.Fatalf("EstimateSize = %q, want XXL", got)
		}
	})

	t.Run("missing credential", func(t *testing.T) {
		provider := &fakeProvider{}
		svc := newTestService(t, "undefined", provider, nil)
		if got := svc.EstimateSize(context.Background(), imagegen.FromBytes(pngBytes(20, 20)), "Set"); got != imagegen.DefaultSize {
			t.Fatalf("EstimateSize = %q, want default", got)
		}
		if provider.callCount() != 0 {
			t.Fatalf("expected zero provider calls, got %d", provider.callCount())
		}
	})

	t.Run("unreadable photo", func(t *testing.T) {
		provider := &fakeProvider{}
		svc := newTestService(t, testAPIKey, provider, nil)
		if got := svc.EstimateSize(context.Background(), imagegen.FromBytes(nil), "Set"); got != imagegen.DefaultSize {
			t.Fatalf("EstimateSize = %q, want default", got)
		}
	})

	t.Run("provider error", func(t *testing.T) {
		provider := &fakeProvider{size: func(context.Context, genai.Request) (*genai.Response, error) {
			return nil, errors.New("boom")
		}}
		svc := newTestService(t, testAPIKey, provider, nil)
		if got := svc.EstimateSize(context.Background(), imagegen.FromBytes(pngBytes(20, 20)), "Set"); got != imagegen.DefaultSize {
			t.Fatalf("EstimateSize = %q, want default", got)
		}
	})
}
