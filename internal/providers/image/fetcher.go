package image

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"tryon/internal/imagegen"
	"tryon/internal/infra"
)

const (
	DefaultProxyURL     = "https://images.weserv.nl"
	DefaultProxyWidth   = 800
	DefaultProxyQuality = 90

	defaultFetchTimeout = 30 * time.Second
	maxImageBytes       = 32 << 20
)

// FetchError reports a product image that could not be loaded. Only the
// origin of the source URL is kept so signed query strings never reach logs.
type FetchError struct {
	Origin     string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	origin := e.Origin
	if origin == "" {
		origin = "unknown origin"
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch image from %s: status %d", origin, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("fetch image from %s: %v", origin, e.Err)
	}
	return "fetch image from " + origin
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// FetcherOptions configures the proxy rewrite.
type FetcherOptions struct {
	ProxyURL   string
	Width      int
	Quality    int
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Fetcher loads remote product images through an image proxy, which serves
// them with permissive CORS headers and already transcoded to JPEG.
type Fetcher struct {
	proxyURL   string
	width      int
	quality    int
	httpClient *http.Client
	logger     *infra.Logger
}

// NewFetcher applies defaults for empty options. A negative quality omits the
// q parameter.
func NewFetcher(opts FetcherOptions) *Fetcher {
	proxy := strings.TrimRight(strings.TrimSpace(opts.ProxyURL), "/")
	if proxy == "" {
		proxy = DefaultProxyURL
	}
	width := opts.Width
	if width <= 0 {
		width = DefaultProxyWidth
	}
	quality := opts.Quality
	if quality == 0 {
		quality = DefaultProxyQuality
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTimeout}
	}
	logger := opts.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}
	return &Fetcher{
		proxyURL:   proxy,
		width:      width,
		quality:    quality,
		httpClient: client,
		logger:     logger,
	}
}

// ProxyURL renders <proxy>/?url=<source>&w=<width>&output=jpg[&q=<quality>].
func (f *Fetcher) ProxyURL(source string) string {
	var b strings.Builder
	b.WriteString(f.proxyURL)
	b.WriteString("/?url=")
	b.WriteString(url.QueryEscape(source))
	b.WriteString("&w=")
	b.WriteString(strconv.Itoa(f.width))
	b.WriteString("&output=jpg")
	if f.quality > 0 {
		b.WriteString("&q=")
		b.WriteString(strconv.Itoa(f.quality))
	}
	return b.String()
}

// Fetch resolves source into decoded pixels. Data URIs are returned as is
// without any network round-trip. Nothing is cached.
func (f *Fetcher) Fetch(ctx context.Context, source string) (imagegen.Source, error) {
	source = strings.TrimSpace(source)
	if imagegen.IsDataURI(source) {
		return imagegen.FromDataURI(source), nil
	}

	parsed, err := url.Parse(source)
	if err != nil || parsed.Host == "" {
		return nil, &FetchError{Err: errors.New("invalid image url")}
	}
	origin := parsed.Scheme + "://" + parsed.Host
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, &FetchError{Origin: origin, Err: fmt.Errorf("unsupported scheme %q", parsed.Scheme)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.ProxyURL(source), nil)
	if err != nil {
		return nil, &FetchError{Origin: origin, Err: err}
	}
	req.Header.Set("Accept", "image/*")

	start := time.Now()
	resp, err := f.httpClient.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, &FetchError{Origin: origin, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, &FetchError{Origin: origin, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, &FetchError{Origin: origin, Err: fmt.Errorf("read body: %w", err)}
	}
	img, err := imagegen.FromBytes(body).Decode()
	if err != nil {
		return nil, &FetchError{Origin: origin, Err: err}
	}

	f.logger.Debug().
		Str("origin", origin).
		Int("bytes", len(body)).
		Dur("elapsed", time.Since(start)).
		Msg("image: fetched remote product image")
	return imagegen.FromImage(img), nil
}
