package genai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	gensdk "google.golang.org/genai"

	"tryon/internal/infra"
)

// SDKClient implements Generator on top of google.golang.org/genai. The
// underlying client is created on first use so a process without credentials
// can still start and report the missing key per request.
type SDKClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger

	mu     sync.Mutex
	client *gensdk.Client
}

// NewSDKClient returns a lazily initialised SDK transport.
func NewSDKClient(opts Options) *SDKClient {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &SDKClient{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    strings.TrimSpace(opts.BaseURL),
		httpClient: client,
		logger:     loggerOrDiscard(opts.Logger),
	}
}

func (c *SDKClient) sdk(ctx context.Context) (*gensdk.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return c.client, nil
	}

	cfg := &gensdk.ClientConfig{
		APIKey:     c.apiKey,
		Backend:    gensdk.BackendGeminiAPI,
		HTTPClient: c.httpClient,
	}
	if base, version := splitBaseURL(c.baseURL); base != "" {
		cfg.HTTPOptions = gensdk.HTTPOptions{BaseURL: base, APIVersion: version}
	}
	client, err := gensdk.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	c.client = client
	return client, nil
}

// GenerateContent issues one generateContent call through the SDK.
func (c *SDKClient) GenerateContent(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Model) == "" {
		return nil, errors.New("gemini: model is required")
	}
	parts, err := toSDKParts(req.Parts)
	if err != nil {
		return nil, err
	}
	client, err := c.sdk(ctx)
	if err != nil {
		return nil, err
	}

	contents := []*gensdk.Content{gensdk.NewContentFromParts(parts, gensdk.RoleUser)}
	cfg := &gensdk.GenerateContentConfig{
		Temperature:        req.Temperature,
		ResponseModalities: req.ResponseModalities,
	}
	res, err := client.Models.GenerateContent(ctx, req.Model, contents, cfg)
	if err != nil {
		return nil, translateSDKError(err)
	}

	resp := fromSDKResponse(res)
	c.logger.Debug().
		Str("model", req.Model).
		Int("candidates", len(resp.Candidates)).
		Str("block_reason", resp.BlockReason).
		Msg("genai: sdk generateContent completed")
	return resp, nil
}

func toSDKParts(parts []Part) ([]*gensdk.Part, error) {
	out := make([]*gensdk.Part, 0, len(parts))
	for i, part := range parts {
		if part.Inline == nil {
			out = append(out, gensdk.NewPartFromText(part.Text))
			continue
		}
		raw, err := base64.StdEncoding.DecodeString(part.Inline.Data)
		if err != nil {
			return nil, fmt.Errorf("decode inline part %d: %w", i, err)
		}
		out = append(out, &gensdk.Part{InlineData: &gensdk.Blob{
			MIMEType: part.Inline.MIMEType,
			Data:     raw,
		}})
	}
	return out, nil
}

func fromSDKResponse(res *gensdk.GenerateContentResponse) *Response {
	resp := &Response{}
	if res == nil {
		return resp
	}
	if res.PromptFeedback != nil {
		resp.BlockReason = string(res.PromptFeedback.BlockReason)
	}
	for _, cand := range res.Candidates {
		if cand == nil {
			continue
		}
		out := Candidate{FinishReason: string(cand.FinishReason)}
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if part == nil || part.Thought {
					continue
				}
				if part.InlineData != nil && len(part.InlineData.Data) > 0 {
					out.Parts = append(out.Parts, InlinePart(
						part.InlineData.MIMEType,
						base64.StdEncoding.EncodeToString(part.InlineData.Data),
					))
					continue
				}
				if part.Text != "" {
					out.Parts = append(out.Parts, TextPart(part.Text))
				}
			}
		}
		resp.Candidates = append(resp.Candidates, out)
	}
	return resp
}

func translateSDKError(err error) error {
	var apiErr gensdk.APIError
	if errors.As(err, &apiErr) {
		return &StatusError{Code: apiErr.Code, Status: apiErr.Status, Message: apiErr.Message}
	}
	var apiErrPtr *gensdk.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return &StatusError{Code: apiErrPtr.Code, Status: apiErrPtr.Status, Message: apiErrPtr.Message}
	}
	return fmt.Errorf("invoke gemini: %w", err)
}

// splitBaseURL turns ".../v1beta" into the SDK's base URL and API version.
func splitBaseURL(raw string) (string, string) {
	raw = strings.TrimRight(raw, "/")
	if raw == "" || raw == DefaultBaseURL {
		return "", ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", ""
	}
	version := strings.Trim(u.Path, "/")
	u.Path = "/"
	return u.String(), version
}

var _ Generator = (*SDKClient)(nil)
