package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"tryon/internal/infra"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultTimeout = 120 * time.Second

	maxErrorBody = 64 << 10
)

// Options controls how a Gemini transport is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client speaks the generateContent REST API directly.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

// StatusError is returned for any HTTP status >= 400, regardless of transport.
type StatusError struct {
	Code    int
	Status  string
	Message string
}

func (e *StatusError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "gemini status %d", e.Code)
	if e.Status != "" {
		fmt.Fprintf(&b, " (%s)", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts,omitempty"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
	Thought    bool              `json:"thought,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type geminiGenerationConfig struct {
	Temperature        *float32 `json:"temperature,omitempty"`
	CandidateCount     int      `json:"candidateCount,omitempty"`
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type geminiGenerateContentRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiCandidate struct {
	Content      *geminiContent `json:"content,omitempty"`
	FinishReason string         `json:"finishReason,omitempty"`
}

type geminiPromptFeedback struct {
	BlockReason string `json:"blockReason,omitempty"`
}

type geminiGenerateContentResponse struct {
	Candidates     []geminiCandidate     `json:"candidates"`
	PromptFeedback *geminiPromptFeedback `json:"promptFeedback,omitempty"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
		Status  string `json:"status,omitempty"`
	} `json:"error"`
}

// NewClient constructs a REST client. A nil HTTP client is replaced by one
// with DefaultTimeout, which is the only timeout applied to provider calls.
func NewClient(opts Options) *Client {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}

	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		httpClient: client,
		logger:     loggerOrDiscard(opts.Logger),
	}
}

// GenerateContent issues one generateContent call for req.Model.
func (c *Client) GenerateContent(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Model) == "" {
		return nil, errors.New("gemini: model is required")
	}

	payload := geminiGenerateContentRequest{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: toWireParts(req.Parts),
		}},
		GenerationConfig: &geminiGenerationConfig{
			Temperature:        req.Temperature,
			CandidateCount:     1,
			ResponseModalities: req.ResponseModalities,
		},
	}

	var out geminiGenerateContentResponse
	path := fmt.Sprintf("/models/%s:generateContent", url.PathEscape(req.Model))
	if err := c.invoke(ctx, path, payload, &out); err != nil {
		return nil, err
	}

	resp := fromWireResponse(out)
	c.logger.Debug().
		Str("model", req.Model).
		Int("candidates", len(resp.Candidates)).
		Str("block_reason", resp.BlockReason).
		Msg("genai: generateContent completed")
	return resp, nil
}

func (c *Client) invoke(ctx context.Context, path string, payload any, out any) error {
	endpoint := c.baseURL + path
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-goog-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("invoke gemini: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeStatusError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode gemini response: %w", err)
	}
	return nil
}

func decodeStatusError(resp *http.Response) error {
	statusErr := &StatusError{Code: resp.StatusCode}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var apiErr geminiErrorResponse
	if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Error.Message != "" {
		statusErr.Message = apiErr.Error.Message
		statusErr.Status = apiErr.Error.Status
		return statusErr
	}
	statusErr.Message = strings.TrimSpace(string(data))
	return statusErr
}

func toWireParts(parts []Part) []geminiPart {
	out := make([]geminiPart, 0, len(parts))
	for _, part := range parts {
		if part.Inline != nil {
			out = append(out, geminiPart{InlineData: &geminiInlineData{
				MimeType: part.Inline.MIMEType,
				Data:     part.Inline.Data,
			}})
			continue
		}
		out = append(out, geminiPart{Text: part.Text})
	}
	return out
}

func fromWireResponse(in geminiGenerateContentResponse) *Response {
	resp := &Response{Candidates: make([]Candidate, 0, len(in.Candidates))}
	if in.PromptFeedback != nil {
		resp.BlockReason = in.PromptFeedback.BlockReason
	}
	for _, cand := range in.Candidates {
		out := Candidate{FinishReason: cand.FinishReason}
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if part.Thought {
					continue
				}
				if part.InlineData != nil && part.InlineData.Data != "" {
					out.Parts = append(out.Parts, InlinePart(part.InlineData.MimeType, part.InlineData.Data))
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

func loggerOrDiscard(logger *infra.Logger) *infra.Logger {
	if logger != nil {
		return logger
	}
	discard := zerolog.New(io.Discard)
	return &discard
}

var _ Generator = (*Client)(nil)
