// Package bootstrap turns a loaded configuration into a ready try-on service.
// Both binaries share it so the API and the CLI behave identically.
package bootstrap

import (
	"fmt"
	"net/http"
	"strings"

	"tryon/internal/imagegen"
	"tryon/internal/infra"
	"tryon/internal/providers/genai"
	imageprovider "tryon/internal/providers/image"
	"tryon/internal/providers/prompt"
	"tryon/internal/tryon"
)

// NewGenerator selects the provider transport named by cfg.GeminiTransport.
func NewGenerator(cfg *infra.Config, logger *infra.Logger) genai.Generator {
	opts := genai.Options{
		APIKey:     cfg.GeminiAPIKey,
		BaseURL:    cfg.GeminiBaseURL,
		HTTPClient: &http.Client{Timeout: cfg.GeminiTimeout},
		Logger:     logger,
	}
	if cfg.GeminiTransport == infra.TransportSDK {
		return genai.NewSDKClient(opts)
	}
	return genai.NewClient(opts)
}

// NewBuilder loads prompt templates from cfg.PromptsFile when set.
func NewBuilder(cfg *infra.Config) (*prompt.Builder, error) {
	templates := prompt.DefaultTemplates()
	if path := strings.TrimSpace(cfg.PromptsFile); path != "" {
		loaded, err := prompt.LoadTemplates(path)
		if err != nil {
			return nil, err
		}
		templates = loaded
	}
	return prompt.NewBuilder(prompt.BuilderOptions{
		ImageModel: cfg.GeminiImageModel,
		TextModel:  cfg.GeminiTextModel,
		Templates:  templates,
	})
}

// NewService wires the orchestrator. provider may be nil, in which case the
// configured transport is used.
func NewService(cfg *infra.Config, logger *infra.Logger, provider genai.Generator) (*tryon.Service, error) {
	if provider == nil {
		provider = NewGenerator(cfg, logger)
	}
	builder, err := NewBuilder(cfg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: prompt templates: %w", err)
	}
	fetcher := imageprovider.NewFetcher(imageprovider.FetcherOptions{
		ProxyURL: cfg.ImageProxyURL,
		Width:    cfg.ImageProxyWidth,
		Quality:  cfg.ImageProxyQuality,
		Logger:   logger,
	})
	return tryon.NewService(tryon.Options{
		APIKey:              cfg.GeminiAPIKey,
		Provider:            provider,
		Builder:             builder,
		Fetcher:             fetcher,
		Normalizer:          imagegen.NewNormalizer(cfg.JPEGQuality),
		Logger:              logger,
		UserMaxDimension:    cfg.UserMaxDimension,
		ProductMaxDimension: cfg.ProductMaxDimension,
		SizeMaxDimension:    cfg.SizeMaxDimension,
		OutputMaxDimension:  cfg.OutputMaxDimension,
	})
}
