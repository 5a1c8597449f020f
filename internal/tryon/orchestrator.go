package tryon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tryon/internal/imagegen"
	"tryon/internal/infra"
	"tryon/internal/providers/genai"
	"tryon/internal/providers/prompt"
)

const (
	DefaultUserMaxDimension    = 1024
	DefaultProductMaxDimension = 800
	DefaultSizeMaxDimension    = 800
	DefaultOutputMaxDimension  = 2048
)

// ImageFetcher resolves a product URL or data URI into pixels.
type ImageFetcher interface {
	Fetch(ctx context.Context, source string) (imagegen.Source, error)
}

// ProductSource names the garment image. Source wins when both are set.
type ProductSource struct {
	URL    string
	Source imagegen.Source
}

// Options wires a Service. APIKey is validated on every attempt before any
// provider traffic.
type Options struct {
	APIKey     string
	Provider   genai.Generator
	Builder    *prompt.Builder
	Fetcher    ImageFetcher
	Normalizer *imagegen.Normalizer
	Logger     *infra.Logger

	UserMaxDimension    int
	ProductMaxDimension int
	SizeMaxDimension    int
	OutputMaxDimension  int
}

// Service runs try-on attempts. It holds no per-attempt state and is safe for
// concurrent use.
type Service struct {
	apiKey     string
	provider   genai.Generator
	builder    *prompt.Builder
	fetcher    ImageFetcher
	normalizer *imagegen.Normalizer
	logger     *infra.Logger

	userMax    int
	productMax int
	sizeMax    int
	outputMax  int
}

// NewService validates opts and applies defaults.
func NewService(opts Options) (*Service, error) {
	if opts.Provider == nil {
		return nil, errors.New("tryon: provider is required")
	}
	builder := opts.Builder
	if builder == nil {
		var err error
		builder, err = prompt.NewBuilder(prompt.BuilderOptions{})
		if err != nil {
			return nil, err
		}
	}
	normalizer := opts.Normalizer
	if normalizer == nil {
		normalizer = imagegen.NewNormalizer(imagegen.DefaultQuality)
	}
	logger := opts.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}
	return &Service{
		apiKey:     strings.TrimSpace(opts.APIKey),
		provider:   opts.Provider,
		builder:    builder,
		fetcher:    opts.Fetcher,
		normalizer: normalizer,
		logger:     logger,
		userMax:    positiveOr(opts.UserMaxDimension, DefaultUserMaxDimension),
		productMax: positiveOr(opts.ProductMaxDimension, DefaultProductMaxDimension),
		sizeMax:    positiveOr(opts.SizeMaxDimension, DefaultSizeMaxDimension),
		outputMax:  positiveOr(opts.OutputMaxDimension, DefaultOutputMaxDimension),
	}, nil
}

// PerformTryOn normalizes both images, then sends the edit and size requests
// concurrently and waits for both. It returns either a result with an image
// or a *PipelineError.
func (s *Service) PerformTryOn(ctx context.Context, user imagegen.Source, product ProductSource, label string) (*imagegen.TryOnResult, error) {
	attemptID := uuid.NewString()
	logger := s.logger.With().Str("attempt_id", attemptID).Logger()
	start := time.Now()

	if !infra.ValidCredential(s.apiKey) {
		return nil, s.fail(ctx, &logger, ErrMissingCredential)
	}

	userImg, err := s.normalizer.Normalize(user, s.userMax)
	if err != nil {
		return nil, s.fail(ctx, &logger, prepareFailed("user image", err))
	}
	productSrc, err := s.resolveProduct(ctx, product)
	if err != nil {
		return nil, s.fail(ctx, &logger, prepareFailed("product image", err))
	}
	productImg, err := s.normalizer.Normalize(productSrc, s.productMax)
	if err != nil {
		return nil, s.fail(ctx, &logger, prepareFailed("product image", err))
	}
	logger.Debug().
		Int("user_bytes", userImg.Size).
		Int("product_bytes", productImg.Size).
		Msg("tryon: images prepared")

	editReq := s.builder.BuildEditRequest(userImg, productImg, label)
	sizeReq := s.builder.BuildSizeRequest(userImg, label)

	var (
		wg       sync.WaitGroup
		editResp *genai.Response
		editErr  error
		size     imagegen.SizeCode
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		editResp, editErr = s.provider.GenerateContent(ctx, editReq)
	}()
	go func() {
		defer wg.Done()
		size = s.estimate(ctx, &logger, sizeReq)
	}()
	wg.Wait()

	if editErr != nil {
		return nil, s.fail(ctx, &logger, editErr)
	}
	if errors.Is(context.Cause(ctx), ErrSuperseded) {
		return nil, s.fail(ctx, &logger, ErrSuperseded)
	}

	outcome := genai.ExtractImage(editResp)
	if !outcome.Found() {
		if outcome.SafetyStop() {
			return nil, s.fail(ctx, &logger, fmt.Errorf("%w: finish reason %s", ErrSafetyRejected, outcome.FinishReason))
		}
		return nil, s.fail(ctx, &logger, fmt.Errorf("%w: %s (finish reason %q)", ErrEmptyResult, outcome.Outcome, outcome.FinishReason))
	}

	generated, err := s.normalizer.Normalize(imagegen.FromDataURI(outcome.Image.Data), s.outputMax)
	if err != nil {
		return nil, s.fail(ctx, &logger, fmt.Errorf("%w: undecodable %s payload: %v", ErrEmptyResult, outcome.MIMEType, err))
	}

	logger.Info().
		Str("model", s.builder.ImageModel()).
		Str("size", string(size)).
		Int("bytes", generated.Size).
		Dur("elapsed", time.Since(start)).
		Msg("tryon: attempt succeeded")

	return &imagegen.TryOnResult{
		AttemptID:       attemptID,
		Image:           generated,
		RecommendedSize: size,
	}, nil
}

// EstimateSize asks the text model for a size code. It never fails: a missing
// credential, an unreadable photo or any provider failure yields DefaultSize.
func (s *Service) EstimateSize(ctx context.Context, user imagegen.Source, label string) imagegen.SizeCode {
	logger := s.logger.With().Str("operation", "estimate_size").Logger()
	if !infra.ValidCredential(s.apiKey) {
		logger.Warn().Msg("tryon: credential missing, using default size")
		return imagegen.DefaultSize
	}
	userImg, err := s.normalizer.Normalize(user, s.sizeMax)
	if err != nil {
		logger.Warn().Err(err).Msg("tryon: size photo unreadable, using default size")
		return imagegen.DefaultSize
	}
	return s.estimate(ctx, &logger, s.builder.BuildSizeRequest(userImg, label))
}

func (s *Service) estimate(ctx context.Context, logger *zerolog.Logger, req genai.Request) imagegen.SizeCode {
	resp, err := s.provider.GenerateContent(ctx, req)
	if err != nil {
		logger.Warn().Err(err).Str("model", req.Model).Msg("tryon: size estimation failed, using default")
		return imagegen.DefaultSize
	}
	code, ok := genai.ExtractSizeCode(resp)
	if !ok {
		logger.Debug().Str("answer", resp.Text()).Msg("tryon: no size code in answer, using default")
		return imagegen.DefaultSize
	}
	return code
}

func (s *Service) resolveProduct(ctx context.Context, product ProductSource) (imagegen.Source, error) {
	if product.Source != nil {
		return product.Source, nil
	}
	ref := strings.TrimSpace(product.URL)
	if ref == "" {
		return nil, errors.New("no product image given")
	}
	if imagegen.IsDataURI(ref) {
		return imagegen.FromDataURI(ref), nil
	}
	if s.fetcher == nil {
		return nil, errors.New("remote product images are not supported")
	}
	return s.fetcher.Fetch(ctx, ref)
}

// fail classifies err, logs the raw text and returns the PipelineError. An
// attempt whose context was superseded always reports ErrSuperseded.
func (s *Service) fail(ctx context.Context, logger *zerolog.Logger, err error) error {
	if cause := context.Cause(ctx); errors.Is(cause, ErrSuperseded) && !errors.Is(err, ErrSuperseded) {
		err = fmt.Errorf("%w (%v)", ErrSuperseded, err)
	}
	pe := Classify(err)
	logger.Warn().
		Str("kind", string(pe.Kind)).
		Str("model", s.builder.ImageModel()).
		Err(pe.Err).
		Msg("tryon: attempt failed")
	return pe
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}
