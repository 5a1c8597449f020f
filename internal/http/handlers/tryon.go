package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"tryon/internal/imagegen"
	"tryon/internal/middleware"
	"tryon/internal/tryon"
)

const multipartMemory = 8 << 20

type imageResponse struct {
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
	Bytes     int    `json:"bytes"`
}

type tryOnResponse struct {
	AttemptID string            `json:"attempt_id"`
	Image     imageResponse     `json:"image"`
	Size      imagegen.SizeCode `json:"size"`
}

type sizeResponse struct {
	Size imagegen.SizeCode `json:"size"`
}

// TryOn handles POST /v1/tryon. The form carries user_image, either
// product_image or product_url, and label.
func (a *App) TryOn(w http.ResponseWriter, r *http.Request) {
	if !a.parseForm(w, r) {
		return
	}
	user, closeUser, ok := a.formImage(w, r, "user_image", true)
	if !ok {
		return
	}
	defer closeUser()

	product, closeProduct, ok := a.formImage(w, r, "product_image", false)
	if !ok {
		return
	}
	defer closeProduct()

	source := tryon.ProductSource{Source: product, URL: strings.TrimSpace(r.FormValue("product_url"))}
	if source.Source == nil && source.URL == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "product_image or product_url required")
		return
	}

	ctx, done := a.sessions.Begin(r.Context(), middleware.SessionKey(r))
	defer done()

	a.metrics.began()
	res, err := a.service.PerformTryOn(ctx, user, source, r.FormValue("label"))
	if err != nil {
		a.metrics.failed(tryon.Classify(err).Kind)
		a.pipelineError(w, r, err)
		return
	}
	a.metrics.succeeded()
	a.json(w, http.StatusOK, tryOnResponse{
		AttemptID: res.AttemptID,
		Image: imageResponse{
			MediaType: string(res.Image.MediaType),
			Data:      res.Image.Data,
			Bytes:     res.Image.Size,
		},
		Size: res.RecommendedSize,
	})
}

// Size handles POST /v1/size. It only fails on malformed input.
func (a *App) Size(w http.ResponseWriter, r *http.Request) {
	if !a.parseForm(w, r) {
		return
	}
	user, closeUser, ok := a.formImage(w, r, "user_image", true)
	if !ok {
		return
	}
	defer closeUser()

	size := a.service.EstimateSize(r.Context(), user, r.FormValue("label"))
	a.json(w, http.StatusOK, sizeResponse{Size: size})
}

func (a *App) parseForm(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, a.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			pe := &tryon.PipelineError{Kind: tryon.KindPayloadTooLarge, Detail: err.Error(), Err: err}
			a.pipelineError(w, r, pe)
			return false
		}
		a.error(w, http.StatusBadRequest, "bad_request", "multipart form required")
		return false
	}
	return true
}

// formImage opens an uploaded file. The returned func closes it and is never
// nil.
func (a *App) formImage(w http.ResponseWriter, r *http.Request, field string, required bool) (imagegen.Source, func(), bool) {
	noop := func() {}
	file, _, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) && !required {
			return nil, noop, true
		}
		a.error(w, http.StatusBadRequest, "bad_request", field+" required")
		return nil, noop, false
	}
	return imagegen.FromReader(file), func() { closeFile(file) }, true
}

func closeFile(f multipart.File) {
	_ = f.Close()
}

func (a *App) pipelineError(w http.ResponseWriter, r *http.Request, err error) {
	pe := tryon.Classify(err)
	lang := middleware.LocaleFromContext(r.Context()).Language
	a.requestLogger(r.Context()).Warn().
		Str("kind", string(pe.Kind)).
		Str("detail", pe.Detail).
		Msg("tryon: request failed")
	a.error(w, statusForKind(pe.Kind), string(pe.Kind), pe.Message(lang))
}

func statusForKind(kind tryon.Kind) int {
	switch kind {
	case tryon.KindMissingCredential:
		return http.StatusServiceUnavailable
	case tryon.KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case tryon.KindSafetyRejected:
		return http.StatusUnprocessableEntity
	case tryon.KindEmptyResult, tryon.KindTransientProviderFault:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
