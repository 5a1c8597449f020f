package genai

import (
	"strings"

	"tryon/internal/imagegen"
)

// Outcome tags what image extraction found.
type Outcome int

const (
	OutcomeNoCandidate Outcome = iota
	OutcomeNoParts
	OutcomeNoImage
	OutcomeImage
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNoCandidate:
		return "no_candidate"
	case OutcomeNoParts:
		return "no_parts"
	case OutcomeNoImage:
		return "no_image"
	case OutcomeImage:
		return "image"
	default:
		return "unknown"
	}
}

// ImageOutcome is the result of ExtractImage. FinishReason holds the first
// candidate's finish reason, or the prompt block reason when the provider
// rejected the prompt before producing candidates.
type ImageOutcome struct {
	Outcome      Outcome
	Image        imagegen.EncodedImage
	MIMEType     string
	FinishReason string
	Text         string
}

// Found reports whether an image part was located.
func (o ImageOutcome) Found() bool {
	return o.Outcome == OutcomeImage
}

// SafetyStop reports whether the provider declared a content-safety stop.
func (o ImageOutcome) SafetyStop() bool {
	return IsSafetyStop(o.FinishReason)
}

var safetyReasons = map[string]struct{}{
	"SAFETY":                   {},
	"IMAGE_SAFETY":             {},
	"PROHIBITED_CONTENT":       {},
	"IMAGE_PROHIBITED_CONTENT": {},
	"BLOCKLIST":                {},
	"SPII":                     {},
}

// IsSafetyStop reports whether reason is a content-safety finish or block reason.
func IsSafetyStop(reason string) bool {
	_, ok := safetyReasons[strings.ToUpper(strings.TrimSpace(reason))]
	return ok
}

// ExtractImage returns the first inline image part of the first candidate.
// Inline parts with a non-image MIME type are skipped; an empty MIME type is
// read as PNG. Later image parts are ignored.
func ExtractImage(resp *Response) ImageOutcome {
	if resp == nil || len(resp.Candidates) == 0 {
		out := ImageOutcome{Outcome: OutcomeNoCandidate}
		if resp != nil {
			out.FinishReason = resp.BlockReason
		}
		return out
	}
	cand := resp.Candidates[0]
	reason := cand.FinishReason
	if reason == "" {
		reason = resp.BlockReason
	}
	if len(cand.Parts) == 0 {
		return ImageOutcome{Outcome: OutcomeNoParts, FinishReason: reason}
	}
	for _, part := range cand.Parts {
		if part.Inline == nil || part.Inline.Data == "" {
			continue
		}
		mediaType, ok := inlineImageType(part.Inline.MIMEType)
		if !ok {
			continue
		}
		payload := imagegen.CleanPayload(part.Inline.Data)
		return ImageOutcome{
			Outcome: OutcomeImage,
			Image: imagegen.EncodedImage{
				Data:      payload,
				MediaType: mediaType,
				Size:      len(payload) * 3 / 4,
			},
			MIMEType:     part.Inline.MIMEType,
			FinishReason: reason,
		}
	}
	return ImageOutcome{Outcome: OutcomeNoImage, FinishReason: reason, Text: resp.Text()}
}

// inlineImageType maps an inline MIME type to a media type. Other image types
// such as WebP keep the PNG tag; decoding sniffs the bytes anyway.
func inlineImageType(mime string) (imagegen.MediaType, bool) {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if mime == "" {
		return imagegen.MediaTypePNG, true
	}
	if !strings.HasPrefix(mime, "image/") {
		return "", false
	}
	if mediaType, ok := imagegen.ParseMediaType(mime); ok {
		return mediaType, true
	}
	return imagegen.MediaTypePNG, true
}

// ExtractSizeCode reads the response text and matches it against the size
// enumeration.
func ExtractSizeCode(resp *Response) (imagegen.SizeCode, bool) {
	return imagegen.MatchSizeCode(resp.Text())
}
