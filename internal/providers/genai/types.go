package genai

import (
	"context"
	"strings"
)

// Generator is implemented by every transport that can call generateContent.
type Generator interface {
	GenerateContent(ctx context.Context, req Request) (*Response, error)
}

// Request is the provider-neutral shape of one multimodal call.
type Request struct {
	Model              string
	Parts              []Part
	Temperature        *float32
	ResponseModalities []string
}

// Part is either text or an inlined base64 payload.
type Part struct {
	Text   string
	Inline *InlineData
}

// InlineData carries base64 without a data URI prefix.
type InlineData struct {
	MIMEType string
	Data     string
}

// TextPart builds a text part.
func TextPart(text string) Part {
	return Part{Text: text}
}

// InlinePart builds an inline binary part.
func InlinePart(mimeType, data string) Part {
	return Part{Inline: &InlineData{MIMEType: mimeType, Data: data}}
}

// Response is decoded once at the transport boundary. Slices are never nil
// pointers so callers only deal with lengths.
type Response struct {
	Candidates  []Candidate
	BlockReason string
}

// Candidate is one alternative answer.
type Candidate struct {
	Parts        []Part
	FinishReason string
}

// Text joins the text parts of the first candidate.
func (r *Response) Text() string {
	if r == nil || len(r.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, part := range r.Candidates[0].Parts {
		if part.Inline != nil {
			continue
		}
		b.WriteString(part.Text)
	}
	return b.String()
}

// Float32 returns a pointer so a zero temperature still reaches the wire.
func Float32(v float32) *float32 {
	return &v
}
