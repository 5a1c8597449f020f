package prompt

import (
	"errors"
	"strings"
	"unicode/utf8"

	"tryon/internal/imagegen"
	"tryon/internal/providers/genai"
)

const (
	DefaultImageModel = "gemini-2.5-flash-image"
	DefaultTextModel  = "gemini-2.5-flash"

	maxLabelRunes = 120
	fallbackLabel = "the product"
)

// BuilderOptions configures model identifiers and wording.
type BuilderOptions struct {
	ImageModel string
	TextModel  string
	Templates  Templates
}

// Builder assembles provider requests. Part order is fixed: the instruction
// comes first, followed by the person image and, for edits, the product image.
type Builder struct {
	imageModel string
	textModel  string
	templates  Templates
}

// NewBuilder validates opts and fills in defaults.
func NewBuilder(opts BuilderOptions) (*Builder, error) {
	tpl := opts.Templates
	defaults := DefaultTemplates()
	if strings.TrimSpace(tpl.Edit) == "" {
		tpl.Edit = defaults.Edit
	}
	if strings.TrimSpace(tpl.Size) == "" {
		tpl.Size = defaults.Size
	}
	if !strings.Contains(tpl.Size, placeholderSizes) {
		return nil, errors.New("prompt: size template must list the " + placeholderSizes + " placeholder")
	}
	imageModel := strings.TrimSpace(opts.ImageModel)
	if imageModel == "" {
		imageModel = DefaultImageModel
	}
	textModel := strings.TrimSpace(opts.TextModel)
	if textModel == "" {
		textModel = DefaultTextModel
	}
	return &Builder{imageModel: imageModel, textModel: textModel, templates: tpl}, nil
}

// ImageModel returns the model used for edits.
func (b *Builder) ImageModel() string {
	return b.imageModel
}

// TextModel returns the model used for size estimation.
func (b *Builder) TextModel() string {
	return b.textModel
}

// BuildEditRequest returns a near-deterministic image edit request.
func (b *Builder) BuildEditRequest(user, product imagegen.EncodedImage, label string) genai.Request {
	return genai.Request{
		Model: b.imageModel,
		Parts: []genai.Part{
			genai.TextPart(render(b.templates.Edit, SanitizeLabel(label), sizeList())),
			inline(user),
			inline(product),
		},
		Temperature:        genai.Float32(0),
		ResponseModalities: []string{"TEXT", "IMAGE"},
	}
}

// BuildSizeRequest returns a request whose answer should be one size code.
func (b *Builder) BuildSizeRequest(user imagegen.EncodedImage, label string) genai.Request {
	return genai.Request{
		Model: b.textModel,
		Parts: []genai.Part{
			genai.TextPart(render(b.templates.Size, SanitizeLabel(label), sizeList())),
			inline(user),
		},
		Temperature: genai.Float32(0),
	}
}

func inline(img imagegen.EncodedImage) genai.Part {
	return genai.InlinePart(string(img.MediaType), imagegen.CleanPayload(img.Data))
}

func sizeList() string {
	sizes := imagegen.Sizes()
	out := make([]string, len(sizes))
	for i, s := range sizes {
		out[i] = string(s)
	}
	return strings.Join(out, ", ")
}

// SanitizeLabel collapses whitespace, drops quotes that would break the
// prompt and caps the length.
func SanitizeLabel(label string) string {
	label = strings.Map(func(r rune) rune {
		switch r {
		case '"', '`':
			return -1
		}
		return r
	}, label)
	label = strings.Join(strings.Fields(label), " ")
	if utf8.RuneCountInString(label) > maxLabelRunes {
		label = strings.TrimSpace(string([]rune(label)[:maxLabelRunes]))
	}
	if label == "" {
		return fallbackLabel
	}
	return label
}
