package prompt

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const (
	placeholderProduct = "{product}"
	placeholderSizes   = "{sizes}"
)

// DefaultEditTemplate instructs the image model. It refers to the images in
// the order the builder attaches them: person first, product second.
const DefaultEditTemplate = `TASK: Virtual try-on.
The first image shows a person. The second image shows the product "{product}".
Dress the person from the first image in the clothing from the second image.
Constraints:
- Keep the person's identity, face, hair, skin tone, body shape and pose exactly as in the first image.
- Keep the background, lighting and camera framing of the first image unchanged.
- Replace only the garment. Do not add accessories.
- Do not invent design details, logos, prints or colours that are not visible in the product image.
- Reproduce seams, fabric texture and colour of the product faithfully, with natural folds for the pose.
Return the edited image.`

// DefaultSizeTemplate asks the text model for a single size code.
const DefaultSizeTemplate = `Analyze the body of the person in the attached image. Which clothing size would fit them best for the product "{product}"?
Options: [{sizes}].
Answer with ONLY the size code (for example "M").`

// Templates holds the prompt wording. It is data, not code, so it can be
// swapped through a TOML file without a release.
type Templates struct {
	Edit string `toml:"edit"`
	Size string `toml:"size"`
}

// DefaultTemplates returns the built-in wording.
func DefaultTemplates() Templates {
	return Templates{Edit: DefaultEditTemplate, Size: DefaultSizeTemplate}
}

// LoadTemplates reads a TOML file with optional `edit` and `size` keys. Missing
// keys keep the defaults. An empty path returns the defaults.
func LoadTemplates(path string) (Templates, error) {
	tpl := DefaultTemplates()
	path = strings.TrimSpace(path)
	if path == "" {
		return tpl, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return tpl, fmt.Errorf("prompt: read templates: %w", err)
	}
	var file Templates
	if err := toml.Unmarshal(data, &file); err != nil {
		return tpl, fmt.Errorf("prompt: parse templates: %w", err)
	}
	if strings.TrimSpace(file.Edit) != "" {
		tpl.Edit = file.Edit
	}
	if strings.TrimSpace(file.Size) != "" {
		tpl.Size = file.Size
	}
	return tpl, nil
}

func render(template, product, sizes string) string {
	r := strings.NewReplacer(placeholderProduct, product, placeholderSizes, sizes)
	return strings.TrimSpace(r.Replace(template))
}
