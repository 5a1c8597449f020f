package imagegen

import (
	"strings"
	"unicode"
)

// SizeCode is a garment size from a closed set.
type SizeCode string

const (
	SizeXS  SizeCode = "XS"
	SizeS   SizeCode = "S"
	SizeM   SizeCode = "M"
	SizeL   SizeCode = "L"
	SizeXL  SizeCode = "XL"
	SizeXXL SizeCode = "XXL"
)

// DefaultSize is substituted whenever no valid estimate is available.
const DefaultSize = SizeM

var sizeOrder = []SizeCode{SizeXS, SizeS, SizeM, SizeL, SizeXL, SizeXXL}

// Sizes returns the enumeration in declaration order.
func Sizes() []SizeCode {
	out := make([]SizeCode, len(sizeOrder))
	copy(out, sizeOrder)
	return out
}

// Valid reports set membership.
func (s SizeCode) Valid() bool {
	for _, code := range sizeOrder {
		if s == code {
			return true
		}
	}
	return false
}

// OrDefault collapses anything outside the enumeration to DefaultSize.
func (s SizeCode) OrDefault() SizeCode {
	if s.Valid() {
		return s
	}
	return DefaultSize
}

// sizeAliases folds numeric and extended spellings into the enumeration.
// Sizes beyond the ends collapse to the nearest member.
var sizeAliases = map[string]SizeCode{
	"2XL":  SizeXXL,
	"3XL":  SizeXXL,
	"4XL":  SizeXXL,
	"XXXL": SizeXXL,
	"2XS":  SizeXS,
	"XXS":  SizeXS,
}

// MatchSizeCode finds a size code inside free text. Matching is case
// insensitive and only counts whole alphanumeric tokens, so "SIZE" never
// yields S and "2XL" is XXL, not XL. When several codes appear the first one
// in declaration order wins.
func MatchSizeCode(text string) (SizeCode, bool) {
	text = strings.ToUpper(strings.TrimSpace(text))
	if text == "" {
		return "", false
	}
	tokens := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		if code, ok := sizeAliases[tok]; ok {
			tok = string(code)
		}
		seen[tok] = struct{}{}
	}
	for _, code := range sizeOrder {
		if _, ok := seen[string(code)]; ok {
			return code, true
		}
	}
	return "", false
}
