package wiki

import (
	"regexp"
	"strings"
)

// Policy rejects pages by their category labels.
type Policy struct {
	// VariantPrefix starts every language-variant category. Only
	// CanonicalVariant is allowed among them.
	VariantPrefix    string
	CanonicalVariant string
	// Foreign matches categories of German-language works.
	Foreign *regexp.Regexp
	// BiographyPrefixes start categories of author pages.
	BiographyPrefixes []string
}

// DefaultPolicy returns the category rules for the Slovene Wikisource.
func DefaultPolicy() Policy {
	return Policy{
		VariantPrefix:     "Besedila v ",
		CanonicalVariant:  "Besedila v slovenščini",
		Foreign:           regexp.MustCompile(`[Nn]emšk|[Nn]emšč`),
		BiographyPrefixes: []string{"Avtorji", "Rojeni", "Umrli"},
	}
}

// Check returns the first rule the categories violate, or Accepted.
func (p Policy) Check(categories []string) Reason {
	if len(categories) == 0 {
		return ReasonNoCategory
	}
	for _, c := range categories {
		if p.VariantPrefix != "" && strings.HasPrefix(c, p.VariantPrefix) && c != p.CanonicalVariant {
			return ReasonVariant
		}
		if p.Foreign != nil && p.Foreign.MatchString(c) {
			return ReasonForeign
		}
		for _, prefix := range p.BiographyPrefixes {
			if strings.HasPrefix(c, prefix) {
				return ReasonBiography
			}
		}
	}
	return Accepted
}
