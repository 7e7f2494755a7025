package languages

import (
	"fmt"
	"strings"

	"github.com/sahilm/fuzzy"
)

// Language is a target language offered by the translation and camera services.
type Language struct {
	Code string `json:"code" yaml:"code"`
	Name string `json:"name" yaml:"name"`
}

const (
	// DefaultTranslation is preselected for text translation.
	DefaultTranslation = "ta"
	// DefaultCamera is preselected for the live camera session.
	DefaultCamera = "en"
)

var supported = []Language{
	{"ta", "Tamil"},
	{"hi", "Hindi"},
	{"en", "English"},
	{"fr", "French"},
	{"es", "Spanish"},
	{"de", "German"},
	{"ar", "Arabic"},
	{"zh", "Chinese"},
	{"ja", "Japanese"},
}

// All returns the supported languages in menu order.
func All() []Language {
	out := make([]Language, len(supported))
	copy(out, supported)
	return out
}

// Lookup finds a language by code, case-insensitively.
func Lookup(code string) (Language, bool) {
	code = strings.ToLower(strings.TrimSpace(code))
	for _, l := range supported {
		if l.Code == code {
			return l, true
		}
	}
	return Language{}, false
}

// Validate returns the canonical code or an error naming the valid ones.
func Validate(code string) (string, error) {
	l, ok := Lookup(code)
	if !ok {
		codes := make([]string, 0, len(supported))
		for _, s := range supported {
			codes = append(codes, s.Code)
		}
		return "", fmt.Errorf("unsupported language %q (supported: %s)", code, strings.Join(codes, ", "))
	}
	return l.Code, nil
}

// Resolve accepts a code, an English name, or an abbreviation of a name
// ("tam", "jpn") and returns the canonical code. Exact matches win over
// fuzzy ones.
func Resolve(input string) (string, error) {
	if l, ok := Lookup(input); ok {
		return l.Code, nil
	}
	query := strings.TrimSpace(input)
	names := make([]string, len(supported))
	for i, l := range supported {
		if strings.EqualFold(l.Name, query) {
			return l.Code, nil
		}
		names[i] = l.Name
	}
	if query != "" {
		if matches := fuzzy.Find(query, names); len(matches) > 0 {
			return supported[matches[0].Index].Code, nil
		}
	}
	return Validate(input)
}
