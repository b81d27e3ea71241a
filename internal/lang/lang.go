// Package lang holds the language codes the translation service accepts.
package lang

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/language"
)

// Auto asks the server to detect the source language.
const Auto = "auto"

// supported maps service language codes to display names. The set mirrors
// the service: the eleven official South African languages plus English,
// French and Portuguese.
var supported = map[string]string{
	"en":  "English",
	"af":  "Afrikaans",
	"zu":  "isiZulu",
	"xh":  "isiXhosa",
	"st":  "Sesotho",
	"tn":  "Setswana",
	"ss":  "siSwati",
	"ts":  "Xitsonga",
	"ve":  "Tshivenda",
	"nr":  "isiNdebele",
	"nso": "Sepedi",
	"fr":  "French",
	"pt":  "Portuguese",
}

// Normalize canonicalizes a user-supplied code ("EN", "en-GB", "Zu") to
// the service's base code. "auto" passes through for source languages.
func Normalize(code string) (string, error) {
	code = strings.TrimSpace(strings.ToLower(code))
	if code == "" {
		return "", fmt.Errorf("language code is empty")
	}
	if code == Auto {
		return Auto, nil
	}
	if _, ok := supported[code]; ok {
		return code, nil
	}

	tag, err := language.Parse(code)
	if err != nil {
		return "", fmt.Errorf("unrecognized language code %q", code)
	}
	base, _ := tag.Base()
	if _, ok := supported[base.String()]; !ok {
		return "", fmt.Errorf("unsupported language %q", code)
	}
	return base.String(), nil
}

// Name returns the display name for a supported code.
func Name(code string) string {
	if code == Auto {
		return "Auto-detect"
	}
	return supported[code]
}

// Codes lists the supported codes in stable order, without "auto".
func Codes() []string {
	codes := make([]string, 0, len(supported))
	for c := range supported {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}
