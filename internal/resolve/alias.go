package resolve

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// defaultCompanyAliases maps brand or franchise names the catalog would
// otherwise resolve to the wrong company onto the production entity. Keys
// are normalized names; values must not themselves be keys.
var defaultCompanyAliases = map[string]string{
	"marvel":                    "marvel studios",
	"mcu":                       "marvel studios",
	"marvel cinematic universe": "marvel studios",
	"disney":                    "walt disney pictures",
	"star wars":                 "lucasfilm ltd.",
	"lucasfilm":                 "lucasfilm ltd.",
	"pixar":                     "pixar animation studios",
	"dc":                        "dc studios",
	"dceu":                      "dc studios",
	"ghibli":                    "studio ghibli",
	"dreamworks":                "dreamworks animation",
	"blumhouse":                 "blumhouse productions",
	"warner bros":               "warner bros. pictures",
	"warner brothers":           "warner bros. pictures",
	"universal":                 "universal pictures",
	"paramount":                 "paramount pictures",
	"sony":                      "sony pictures",
	"legendary":                 "legendary pictures",
	"a24 films":                 "a24",
}

// AliasTable normalizes ambiguous company names before they are resolved.
type AliasTable struct {
	aliases map[string]string
}

// NewAliasTable returns the built-in table extended with extra entries.
func NewAliasTable(extra map[string]string) *AliasTable {
	aliases := make(map[string]string, len(defaultCompanyAliases)+len(extra))
	for key, value := range defaultCompanyAliases {
		aliases[key] = value
	}
	for key, value := range extra {
		normalizedKey := NormalizeName(key)
		normalizedValue := NormalizeName(value)
		if normalizedKey == "" || normalizedValue == "" {
			continue
		}
		aliases[normalizedKey] = normalizedValue
	}
	return &AliasTable{aliases: aliases}
}

// Normalize returns the canonical name for a known alias and the trimmed
// input otherwise. Normalize(Normalize(x)) == Normalize(x).
func (a *AliasTable) Normalize(name string) string {
	trimmed := strings.TrimSpace(name)
	if a == nil {
		return trimmed
	}
	if canonical, ok := a.aliases[NormalizeName(trimmed)]; ok {
		return canonical
	}
	return trimmed
}

// NormalizeName folds a name for comparison: NFC, lower case, single spaces.
func NormalizeName(name string) string {
	folded := cases.Lower(language.Und).String(norm.NFC.String(name))
	return strings.Join(strings.Fields(folded), " ")
}
