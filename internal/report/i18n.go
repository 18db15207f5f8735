package report

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Language selects the strings a rendered report uses.
type Language string

// Supported report languages.
const (
	LangEnglish Language = "en"
	LangTurkish Language = "tr"
)

// ErrUnsupportedLanguage flags a language code outside the supported set.
var ErrUnsupportedLanguage = errors.New("report: unsupported language")

//go:embed en.json tr.json
var localeFS embed.FS

// catalogs holds one key/string table per supported language, loaded from
// the embedded locale documents.
var catalogs = map[Language]map[string]string{
	LangEnglish: loadCatalog("en.json"),
	LangTurkish: loadCatalog("tr.json"),
}

func loadCatalog(file string) map[string]string {
	raw, err := localeFS.ReadFile(file)
	if err != nil {
		panic(fmt.Sprintf("report: locale %s: %v", file, err))
	}
	table := map[string]string{}
	if err := json.Unmarshal(raw, &table); err != nil {
		panic(fmt.Sprintf("report: locale %s: %v", file, err))
	}
	return table
}

// Translator resolves report strings in one language. A key missing from the
// active table falls back to English, then to the key itself so a gap stays
// visible in the rendered output instead of going blank.
type Translator struct {
	lang Language
}

// NewTranslator returns a translator for lang. Unknown languages render in
// English.
func NewTranslator(lang Language) Translator {
	if _, ok := catalogs[lang]; !ok {
		lang = LangEnglish
	}
	return Translator{lang: lang}
}

// Lang reports the language the translator resolves to.
func (t Translator) Lang() Language { return t.lang }

// T resolves one string key.
func (t Translator) T(key string) string {
	if s, ok := catalogs[t.lang][key]; ok {
		return s
	}
	if s, ok := catalogs[LangEnglish][key]; ok {
		return s
	}
	return key
}

// ParseLanguage maps a request or flag value to a supported Language. The
// empty string selects English.
func ParseLanguage(value string) (Language, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "en", "en-us", "en-gb", "english":
		return LangEnglish, nil
	case "tr", "tr-tr", "turkish", "türkçe", "turkce":
		return LangTurkish, nil
	}
	return LangEnglish, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, value)
}
