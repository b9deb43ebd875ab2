package languages

import "strings"

// Code is an XTTS v2 language identifier as passed to the model.
type Code string

// Default is used whenever a request names no language or an unsupported one.
const Default Code = "en"

// Language pairs a supported code with its display name.
type Language struct {
	Code Code   `json:"code"`
	Name string `json:"name"`
}

var supported = []Language{
	{Code: "en", Name: "English"},
	{Code: "es", Name: "Spanish"},
	{Code: "fr", Name: "French"},
	{Code: "de", Name: "German"},
	{Code: "it", Name: "Italian"},
	{Code: "pt", Name: "Portuguese"},
	{Code: "pl", Name: "Polish"},
	{Code: "tr", Name: "Turkish"},
	{Code: "ru", Name: "Russian"},
	{Code: "nl", Name: "Dutch"},
	{Code: "cs", Name: "Czech"},
	{Code: "ar", Name: "Arabic"},
	{Code: "zh-cn", Name: "Chinese (Simplified)"},
	{Code: "ja", Name: "Japanese"},
	{Code: "hu", Name: "Hungarian"},
	{Code: "ko", Name: "Korean"},
	{Code: "hi", Name: "Hindi"},
}

var (
	byCode  = make(map[Code]Language, len(supported))
	aliases = map[string]Code{
		"zh":      "zh-cn",
		"zh_cn":   "zh-cn",
		"zh-hans": "zh-cn",
		"pt-br":   "pt",
		"pt_br":   "pt",
		"en-us":   "en",
		"en_us":   "en",
		"en-gb":   "en",
		"en_gb":   "en",
	}
)

func init() {
	for _, l := range supported {
		byCode[l.Code] = l
	}
}

// List returns the supported languages in display order.
func List() []Language {
	out := make([]Language, len(supported))
	copy(out, supported)
	return out
}

// Lookup reports whether code (after normalization) is supported.
func Lookup(code string) (Language, bool) {
	l, ok := byCode[normalize(code)]
	return l, ok
}

// Resolve maps a requested code onto a supported one. Unsupported or empty
// codes resolve to fallback (or Default when fallback itself is unsupported);
// the bool reports whether the requested code was honoured.
func Resolve(code string, fallback Code) (Code, bool) {
	if l, ok := byCode[normalize(code)]; ok {
		return l.Code, true
	}
	if _, ok := byCode[fallback]; ok {
		return fallback, false
	}
	return Default, false
}

func normalize(code string) Code {
	c := strings.ToLower(strings.TrimSpace(code))
	if alias, ok := aliases[c]; ok {
		return alias
	}
	return Code(c)
}
