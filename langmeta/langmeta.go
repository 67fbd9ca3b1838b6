// Package langmeta maps language codes to the English language names used
// in localization prompts and output file names.
package langmeta

import "strings"

// Registry contains English names for common language codes.
// Locale variants are resolved in Resolve() via normalization and base fallback.
var Registry = map[string]string{
	"af":    "Afrikaans",
	"ar":    "Arabic",
	"bg":    "Bulgarian",
	"bn":    "Bengali",
	"ca":    "Catalan",
	"cs":    "Czech",
	"da":    "Danish",
	"de":    "German",
	"de-AT": "Austrian German",
	"de-CH": "Swiss German",
	"el":    "Greek",
	"en":    "English",
	"en-GB": "British English",
	"en-IN": "Indian English",
	"en-US": "American English",
	"es":    "Spanish",
	"es-MX": "Mexican Spanish",
	"et":    "Estonian",
	"fa":    "Persian",
	"fi":    "Finnish",
	"fr":    "French",
	"fr-CA": "Canadian French",
	"gu":    "Gujarati",
	"he":    "Hebrew",
	"hi":    "Hindi",
	"hr":    "Croatian",
	"hu":    "Hungarian",
	"id":    "Indonesian",
	"it":    "Italian",
	"ja":    "Japanese",
	"kk":    "Kazakh",
	"kn":    "Kannada",
	"ko":    "Korean",
	"lt":    "Lithuanian",
	"lv":    "Latvian",
	"ml":    "Malayalam",
	"mr":    "Marathi",
	"ms":    "Malay",
	"nb":    "Norwegian Bokmål",
	"nl":    "Dutch",
	"pa":    "Punjabi",
	"pl":    "Polish",
	"pt":    "Portuguese",
	"pt-BR": "Brazilian Portuguese",
	"pt-PT": "European Portuguese",
	"ro":    "Romanian",
	"ru":    "Russian",
	"sk":    "Slovak",
	"sl":    "Slovenian",
	"sr":    "Serbian",
	"sv":    "Swedish",
	"sw":    "Swahili",
	"ta":    "Tamil",
	"te":    "Telugu",
	"th":    "Thai",
	"tr":    "Turkish",
	"uk":    "Ukrainian",
	"ur":    "Urdu",
	"vi":    "Vietnamese",
	"zh":    "Chinese",
	"zh-CN": "Simplified Chinese",
	"zh-TW": "Traditional Chinese",
}

func canonicalize(lang string) string {
	normalized := strings.ReplaceAll(strings.TrimSpace(lang), "_", "-")
	if normalized == "" {
		return ""
	}
	parts := strings.Split(normalized, "-")
	parts[0] = strings.ToLower(parts[0])
	if len(parts) >= 2 {
		parts[1] = strings.ToUpper(parts[1])
	}
	return strings.Join(parts, "-")
}

// Resolve returns the English name for a language code, supporting variants
// like pt_BR, pt-BR and locale fallbacks. Anything that is not a known code
// (for example "French" typed by a user) is returned trimmed but otherwise
// unchanged.
func Resolve(lang string) string {
	trimmed := strings.TrimSpace(lang)
	if name, ok := Registry[trimmed]; ok {
		return name
	}
	normalized := canonicalize(trimmed)
	if name, ok := Registry[normalized]; ok {
		return name
	}
	if parts := strings.SplitN(normalized, "-", 2); len(parts) == 2 && len(parts[0]) <= 3 {
		if name, ok := Registry[parts[0]]; ok {
			return name
		}
	}
	return trimmed
}
