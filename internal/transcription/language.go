package transcription

import (
	"strings"

	"github.com/abadojack/whatlanggo"
)

// supportedLanguages maps ISO 639-1 codes to their display names, shown to
// users alongside transcription results.
var supportedLanguages = map[string]string{
	"af": "Afrikaans",
	"ar": "العربية",
	"bg": "Български",
	"ca": "Català",
	"cs": "Čeština",
	"da": "Dansk",
	"de": "Deutsch",
	"el": "Ελληνικά",
	"en": "English",
	"es": "Español",
	"et": "Eesti",
	"fa": "فارسی",
	"fi": "Suomi",
	"fr": "Français",
	"he": "עברית",
	"hi": "हिन्दी",
	"hr": "Hrvatski",
	"hu": "Magyar",
	"id": "Indonesia",
	"is": "Íslenska",
	"it": "Italiano",
	"ja": "日本語",
	"km": "ខ្មែរ",
	"ko": "한국어",
	"lt": "Lietuvių",
	"lv": "Latviešu",
	"mk": "Македонски",
	"ms": "Melayu",
	"nl": "Nederlands",
	"no": "Norsk",
	"pl": "Polski",
	"pt": "Português",
	"ro": "Română",
	"ru": "Русский",
	"sk": "Slovenčina",
	"sl": "Slovenščina",
	"sr": "Српски",
	"sv": "Svenska",
	"sw": "Kiswahili",
	"ta": "தமிழ்",
	"th": "ไทย",
	"tl": "Tagalog",
	"tr": "Türkçe",
	"uk": "Українська",
	"ur": "اردو",
	"vi": "Tiếng Việt",
	"zh": "中文",
}

// LanguageName returns the display name for a language code, or the code
// itself for languages without a registered name.
func LanguageName(code string) string {
	if name, ok := supportedLanguages[code]; ok {
		return name
	}
	return code
}

// englishLanguageNames holds the English names of the supported languages,
// used where the reader is a model rather than the user.
var englishLanguageNames = map[string]string{
	"af": "Afrikaans",
	"ar": "Arabic",
	"bg": "Bulgarian",
	"ca": "Catalan",
	"cs": "Czech",
	"da": "Danish",
	"de": "German",
	"el": "Greek",
	"en": "English",
	"es": "Spanish",
	"et": "Estonian",
	"fa": "Persian",
	"fi": "Finnish",
	"fr": "French",
	"he": "Hebrew",
	"hi": "Hindi",
	"hr": "Croatian",
	"hu": "Hungarian",
	"id": "Indonesian",
	"is": "Icelandic",
	"it": "Italian",
	"ja": "Japanese",
	"km": "Khmer",
	"ko": "Korean",
	"lt": "Lithuanian",
	"lv": "Latvian",
	"mk": "Macedonian",
	"ms": "Malay",
	"nl": "Dutch",
	"no": "Norwegian",
	"pl": "Polish",
	"pt": "Portuguese",
	"ro": "Romanian",
	"ru": "Russian",
	"sk": "Slovak",
	"sl": "Slovenian",
	"sr": "Serbian",
	"sv": "Swedish",
	"sw": "Swahili",
	"ta": "Tamil",
	"th": "Thai",
	"tl": "Tagalog",
	"tr": "Turkish",
	"uk": "Ukrainian",
	"ur": "Urdu",
	"vi": "Vietnamese",
	"zh": "Chinese",
}

// EnglishLanguageName returns the English name for a language code, or the
// code itself when unknown. Prompts use English names because models
// follow them more reliably than native ones.
func EnglishLanguageName(code string) string {
	if name, ok := englishLanguageNames[code]; ok {
		return name
	}
	return code
}

// IsLanguageSupported reports whether the code has a registered display name.
func IsLanguageSupported(code string) bool {
	_, ok := supportedLanguages[code]
	return ok
}

// DetectByText identifies the language of a text sample, returning an ISO
// 639-1 code and a confidence in [0,1]. Returns "" when the text is too
// short to classify.
func DetectByText(text string) (string, float64) {
	if strings.TrimSpace(text) == "" {
		return "", 0
	}
	info := whatlanggo.Detect(text)
	code := info.Lang.Iso6391()
	if code == "" {
		return "", 0
	}
	return code, info.Confidence
}

// ChooseBestLanguage reconciles the decoder's language guess with the
// text-based detector. The decoder is usually the better source; the
// detector wins only when it is confident and the decoder abstained.
func ChooseBestLanguage(decoderLang, detectorLang string, detectorConfidence float64) string {
	if decoderLang != "" && decoderLang != "auto" {
		return decoderLang
	}
	if detectorConfidence > 0.7 {
		return detectorLang
	}
	if decoderLang != "auto" && decoderLang != "" {
		return decoderLang
	}
	return detectorLang
}

// khmerKeywords are romanized Khmer words and Cambodian place names that
// show up when the decoder transliterates Khmer speech instead of writing
// Khmer script. Their presence signals a misdetected language.
var khmerKeywords = []string{
	"bong", "avan", "kue", "vie", "mien", "dak", "chun", "neng",
	"phnom penh", "arkun", "chum reap suor", "som tos", "ot te",
	"siem reap", "battambang", "kampong", "susuday", "ksabay",
	"preah", "wat", "nak", "knhom", "srey", "pros", "chea", "thlai",
	"khmer", "cambodia",
}

// RefineLanguage corrects the common misdetections of romanized Khmer.
// The decoder tends to label such speech as Tagalog, Vietnamese, or
// English; keyword density decides whether to relabel it as Khmer.
func RefineLanguage(text, detected string) string {
	if text == "" || detected == "km" {
		return detected
	}

	lower := strings.ToLower(text)
	keywordCount := 0
	for _, kw := range khmerKeywords {
		if strings.Contains(lower, kw) {
			keywordCount++
		}
	}

	totalWords := len(strings.Fields(lower))
	if totalWords == 0 {
		return detected
	}

	switch detected {
	case "tl", "vi":
		if keywordCount > 0 {
			return "km"
		}
	case "en":
		if float64(keywordCount)/float64(totalWords) > 0.15 {
			return "km"
		}
		// A keyword in a very short clip is a strong signal on its own.
		if keywordCount >= 1 && totalWords <= 5 {
			return "km"
		}
	}
	return detected
}
