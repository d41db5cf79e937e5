package extract

import (
	"strings"

	"github.com/pemistahl/lingua-go"
)

// minDetectRunes is the shortest text worth running detection on.
const minDetectRunes = 40

// detectSample caps how much text is handed to the detector.
const detectSample = 2000

// DefaultLanguages are the languages the detector distinguishes between.
var DefaultLanguages = []lingua.Language{
	lingua.English,
	lingua.Spanish,
	lingua.Portuguese,
	lingua.French,
	lingua.German,
	lingua.Italian,
}

// LanguageDetector tags page text with an ISO 639-1 code.
type LanguageDetector struct {
	detector lingua.LanguageDetector
}

// NewLanguageDetector builds a detector for languages, or DefaultLanguages
// when none are given. Building loads language models and is slow, so one
// detector is shared for the whole run.
func NewLanguageDetector(languages ...lingua.Language) *LanguageDetector {
	if len(languages) == 0 {
		languages = DefaultLanguages
	}
	return &LanguageDetector{
		detector: lingua.NewLanguageDetectorBuilder().
			FromLanguages(languages...).
			WithLowAccuracyMode().
			Build(),
	}
}

// Detect returns a lower-case ISO 639-1 code, or "" when the text is too
// short or the language is not reliably identified.
func (d *LanguageDetector) Detect(text string) string {
	if d == nil {
		return ""
	}
	runes := []rune(text)
	if len(runes) < minDetectRunes {
		return ""
	}
	if len(runes) > detectSample {
		runes = runes[:detectSample]
	}
	lang, ok := d.detector.DetectLanguageOf(string(runes))
	if !ok {
		return ""
	}
	return strings.ToLower(lang.IsoCode639_1().String())
}
