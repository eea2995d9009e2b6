// Package lang centralizes everything language-related: normalizing client
// language codes against the supported set, guessing a language from message
// content or from a phone country code, resolving a delivery timezone from a
// phone prefix, and the localized canned strings the server returns when it
// cannot (or must not) call the model.
//
// Precedence is fixed and must not be reordered: a language detected from
// message content is the strongest signal and, once stored on a conversation
// record, is never overwritten by a phone-prefix guess.
package lang

import (
	"strings"

	"golang.org/x/text/language"
)

// Default is the language used when no signal is available.
const Default = "en"

// supported is the closed set of languages the server localizes for. The
// matcher below maps arbitrary client tags onto this set.
var supported = []language.Tag{
	language.English, // en (first = fallback)
	language.French,
	language.Spanish,
	language.German,
	language.Italian,
	language.Portuguese,
	language.Dutch,
	language.Arabic,
}

var matcher = language.NewMatcher(supported)

// Normalize maps an arbitrary client-supplied language code ("fr-CA",
// "es_MX", "EN") onto one of the supported base codes. Unparseable or empty
// input yields the default.
func Normalize(code string) string {
	code = strings.TrimSpace(strings.ReplaceAll(code, "_", "-"))
	if code == "" {
		return Default
	}
	tag, err := language.Parse(code)
	if err != nil {
		return Default
	}
	_, idx, conf := matcher.Match(tag)
	if conf == language.No {
		return Default
	}
	base, _ := supported[idx].Base()
	return base.String()
}

// stopwords are high-frequency function words used to score a message's
// language. Short lists are enough: a single hit on a distinctive word
// ("merci", "gracias") usually decides it.
var stopwords = map[string][]string{
	"fr": {"bonjour", "merci", "je", "pas", "vous", "est", "avec", "pour", "une", "recette", "salut", "oui", "comment", "quoi"},
	"es": {"hola", "gracias", "que", "como", "para", "una", "receta", "por", "buenos", "dias", "quiero", "puedo"},
	"de": {"hallo", "danke", "ich", "nicht", "und", "das", "mit", "rezept", "bitte", "wie", "kann"},
	"it": {"ciao", "grazie", "non", "che", "per", "una", "ricetta", "come", "sono", "vorrei"},
	"pt": {"ola", "olá", "obrigado", "obrigada", "que", "como", "para", "uma", "receita", "nao", "não"},
	"nl": {"hallo", "dank", "ik", "niet", "het", "met", "recept", "hoe", "kan", "graag"},
	"en": {"hello", "thanks", "the", "what", "can", "with", "recipe", "please", "how", "want"},
}

// arabicThreshold is the minimum share of Arabic-script runes that flags a
// message as Arabic.
const arabicThreshold = 0.3

// DetectFromText inspects message content and returns (language, true) when
// a supported language scores at least two stopword hits, or when the text is
// predominantly Arabic script. It returns ("", false) when the signal is too
// weak to be sticky.
func DetectFromText(text string) (string, bool) {
	if lang, ok := detectArabic(text); ok {
		return lang, ok
	}

	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return "", false
	}
	wordSet := make(map[string]struct{}, len(words))
	for _, w := range words {
		wordSet[strings.Trim(w, ".,!?;:'\"()")] = struct{}{}
	}

	best, bestScore := "", 0
	for lang, list := range stopwords {
		score := 0
		for _, sw := range list {
			if _, ok := wordSet[sw]; ok {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = lang, score
		}
	}
	if bestScore >= 2 {
		return best, true
	}
	return "", false
}

func detectArabic(text string) (string, bool) {
	total, arabic := 0, 0
	for _, r := range text {
		if r == ' ' {
			continue
		}
		total++
		if r >= 0x0600 && r <= 0x06FF {
			arabic++
		}
	}
	if total > 0 && float64(arabic)/float64(total) >= arabicThreshold {
		return "ar", true
	}
	return "", false
}

// prefixLang maps country calling codes to a coarse language guess. This is
// deliberately weaker than content detection and never overrides it.
var prefixLang = []struct {
	prefix string
	lang   string
}{
	{"33", "fr"}, {"32", "fr"}, {"41", "fr"}, {"212", "fr"}, {"213", "fr"}, {"216", "fr"}, {"221", "fr"}, {"225", "fr"},
	{"34", "es"}, {"52", "es"}, {"54", "es"}, {"57", "es"}, {"56", "es"},
	{"49", "de"}, {"43", "de"},
	{"39", "it"},
	{"351", "pt"}, {"55", "pt"},
	{"31", "nl"},
	{"966", "ar"}, {"971", "ar"}, {"20", "ar"}, {"965", "ar"}, {"974", "ar"},
	{"1", "en"}, {"44", "en"}, {"61", "en"}, {"353", "en"}, {"91", "en"},
}

// GuessFromPhone returns a coarse language guess from a phone number's
// country calling code, or the default when the prefix is unknown. Longer
// prefixes win over shorter ones ("212" before "2…").
func GuessFromPhone(phone string) string {
	phone = strings.TrimLeft(phone, "+")
	best, bestLen := Default, 0
	for _, p := range prefixLang {
		if strings.HasPrefix(phone, p.prefix) && len(p.prefix) > bestLen {
			best, bestLen = p.lang, len(p.prefix)
		}
	}
	return best
}

// prefixZone maps country calling codes to a representative IANA timezone
// for the broadcast delivery gate. One zone per country is enough precision
// for a "don't message people at 3 AM" rule.
var prefixZone = []struct {
	prefix string
	zone   string
}{
	{"33", "Europe/Paris"}, {"32", "Europe/Brussels"}, {"41", "Europe/Zurich"},
	{"212", "Africa/Casablanca"}, {"213", "Africa/Algiers"}, {"216", "Africa/Tunis"},
	{"221", "Africa/Dakar"}, {"225", "Africa/Abidjan"},
	{"34", "Europe/Madrid"}, {"52", "America/Mexico_City"}, {"54", "America/Argentina/Buenos_Aires"},
	{"57", "America/Bogota"}, {"56", "America/Santiago"},
	{"49", "Europe/Berlin"}, {"43", "Europe/Vienna"}, {"39", "Europe/Rome"},
	{"351", "Europe/Lisbon"}, {"55", "America/Sao_Paulo"}, {"31", "Europe/Amsterdam"},
	{"966", "Asia/Riyadh"}, {"971", "Asia/Dubai"}, {"20", "Africa/Cairo"},
	{"965", "Asia/Kuwait"}, {"974", "Asia/Qatar"},
	{"44", "Europe/London"}, {"353", "Europe/Dublin"}, {"61", "Australia/Sydney"},
	{"91", "Asia/Kolkata"}, {"1", "America/New_York"},
}

// ZoneFromPhone resolves a representative IANA timezone name from a phone
// number's country calling code. Unknown prefixes default to UTC.
func ZoneFromPhone(phone string) string {
	phone = strings.TrimLeft(phone, "+")
	best, bestLen := "UTC", 0
	for _, p := range prefixZone {
		if strings.HasPrefix(phone, p.prefix) && len(p.prefix) > bestLen {
			best, bestLen = p.zone, len(p.prefix)
		}
	}
	return best
}
