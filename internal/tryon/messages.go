package tryon

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

var supportedLanguages = []language.Tag{language.English, language.German}

var languageMatcher = language.NewMatcher(supportedLanguages)

var messageCatalog = buildCatalog()

func buildCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	entries := map[Kind][2]string{
		KindMissingCredential: {
			"The try-on service is not configured. Please contact support.",
			"Die Anprobe ist nicht eingerichtet. Bitte wende dich an den Support.",
		},
		KindPayloadTooLarge: {
			"The photo is too large or could not be processed. Please try a smaller image.",
			"Das Foto ist zu groß oder konnte nicht verarbeitet werden. Bitte versuche ein kleineres Bild.",
		},
		KindSafetyRejected: {
			"This photo could not be used for a try-on. Please choose a different photo.",
			"Dieses Foto kann für die Anprobe nicht verwendet werden. Bitte wähle ein anderes Foto.",
		},
		KindEmptyResult: {
			"No try-on image was generated. Please try again.",
			"Es wurde kein Anprobe-Bild erzeugt. Bitte versuche es erneut.",
		},
		KindTransientProviderFault: {
			"The try-on service is temporarily unavailable. Please try again in a moment.",
			"Die Anprobe ist vorübergehend nicht verfügbar. Bitte versuche es gleich noch einmal.",
		},
		KindUnknown: {
			"Something went wrong: %s",
			"Etwas ist schiefgelaufen: %s",
		},
	}
	for kind, texts := range entries {
		_ = b.SetString(language.English, string(kind), texts[0])
		_ = b.SetString(language.German, string(kind), texts[1])
	}
	return b
}

// MatchLanguage resolves a locale string such as "de-AT" to one of the
// supported message languages. Unknown locales fall back to English.
func MatchLanguage(locale string) language.Tag {
	tag, err := language.Parse(strings.TrimSpace(locale))
	if err != nil {
		return language.English
	}
	_, idx, _ := languageMatcher.Match(tag)
	return supportedLanguages[idx]
}

func localize(tag language.Tag, kind Kind, detail string) string {
	_, idx, _ := languageMatcher.Match(tag)
	p := message.NewPrinter(supportedLanguages[idx], message.Catalog(messageCatalog))
	if kind == KindUnknown {
		if detail == "" {
			detail = "-"
		}
		return p.Sprintf(string(kind), detail)
	}
	if _, ok := kindSet[kind]; !ok {
		return p.Sprintf(string(KindUnknown), string(kind))
	}
	return p.Sprintf(string(kind))
}

var kindSet = map[Kind]struct{}{
	KindMissingCredential:      {},
	KindPayloadTooLarge:        {},
	KindSafetyRejected:         {},
	KindEmptyResult:            {},
	KindTransientProviderFault: {},
	KindUnknown:                {},
}
