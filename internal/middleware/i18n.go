package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"golang.org/x/text/language"

	"tryon/internal/infra/geoip"
)

// CountryLookup resolves ISO country codes for an IP address.
type CountryLookup func(ip string) (string, error)

// RequestLocale is what I18N decided for a request.
type RequestLocale struct {
	Language language.Tag
	// Country is an upper-case ISO 3166 code, empty when unknown.
	Country string
}

type requestLocaleKey struct{}

var (
	messageLanguages = []language.Tag{language.English, language.German}
	languageMatcher  = language.NewMatcher(messageLanguages)
)

// countryHeaders are set by CDNs and load balancers in front of the API.
var countryHeaders = []string{"X-Country-Code", "CF-IPCountry", "X-Appengine-Country"}

// I18N picks the message language for each request: X-Locale, then
// Accept-Language, then the caller's country, then defaultLocale.
func I18N(defaultLocale string, lookup CountryLookup) func(http.Handler) http.Handler {
	fallback := matchLanguage(defaultLocale)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			loc := RequestLocale{Country: requestCountry(r, lookup)}
			loc.Language = requestLanguage(r, loc.Country, fallback)

			w.Header().Set("Content-Language", loc.Language.String())
			w.Header().Add("Vary", "Accept-Language")
			next.ServeHTTP(w, r.WithContext(WithLocale(r.Context(), loc)))
		})
	}
}

func requestLanguage(r *http.Request, country string, fallback language.Tag) language.Tag {
	if v := strings.TrimSpace(r.Header.Get("X-Locale")); v != "" {
		return matchLanguage(v)
	}
	if tags := acceptedLanguages(r.Header.Get("Accept-Language")); len(tags) > 0 {
		_, idx, _ := languageMatcher.Match(tags...)
		return messageLanguages[idx]
	}
	if country != "" {
		return matchLanguage(geoip.LocaleForCountry(country))
	}
	return fallback
}

// acceptedLanguages drops wildcards so "*" alone falls through to the
// country.
func acceptedLanguages(header string) []language.Tag {
	if strings.TrimSpace(header) == "" {
		return nil
	}
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil {
		return nil
	}
	out := tags[:0]
	for _, tag := range tags {
		if base, _ := tag.Base(); base.String() == "mul" || tag == language.Und {
			continue
		}
		out = append(out, tag)
	}
	return out
}

func matchLanguage(locale string) language.Tag {
	tag, err := language.Parse(strings.TrimSpace(locale))
	if err != nil {
		return language.English
	}
	_, idx, _ := languageMatcher.Match(tag)
	return messageLanguages[idx]
}

func requestCountry(r *http.Request, lookup CountryLookup) string {
	for _, key := range countryHeaders {
		if v := strings.TrimSpace(r.Header.Get(key)); len(v) == 2 {
			return strings.ToUpper(v)
		}
	}
	if lookup == nil {
		return ""
	}
	ip := remoteIP(r)
	if ip == "" {
		return ""
	}
	country, err := lookup(ip)
	if err != nil {
		return ""
	}
	return strings.ToUpper(strings.TrimSpace(country))
}

// remoteIP strips the port from RemoteAddr. chi's RealIP middleware runs
// first and has already applied forwarding headers.
func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if net.ParseIP(host) == nil {
		return ""
	}
	return host
}

// WithLocale stores loc in ctx.
func WithLocale(ctx context.Context, loc RequestLocale) context.Context {
	return context.WithValue(ctx, requestLocaleKey{}, loc)
}

// LocaleFromContext returns the locale stored by I18N. Requests that did not
// pass through it get English and no country.
func LocaleFromContext(ctx context.Context) RequestLocale {
	if v, ok := ctx.Value(requestLocaleKey{}).(RequestLocale); ok {
		return v
	}
	return RequestLocale{Language: language.English}
}
