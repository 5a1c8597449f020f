package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/text/language"
)

func TestRequestLanguage(t *testing.T) {
	tests := []struct {
		name     string
		headers  map[string]string
		country  string
		fallback language.Tag
		want     language.Tag
	}{
		{
			name:    "x-locale wins over everything",
			headers: map[string]string{"X-Locale": "DE", "Accept-Language": "en-US"},
			country: "US",
			want:    language.German,
		},
		{
			name:    "unsupported x-locale is english",
			headers: map[string]string{"X-Locale": "fr-FR"},
			country: "DE",
			want:    language.English,
		},
		{
			name:    "accept-language beats country",
			headers: map[string]string{"Accept-Language": "en-US,en;q=0.9"},
			country: "AT",
			want:    language.English,
		},
		{
			name:    "accept-language regional german",
			headers: map[string]string{"Accept-Language": "de-CH,en;q=0.8"},
			want:    language.German,
		},
		{
			name:    "accept-language weights",
			headers: map[string]string{"Accept-Language": "en;q=0.3,de;q=0.9"},
			want:    language.German,
		},
		{
			name:    "wildcard falls through to country",
			headers: map[string]string{"Accept-Language": "*"},
			country: "DE",
			want:    language.German,
		},
		{
			name:    "german speaking country",
			country: "LI",
			want:    language.German,
		},
		{
			name:     "other country",
			country:  "US",
			fallback: language.German,
			want:     language.English,
		},
		{
			name:     "configured fallback",
			fallback: language.German,
			want:     language.German,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			fallback := tc.fallback
			if fallback == language.Und {
				fallback = language.English
			}
			if got := requestLanguage(req, tc.country, fallback); got != tc.want {
				t.Fatalf("requestLanguage() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestRequestCountry(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		lookup  CountryLookup
		want    string
	}{
		{
			name:    "edge header precedence",
			headers: map[string]string{"X-Country-Code": "ch", "CF-IPCountry": "de"},
			want:    "CH",
		},
		{
			name:    "malformed header ignored",
			headers: map[string]string{"CF-IPCountry": "XX1"},
			lookup:  func(string) (string, error) { return "at", nil },
			want:    "AT",
		},
		{
			name: "lookup gets the bare ip",
			lookup: func(ip string) (string, error) {
				if ip != "203.0.113.4" {
					return "", errors.New("unexpected ip " + ip)
				}
				return "li", nil
			},
			want: "LI",
		},
		{
			name:   "lookup error",
			lookup: func(string) (string, error) { return "", errors.New("boom") },
			want:   "",
		},
		{
			name:   "unparseable remote addr",
			remote: "not-an-ip",
			lookup: func(string) (string, error) { return "DE", nil },
			want:   "",
		},
		{
			name: "no lookup configured",
			want: "",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "203.0.113.4:80"
			if tc.remote != "" {
				req.RemoteAddr = tc.remote
			}
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			if got := requestCountry(req, tc.lookup); got != tc.want {
				t.Fatalf("requestCountry() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestI18NStoresLocale(t *testing.T) {
	var got RequestLocale
	h := I18N("en", func(string) (string, error) { return "at", nil })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = LocaleFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.7:5555"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got.Language != language.German || got.Country != "AT" {
		t.Fatalf("locale = %+v", got)
	}
	if rec.Header().Get("Content-Language") != "de" {
		t.Fatalf("Content-Language = %q", rec.Header().Get("Content-Language"))
	}
	if rec.Header().Get("Vary") != "Accept-Language" {
		t.Fatalf("Vary = %q", rec.Header().Get("Vary"))
	}
}

func TestI18NDefaultLocale(t *testing.T) {
	var got RequestLocale
	h := I18N("de-DE", nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = LocaleFromContext(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if got.Language != language.German || got.Country != "" {
		t.Fatalf("locale = %+v", got)
	}
}

func TestLocaleFromContext(t *testing.T) {
	ctx := context.Background()
	if got := LocaleFromContext(ctx); got.Language != language.English || got.Country != "" {
		t.Fatalf("LocaleFromContext() default = %+v", got)
	}
	ctx = WithLocale(ctx, RequestLocale{Language: language.German, Country: "CH"})
	if got := LocaleFromContext(ctx); got.Language != language.German || got.Country != "CH" {
		t.Fatalf("LocaleFromContext() = %+v", got)
	}
}
