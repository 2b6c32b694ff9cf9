package middleware

import (
	"context"
	"net/http"

	"github.com/ConnorEMcclanahan/PhillipsWall-sub000/internal/utils"
)

type ctxKey int

const localeKey ctxKey = 1

// LangCookie remembers the display language chosen with the wall's toggle.
const LangCookie = "wall_lang"

// Locale resolves the display language for a request. An explicit ?lang= is
// remembered in LangCookie so the display's follow-up polls keep it; without
// one the cookie wins over Accept-Language.
func Locale(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		explicit := r.URL.Query().Get("lang")
		if explicit == "" {
			if c, err := r.Cookie(LangCookie); err == nil {
				explicit = c.Value
			}
		}
		locale := utils.DetermineLocale(explicit, r.Header.Get("Accept-Language"), utils.SupportedLocales, "en")
		if q := r.URL.Query().Get("lang"); q != "" && q == locale {
			http.SetCookie(w, &http.Cookie{Name: LangCookie, Value: locale, Path: "/", SameSite: http.SameSiteLaxMode})
		}
		w.Header().Set("Content-Language", locale)
		w.Header().Add("Vary", "Accept-Language")
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), localeKey, locale)))
	})
}

// LocaleFromContext returns the language picked by Locale, "en" outside it.
func LocaleFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(localeKey).(string); ok {
		return s
	}
	return "en"
}
