package httpapi

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/riskibarqy/fantasy-contest/internal/usecase"
)

// RequireGeoCompliance blocks real-money routes for embargoed regions.
// The country comes from edge headers, so the gate is only as good as
// the proxy in front of it. An empty blocklist disables the gate.
func RequireGeoCompliance(blockedCountries []string, next http.Handler) http.Handler {
	blocked := make(map[string]struct{}, len(blockedCountries))
	for _, raw := range blockedCountries {
		code := normalizeCountry(raw)
		if code == "" {
			continue
		}
		blocked[code] = struct{}{}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := startSpan(r.Context(), "httpapi.RequireGeoCompliance")
		defer span.End()

		if len(blocked) > 0 {
			country := resolveCountryCode(ctx, r)
			if _, found := blocked[country]; found {
				writeError(ctx, w, fmt.Errorf("%w: paid contests are not available in region %s", usecase.ErrForbidden, country))
				return
			}
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func resolveClientIP(ctx context.Context, r *http.Request) string {
	_ = ctx

	candidates := []string{
		r.Header.Get("Fly-Client-IP"),
		r.Header.Get("X-Forwarded-For"),
		r.Header.Get("X-Real-IP"),
		r.RemoteAddr,
	}

	for _, candidate := range candidates {
		if ip := normalizeIP(candidate); ip != "" {
			return ip
		}
	}

	return ""
}

func resolveCountryCode(ctx context.Context, r *http.Request) string {
	_ = ctx

	candidates := []string{
		r.Header.Get("Fly-Client-Country"),
		r.Header.Get("CF-IPCountry"),
		r.Header.Get("X-Vercel-IP-Country"),
		r.Header.Get("X-AppEngine-Country"),
		r.Header.Get("CloudFront-Viewer-Country"),
	}

	for _, candidate := range candidates {
		code := normalizeCountry(candidate)
		if code != "" {
			return code
		}
	}

	return "ZZ"
}

func normalizeIP(raw string) string {
	value := strings.TrimSpace(raw)
	if value == "" {
		return ""
	}
	if strings.Contains(value, ",") {
		value = strings.TrimSpace(strings.Split(value, ",")[0])
	}

	if host, _, err := net.SplitHostPort(value); err == nil {
		value = strings.TrimSpace(host)
	}

	parsed := net.ParseIP(value)
	if parsed == nil {
		return ""
	}
	return parsed.String()
}

func normalizeCountry(raw string) string {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if len(code) != 2 {
		return ""
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return ""
		}
	}
	return code
}
