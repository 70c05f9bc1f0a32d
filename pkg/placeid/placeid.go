// Package placeid resolves the store identifier used by the mobile
// storefront from share links, place URLs and page markup.
package placeid

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/jmylchreest/menuscrape/internal/logger"
	"github.com/jmylchreest/menuscrape/pkg/fetcher"
)

var (
	// ErrInvalidURL is returned for URLs outside the Naver domains.
	ErrInvalidURL = errors.New("not a naver place url")
	// ErrNotFound is returned when no store id could be located.
	ErrNotFound = errors.New("store id not found")
)

// Domains accepted by FromURL and Resolve, subdomains included.
var Domains = []string{"naver.com", "naver.me"}

var (
	idRe = regexp.MustCompile(`^\d+$`)

	pathPatterns = []*regexp.Regexp{
		regexp.MustCompile(`/restaurant/(\d+)`),
		regexp.MustCompile(`/place/(\d+)`),
	}

	htmlPatterns = []*regexp.Regexp{
		regexp.MustCompile(`"placeId"\s*:\s*"(\d+)"`),
		regexp.MustCompile(`data-place-id\s*=\s*"(\d+)"`),
		regexp.MustCompile(`/restaurant/(\d+)`),
		regexp.MustCompile(`/place/(\d+)`),
	}
)

// IsID reports whether s is already a bare store id.
func IsID(s string) bool {
	return idRe.MatchString(strings.TrimSpace(s))
}

// StandardURL returns the canonical place URL of a store.
func StandardURL(id string) string {
	return "https://smartplace.naver.com/restaurant/" + id
}

// Valid reports whether raw is an absolute URL on a Naver domain.
func Valid(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, d := range Domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// FromURL extracts the store id from the path of a place URL. Short links
// carry no id and return ErrNotFound.
func FromURL(raw string) (string, error) {
	if !Valid(raw) {
		return "", fmt.Errorf("%w: %s", ErrInvalidURL, raw)
	}
	u, _ := url.Parse(strings.TrimSpace(raw))

	// map links keep the place path in the fragment
	for _, path := range []string{u.Path, u.Fragment} {
		for _, re := range pathPatterns {
			if m := re.FindStringSubmatch(path); m != nil {
				return m[1], nil
			}
		}
	}
	return "", ErrNotFound
}

// FromHTML extracts the store id from page markup.
func FromHTML(html string) (string, error) {
	for _, re := range htmlPatterns {
		if m := re.FindStringSubmatch(html); m != nil {
			return m[1], nil
		}
	}
	return "", ErrNotFound
}

// Resolve returns the store id for a bare id, a place URL or a short link.
// Short links are followed through f and the landing URL, then its
// markup, are searched.
func Resolve(ctx context.Context, f fetcher.Fetcher, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if IsID(raw) {
		return raw, nil
	}

	id, err := FromURL(raw)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return "", err
	}
	if f == nil {
		return "", fmt.Errorf("%s: %w", raw, ErrNotFound)
	}

	logger.Debug("following link to resolve store id", "url", raw)
	content, err := f.Fetch(ctx, raw, fetcher.Options{})
	if err != nil {
		return "", fmt.Errorf("follow %s: %w", raw, err)
	}
	if content.URL != "" && Valid(content.URL) {
		if id, err := FromURL(content.URL); err == nil {
			return id, nil
		}
	}
	if id, err := FromHTML(content.HTML); err == nil {
		return id, nil
	}
	return "", fmt.Errorf("%s: %w", raw, ErrNotFound)
}
