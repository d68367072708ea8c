package utils

import (
	"errors"
	"net/url"
	"path"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/net/idna"
)

var emojiURLRegex = regexp.MustCompile(`/emojis/(\d{15,21})`)

var trackingParams = []string{"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content", "fbclid", "gclid"}

var ErrUnsupportedScheme = errors.New("unsupported url scheme")

// NormalizeURL lower-cases and punycodes the host, strips credentials,
// fragments and tracking parameters. Bare hosts are assumed to be https.
func NormalizeURL(raw string) (string, string, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", "", err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", "", ErrUnsupportedScheme
	}

	host := strings.ToLower(parsed.Hostname())
	asciiHost, err := idna.ToASCII(host)
	if err == nil {
		host = asciiHost
	}

	if port := parsed.Port(); port != "" {
		parsed.Host = host + ":" + port
	} else {
		parsed.Host = host
	}
	parsed.Fragment = ""
	parsed.User = nil

	query := parsed.Query()
	for _, key := range trackingParams {
		query.Del(key)
	}
	parsed.RawQuery = normalizeQuery(query)

	return parsed.String(), host, nil
}

func normalizeQuery(values url.Values) string {
	if len(values) == 0 {
		return ""
	}
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	clean := url.Values{}
	for _, key := range keys {
		clean[key] = values[key]
	}
	return clean.Encode()
}

// EmojiIDFromURL pulls the emoji snowflake out of a Discord CDN link such as
// https://cdn.discordapp.com/emojis/123456789012345678.png.
func EmojiIDFromURL(raw string) (string, bool) {
	match := emojiURLRegex.FindStringSubmatch(raw)
	if match == nil {
		return "", false
	}
	return match[1], true
}

// FileNameFromURL returns the last path element of raw, or "" when there is none.
func FileNameFromURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	name := path.Base(parsed.Path)
	if name == "/" || name == "." {
		return ""
	}
	return name
}
