package ssdp

import (
	"fmt"
	"strings"
)

// Headers maps SSDP header names, as sent, to trimmed values.
type Headers map[string]string

// Get returns the value of name, compared case-insensitively.
func (h Headers) Get(name string) string {
	if v, ok := h[name]; ok {
		return v
	}
	for k, v := range h {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// ParseHeaders splits an SSDP response into headers. Each line is split on
// its first colon; lines without one (the status line) and lines with an
// empty name are skipped. Later duplicates overwrite earlier ones.
func ParseHeaders(raw string) Headers {
	headers := make(Headers)
	for _, line := range strings.Split(raw, "\n") {
		name, value, ok := strings.Cut(strings.TrimRight(line, "\r"), ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers
}

// BuildSearchRequest returns an M-SEARCH probe for target.
func BuildSearchRequest(group, target string, mx int, userAgent string) []byte {
	var b strings.Builder
	b.WriteString("M-SEARCH * HTTP/1.1\r\n")
	fmt.Fprintf(&b, "HOST: %s\r\n", group)
	b.WriteString("MAN: \"ssdp:discover\"\r\n")
	fmt.Fprintf(&b, "MX: %d\r\n", mx)
	fmt.Fprintf(&b, "ST: %s\r\n", target)
	if userAgent != "" {
		fmt.Fprintf(&b, "USER-AGENT: %s\r\n", userAgent)
	}
	b.WriteString("\r\n")
	return []byte(b.String())
}
