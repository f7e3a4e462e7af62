package ssdp

import (
	"strings"
	"testing"
)

const sampleResponse = "HTTP/1.1 200 OK\r\n" +
	"CACHE-CONTROL: max-age=1800\r\n" +
	"DATE: Sun, 18 Oct 2026 10:00:00 GMT\r\n" +
	"EXT:\r\n" +
	"LOCATION: http://192.168.1.40:1488/f6b7a0c4-6a3e-4f0d-9f4c-1d5c9e5b3a1e/description.xml\r\n" +
	"SERVER: WebOS/4.1.0 UPnP/1.0 webOSTV/1.0\r\n" +
	"ST: urn:lge-com:service:webos-second-screen:1\r\n" +
	"USN: uuid:f6b7a0c4-6a3e-4f0d-9f4c-1d5c9e5b3a1e::urn:lge-com:service:webos-second-screen:1\r\n" +
	"\r\n"

func TestParseHeaders(t *testing.T) {
	h := ParseHeaders(sampleResponse)

	tests := []struct {
		name string
		want string
	}{
		{"LOCATION", "http://192.168.1.40:1488/f6b7a0c4-6a3e-4f0d-9f4c-1d5c9e5b3a1e/description.xml"},
		{"Location", "http://192.168.1.40:1488/f6b7a0c4-6a3e-4f0d-9f4c-1d5c9e5b3a1e/description.xml"},
		{"location", "http://192.168.1.40:1488/f6b7a0c4-6a3e-4f0d-9f4c-1d5c9e5b3a1e/description.xml"},
		{"st", "urn:lge-com:service:webos-second-screen:1"},
		{"DATE", "Sun, 18 Oct 2026 10:00:00 GMT"},
		{"EXT", ""},
		{"missing", ""},
	}
	for _, tt := range tests {
		if got := h.Get(tt.name); got != tt.want {
			t.Errorf("Get(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
	if _, ok := h["HTTP/1.1 200 OK"]; ok {
		t.Error("status line should not become a header")
	}
}

func TestParseHeaders_EdgeCases(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		key   string
		want  string
		count int
	}{
		{"bare newlines", "A: 1\nB: 2\n", "B", "2", 2},
		{"value with colons", "Location: http://h:1/x\r\n", "location", "http://h:1/x", 1},
		{"empty name skipped", ": nothing\r\nX: y\r\n", "X", "y", 1},
		{"later duplicate wins", "X: 1\r\nX: 2\r\n", "X", "2", 1},
		{"padding trimmed", "  Key  :   value  \r\n", "key", "value", 1},
		{"empty input", "", "x", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := ParseHeaders(tt.raw)
			if got := h.Get(tt.key); got != tt.want {
				t.Errorf("Get(%q) = %q, want %q", tt.key, got, tt.want)
			}
			if len(h) != tt.count {
				t.Errorf("len = %d, want %d (%v)", len(h), tt.count, h)
			}
		})
	}
}

func TestBuildSearchRequest(t *testing.T) {
	got := string(BuildSearchRequest(DefaultMulticastAddr, DefaultSearchTarget, DefaultMX, DefaultUserAgent))

	want := "M-SEARCH * HTTP/1.1\r\n" +
		"HOST: 239.255.255.250:1900\r\n" +
		"MAN: \"ssdp:discover\"\r\n" +
		"MX: 5\r\n" +
		"ST: urn:lge-com:service:webos-second-screen:1\r\n" +
		"USER-AGENT: iOS/5.0 UDAP/2.0 iPhone/4\r\n" +
		"\r\n"
	if got != want {
		t.Errorf("BuildSearchRequest() =\n%q\nwant\n%q", got, want)
	}

	noAgent := string(BuildSearchRequest(DefaultMulticastAddr, "ssdp:all", 1, ""))
	if strings.Contains(noAgent, "USER-AGENT") {
		t.Error("empty user agent should be omitted")
	}
	if h := ParseHeaders(noAgent); h.Get("ST") != "ssdp:all" || h.Get("MX") != "1" {
		t.Errorf("probe headers = %v", h)
	}
}
