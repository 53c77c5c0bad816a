package device

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseUserAgent(t *testing.T) {
	tests := []struct {
		name      string
		userAgent string
		contains  []string
	}{
		{
			name:      "android app webview",
			userAgent: "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Mobile Safari/537.36",
			contains:  []string{"Chrome", "Android"},
		},
		{
			name:      "iphone shows the handset",
			userAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1",
			contains:  []string{" on iPhone"},
		},
		{
			name:      "desktop firefox",
			userAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
			contains:  []string{"Firefox", " on "},
		},
		{
			name:      "http client library",
			userAgent: "Dart/3.3 (dart:io)",
			contains:  []string{" on "},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseUserAgent(tt.userAgent)
			for _, want := range tt.contains {
				assert.Contains(t, got, want)
			}
			assert.Equal(t, strings.Join(strings.Fields(got), " "), got, "whitespace is collapsed")
		})
	}
}

func TestParseUserAgentEdges(t *testing.T) {
	assert.Equal(t, unknownDevice, ParseUserAgent(""))
	assert.Equal(t, unknownDevice, ParseUserAgent(" \t "))
	assert.LessOrEqual(t, len(ParseUserAgent("Mozilla/5.0 ("+strings.Repeat("x", 600)+")")), 255)
}
