// Package device derives a display name for the device a refresh token was issued to.
package device

import (
	"strings"

	"github.com/mssola/useragent"
)

const unknownDevice = "Unknown Device"

// ParseUserAgent returns "<browser> on <platform>" for a User-Agent header.
func ParseUserAgent(userAgent string) string {
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		return unknownDevice
	}

	ua := useragent.New(userAgent)
	browser, _ := ua.Browser()
	if browser == "" {
		browser = "Unknown Browser"
	}

	platform := ua.OS()
	if p := ua.Platform(); p == "iPhone" || p == "iPad" {
		platform = p
	}
	if platform == "" {
		platform = ua.Platform()
	}
	if platform == "" {
		platform = "Unknown OS"
	}

	name := strings.Join(strings.Fields(browser+" on "+platform), " ")
	if len(name) > 255 {
		name = name[:255]
	}
	return name
}
