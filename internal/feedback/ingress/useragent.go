package ingress

import (
	"regexp"
	"strings"
)

const unknown = "Unknown"

var (
	devicePattern  = regexp.MustCompile(`(?i)(iPad|iPhone|Android|Windows Phone|Windows NT|Linux|Macintosh|Windows)`)
	browserPattern = regexp.MustCompile(`(?i)(MSIE|Trident|Edge|Chrome|Firefox|Safari)(?:/([\d\.]+))?`)

	mobilePattern  = regexp.MustCompile(`(?i)(iPhone|Android.*Mobile|Windows Phone)`)
	tabletPattern  = regexp.MustCompile(`(?i)(iPad|Android|Tablet)`)
	desktopPattern = regexp.MustCompile(`(?i)(Windows NT|Macintosh|Linux)`)
)

// DetectDeviceAndBrowser returns the leftmost device token and the leftmost
// browser token (with its version when present) found in the user agent.
// Either is "Unknown" when nothing matches.
func DetectDeviceAndBrowser(userAgent string) (device, browser string) {
	device, browser = unknown, unknown
	if strings.TrimSpace(userAgent) == "" {
		return device, browser
	}
	if m := devicePattern.FindString(userAgent); m != "" {
		device = m
	}
	if m := browserPattern.FindString(userAgent); m != "" {
		browser = m
	}
	return device, browser
}

// ClassifyDevice buckets a user agent into Mobile, Tablet, Desktop or Unknown.
// Mobile is checked first, so any Android left for the tablet check has no
// "Mobile" after it.
func ClassifyDevice(userAgent string) string {
	switch {
	case strings.TrimSpace(userAgent) == "":
		return unknown
	case mobilePattern.MatchString(userAgent):
		return "Mobile"
	case tabletPattern.MatchString(userAgent):
		return "Tablet"
	case desktopPattern.MatchString(userAgent):
		return "Desktop"
	default:
		return unknown
	}
}
