package utils

import (
	"regexp"
	"strings"

	"github.com/xojoc/useragent"
)

// UserAgentInfo is a coarse classification of a user agent string
type UserAgentInfo struct {
	Browser string
	OS      string
	Mobile  bool
}

var browserRules = []struct {
	keyword string
	name    string
}{
	{"edg/", "Edge"},
	{"opr/", "Opera"},
	{"samsungbrowser/", "Samsung Internet"},
	{"firefox/", "Firefox"},
	{"fxios/", "Firefox"},
	{"crios/", "Chrome"},
	{"chrome/", "Chrome"},
	{"safari/", "Safari"},
	{"trident/", "IE"},
}

var versionPattern = regexp.MustCompile(`(?:android|os|mac os x) (\d+)`)

// BrowserBot is reported for crawlers and HTTP libraries
const BrowserBot = "Bot"

// ParseUserAgent classifies ua into browser family and OS. Versions are
// dropped so the result is safe to use as a metric label.
func ParseUserAgent(ua string) UserAgentInfo {
	info := UserAgentInfo{Browser: "Unknown", OS: "Unknown"}
	if ua == "" {
		return info
	}

	parsed := useragent.Parse(ua)
	if parsed != nil && (parsed.Type == useragent.Crawler || parsed.Type == useragent.Library) {
		info.Browser = BrowserBot
		return info
	}

	lower := strings.ToLower(ua)
	for _, b := range browserRules {
		if strings.Contains(lower, b.keyword) {
			info.Browser = b.name
			break
		}
	}

	switch {
	case strings.Contains(lower, "windows"):
		info.OS = "Windows"
	case strings.Contains(lower, "iphone"), strings.Contains(lower, "ipad"):
		info.OS = "iOS"
	case strings.Contains(lower, "mac os x"):
		info.OS = "macOS"
	case strings.Contains(lower, "android"):
		info.OS = "Android"
	case strings.Contains(lower, "linux"):
		info.OS = "Linux"
	}

	info.Mobile = strings.Contains(lower, "mobile") || info.OS == "iOS" || info.OS == "Android"
	if parsed != nil && (parsed.Mobile || parsed.Tablet) {
		info.Mobile = true
	}
	return info
}

// OSMajorVersion returns the major OS version found in ua, or "".
func OSMajorVersion(ua string) string {
	m := versionPattern.FindStringSubmatch(strings.ToLower(ua))
	if len(m) < 2 {
		return ""
	}
	return m[1]
}
