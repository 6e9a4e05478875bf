// Package device turns User-Agent strings into compact client labels.
// The label travels with every emitted event, so it favors readability
// over completeness: "Chrome on Intel Mac OS X", not the raw UA string.
package device

import (
	"github.com/mssola/useragent"
)

// UnknownDevice is the label used when the User-Agent is missing or
// unparseable.
const UnknownDevice = "Unknown Device"

// ParseUserAgent produces a "<browser> on <os>" label from a raw
// User-Agent header. Missing pieces degrade gracefully; the result is
// never empty.
func ParseUserAgent(raw string) string {
	if raw == "" {
		return UnknownDevice
	}

	ua := useragent.New(raw)
	browser, _ := ua.Browser()
	osName := ua.OSInfo().Name
	if osName == "" {
		osName = ua.Platform()
	}

	switch {
	case browser != "" && osName != "":
		return browser + " on " + osName
	case browser != "":
		return browser
	case osName != "":
		return osName
	default:
		return UnknownDevice
	}
}
