package events

import "github.com/mssola/useragent"

// DeviceInfo is the parsed summary of a User-Agent header kept in login
// payloads so audit trails don't require re-parsing raw strings.
type DeviceInfo struct {
	Browser string
	OS      string
	Mobile  bool
	Bot     bool
}

// ParseDevice extracts browser and OS details from a raw User-Agent value.
func ParseDevice(rawUserAgent string) DeviceInfo {
	if rawUserAgent == "" {
		return DeviceInfo{}
	}
	ua := useragent.New(rawUserAgent)
	name, version := ua.Browser()
	browser := name
	if version != "" {
		browser = name + " " + version
	}
	return DeviceInfo{
		Browser: browser,
		OS:      ua.OS(),
		Mobile:  ua.Mobile(),
		Bot:     ua.Bot(),
	}
}
