package detector

import (
	"os"
	"regexp"
	"runtime"
	"strconv"
)

// DeviceInfo describes the host form factor used to choose a delegate.
type DeviceInfo struct {
	// Platform is the platform string, e.g. "linux/amd64" or "MacIntel".
	Platform string
	// UserAgent is an optional free-form description of the client.
	UserAgent string
	// MaxTouchPoints is the number of simultaneous touch points supported.
	MaxTouchPoints int
}

var mobileAgent = regexp.MustCompile(`(?i)Android|webOS|iPhone|iPad|iPod|BlackBerry|IEMobile|Opera Mini|Mobi`)

// IsMobile reports whether the device looks like a phone or tablet.
// Tablets that report a desktop platform are recognised by touch support.
func IsMobile(info DeviceInfo) bool {
	if mobileAgent.MatchString(info.UserAgent) || mobileAgent.MatchString(info.Platform) {
		return true
	}
	return info.Platform == "MacIntel" && info.MaxTouchPoints > 1
}

// PreferredDelegate returns the delegate to try first on this device.
// Accelerated delegates on constrained mobile GPUs are less reliable than software.
func PreferredDelegate(info DeviceInfo) Delegate {
	if IsMobile(info) {
		return DelegateCPU
	}
	return DelegateGPU
}

// CurrentDevice describes the running host. TREEGESTURE_USER_AGENT and
// TREEGESTURE_TOUCH_POINTS override the sniffed values.
func CurrentDevice() DeviceInfo {
	info := DeviceInfo{
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		UserAgent: os.Getenv("TREEGESTURE_USER_AGENT"),
	}
	switch runtime.GOOS {
	case "android":
		info.UserAgent += " Android"
	case "ios":
		info.UserAgent += " iPhone"
	}
	if v, err := strconv.Atoi(os.Getenv("TREEGESTURE_TOUCH_POINTS")); err == nil {
		info.MaxTouchPoints = v
	}
	return info
}
