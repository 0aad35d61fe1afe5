package ingress

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	uaWindowsChrome = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	uaIPhone        = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
	uaAndroidPhone  = "Mozilla/5.0 (Linux; Android 13; Pixel 7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Mobile Safari/537.36"
	uaAndroidTablet = "Mozilla/5.0 (Linux; Android 13; SM-X700) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
	uaMacFirefox    = "Mozilla/5.0 (Macintosh; Intel Mac OS X 14.1; rv:121.0) Gecko/20100101 Firefox/121.0"
)

func TestDetectDeviceAndBrowser(t *testing.T) {
	tests := []struct {
		name    string
		ua      string
		device  string
		browser string
	}{
		{"windows chrome", uaWindowsChrome, "Windows NT", "Chrome/120.0.0.0"},
		{"iphone safari", uaIPhone, "iPhone", "Safari/604.1"},
		{"android phone", uaAndroidPhone, "Linux", "Chrome/120.0"},
		{"mac firefox", uaMacFirefox, "Macintosh", "Firefox/121.0"},
		{"lower case tokens", "some windows phone thing with firefox", "windows phone", "firefox"},
		{"no match", "curl/8.4.0", "Unknown", "Unknown"},
		{"empty", "", "Unknown", "Unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			device, browser := DetectDeviceAndBrowser(tt.ua)
			assert.Equal(t, tt.device, device)
			assert.Equal(t, tt.browser, browser)
		})
	}
}

func TestClassifyDevice(t *testing.T) {
	assert.Equal(t, "Mobile", ClassifyDevice(uaIPhone))
	assert.Equal(t, "Mobile", ClassifyDevice(uaAndroidPhone))
	assert.Equal(t, "Tablet", ClassifyDevice(uaAndroidTablet))
	assert.Equal(t, "Tablet", ClassifyDevice("Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X)"))
	assert.Equal(t, "Desktop", ClassifyDevice(uaWindowsChrome))
	assert.Equal(t, "Desktop", ClassifyDevice(uaMacFirefox))
	assert.Equal(t, "Unknown", ClassifyDevice("curl/8.4.0"))
	assert.Equal(t, "Unknown", ClassifyDevice(""))
}
