package config

import "time"

// Setting keys understood by playspec.
const (
	KeyBrowser           = "browser"
	KeyUIURL             = "ui.url"
	KeyAPIURL            = "api.url"
	KeyAPIKey            = "api.key"
	KeyAPITimeout        = "api.timeout"
	KeyAPIRate           = "api.rate"
	KeyHeadless          = "headless"
	KeyViewportWidth     = "viewport.width"
	KeyViewportHeight    = "viewport.height"
	KeyElementTimeout    = "timeout.element"
	KeyPollInterval      = "timeout.poll"
	KeyNavigationTimeout = "timeout.navigation"
	KeyOutputDir         = "output.dir"
	KeyHistoryPath       = "history.path"

	// BrowserKeyPrefix prefixes the logical-name to engine mapping, e.g. browser.chrome=chromium.
	BrowserKeyPrefix = "browser."
)

// Defaults used when neither the file nor the environment provide a value.
const (
	DefaultBrowser           = "chrome"
	DefaultHeadless          = true
	DefaultViewportWidth     = 1920
	DefaultViewportHeight    = 1080
	DefaultElementTimeout    = 10 * time.Second
	DefaultPollInterval      = 100 * time.Millisecond
	DefaultNavigationTimeout = 30 * time.Second
	DefaultAPITimeout        = 30 * time.Second
	DefaultOutputDir         = "playspec-report"
	DefaultHistoryPath       = ".playspec/history.db"
)

// DefaultFilenames are searched, in order, when no settings file is given explicitly.
var DefaultFilenames = []string{
	"playspec.properties",
	"config.properties",
	"playspec.yaml",
	"playspec.yml",
}

// BrowserKey returns the settings key that maps a logical browser name to an engine.
func BrowserKey(logical string) string {
	return BrowserKeyPrefix + logical
}
