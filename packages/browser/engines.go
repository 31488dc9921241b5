package browser

import (
	"fmt"
	"sort"
	"strings"

	"github.com/abdul-hamid-achik/playspec/packages/core/config"
)

// Concrete engines a session can be created with.
const (
	Chromium = "chromium"
	Firefox  = "firefox"
	WebKit   = "webkit"
)

var supportedEngines = map[string]bool{
	Chromium: true,
	Firefox:  true,
	WebKit:   true,
}

// defaultMappings apply when the settings do not map a logical name.
var defaultMappings = map[string]string{
	"chrome":  Chromium,
	"edge":    Chromium,
	"firefox": Firefox,
	"safari":  WebKit,
}

// UnsupportedEngineError reports a browser name that does not map to a supported engine.
type UnsupportedEngineError struct {
	Name string
}

func (e *UnsupportedEngineError) Error() string {
	return fmt.Sprintf("unsupported browser %q (supported engines: %s)", e.Name, strings.Join(SupportedEngines(), ", "))
}

// SupportedEngines returns the engine whitelist, sorted.
func SupportedEngines() []string {
	engines := make([]string, 0, len(supportedEngines))
	for e := range supportedEngines {
		engines = append(engines, e)
	}
	sort.Strings(engines)
	return engines
}

// MapEngine resolves a logical browser name such as "chrome" to a concrete engine
// through the browser.<name> setting, then the built-in mappings, then the engine
// names themselves.
func MapEngine(settings *config.Resolver, logical string) (string, error) {
	name := strings.ToLower(strings.TrimSpace(logical))
	if name == "" {
		return "", &UnsupportedEngineError{Name: logical}
	}

	engine := settings.Resolve(config.BrowserKey(name), "")
	if engine == "" {
		engine = defaultMappings[name]
	}
	if engine == "" {
		engine = name
	}

	engine = strings.ToLower(strings.TrimSpace(engine))
	if !supportedEngines[engine] {
		return "", &UnsupportedEngineError{Name: engine}
	}
	return engine, nil
}
