package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envFrom(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestResolverPrecedence(t *testing.T) {
	file := map[string]string{"ui.url": "C"}
	env := map[string]string{"UI_URL": "B"}
	overrides := map[string]string{"ui.url": "A"}

	r := New(file, WithOverrides(overrides), WithLookupEnv(envFrom(env)))
	s, ok := r.Lookup("ui.url")
	require.True(t, ok)
	assert.Equal(t, "A", s.Value)
	assert.Equal(t, SourceOverride, s.Source)

	r = New(file, WithLookupEnv(envFrom(env)))
	s, _ = r.Lookup("ui.url")
	assert.Equal(t, "B", s.Value)
	assert.Equal(t, SourceEnvironment, s.Source)

	r = New(file, WithLookupEnv(envFrom(nil)))
	s, _ = r.Lookup("ui.url")
	assert.Equal(t, "C", s.Value)
	assert.Equal(t, SourceFile, s.Source)

	r = New(nil, WithLookupEnv(envFrom(nil)))
	assert.Equal(t, "fallback", r.Resolve("ui.url", "fallback"))
	_, ok = r.Lookup("ui.url")
	assert.False(t, ok)
}

func TestResolverEmptyValuesAreUnset(t *testing.T) {
	r := New(map[string]string{"api.url": "from-file"},
		WithOverrides(map[string]string{"api.url": ""}),
		WithLookupEnv(envFrom(map[string]string{"API_URL": ""})),
	)
	assert.Equal(t, "from-file", r.Resolve("api.url", ""))
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"ui.url":          "UI_URL",
		"viewport.width":  "VIEWPORT_WIDTH",
		"browser.chrome":  "BROWSER_CHROME",
		"timeout.element": "TIMEOUT_ELEMENT",
		"output-dir":      "OUTPUT_DIR",
	}
	for key, want := range tests {
		assert.Equal(t, want, EnvKey(key), key)
	}
}

func TestResolveTyped(t *testing.T) {
	log, hook := logtest.NewNullLogger()
	r := New(map[string]string{
		"viewport.width":  "1280",
		"viewport.height": "tall",
		"headless":        "false",
		"slowmo":          "maybe",
		"timeout.element": "500",
		"timeout.poll":    "250ms",
		"timeout.bad":     "soon",
	}, WithLookupEnv(envFrom(nil)), WithLogger(log))

	assert.Equal(t, 1280, r.ResolveInt("viewport.width", 1920))
	assert.Equal(t, 1080, r.ResolveInt("viewport.height", 1080))
	assert.Equal(t, 7, r.ResolveInt("missing", 7))

	assert.False(t, r.ResolveBool("headless", true))
	assert.True(t, r.ResolveBool("slowmo", true))

	assert.Equal(t, 500*time.Millisecond, r.ResolveDuration("timeout.element", time.Second))
	assert.Equal(t, 250*time.Millisecond, r.ResolveDuration("timeout.poll", time.Second))
	assert.Equal(t, time.Second, r.ResolveDuration("timeout.bad", time.Second))

	warnings := 0
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warnings++
		}
	}
	assert.Equal(t, 3, warnings)
}

func TestRequire(t *testing.T) {
	r := New(map[string]string{"ui.url": "https://example.test"}, WithLookupEnv(envFrom(nil)))

	v, err := r.Require("ui.url")
	require.NoError(t, err)
	assert.Equal(t, "https://example.test", v)

	_, err = r.Require("api.url")
	var missing *MissingError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "api.url", missing.Key)
	assert.Contains(t, err.Error(), "api.url")
	assert.Contains(t, err.Error(), "API_URL")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.properties"))
	var missing *MissingError
	require.True(t, errors.As(err, &missing))
	assert.NotEmpty(t, missing.File)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "playspec.properties")
	require.NoError(t, os.WriteFile(path, []byte("ui.url=https://demoqa.com\nbrowser.chrome=chromium\n"), 0644))

	r, err := Load(path, WithLookupEnv(envFrom(nil)))
	require.NoError(t, err)
	assert.Equal(t, path, r.Path())
	assert.Equal(t, "https://demoqa.com", r.Resolve(KeyUIURL, ""))
	assert.Equal(t, "chromium", r.Resolve(BrowserKey("chrome"), ""))
}

func TestSettings(t *testing.T) {
	r := New(map[string]string{"b": "2", "a": "1"},
		WithOverrides(map[string]string{"c": "3", "a": "override"}),
		WithLookupEnv(envFrom(map[string]string{"B": "env"})),
	)

	settings := r.Settings()
	require.Len(t, settings, 3)
	assert.Equal(t, Setting{Key: "a", Value: "override", Source: SourceOverride}, settings[0])
	assert.Equal(t, Setting{Key: "b", Value: "env", Source: SourceEnvironment}, settings[1])
	assert.Equal(t, Setting{Key: "c", Value: "3", Source: SourceOverride}, settings[2])

	vars := r.Variables()
	assert.Equal(t, "env", vars["b"])
}
