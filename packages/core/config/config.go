package config

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Source identifies the precedence tier a setting was resolved from.
type Source int

const (
	SourceFallback Source = iota
	SourceFile
	SourceEnvironment
	SourceOverride
)

func (s Source) String() string {
	switch s {
	case SourceOverride:
		return "override"
	case SourceEnvironment:
		return "environment"
	case SourceFile:
		return "file"
	default:
		return "fallback"
	}
}

// Setting is a resolved key together with the tier that supplied it.
type Setting struct {
	Key    string
	Value  string
	Source Source
}

// MissingError reports a required setting or settings file that is absent.
// There is no safe default for base URLs or keys, so callers treat it as fatal.
type MissingError struct {
	Key  string
	File string
}

func (e *MissingError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("settings file %s not found", e.File)
	}
	return fmt.Sprintf("required setting %q is not configured (set it in the settings file, via %s, or with --set %s=...)",
		e.Key, EnvKey(e.Key), e.Key)
}

// Resolver answers setting lookups. It is immutable after construction.
type Resolver struct {
	path      string
	file      map[string]string
	overrides map[string]string
	lookupEnv func(string) (string, bool)
	log       logrus.FieldLogger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithOverrides sets the per-process override tier.
func WithOverrides(overrides map[string]string) Option {
	return func(r *Resolver) {
		for k, v := range overrides {
			r.overrides[k] = v
		}
	}
}

// WithLookupEnv replaces os.LookupEnv as the environment tier source.
func WithLookupEnv(fn func(string) (string, bool)) Option {
	return func(r *Resolver) {
		r.lookupEnv = fn
	}
}

// WithLogger sets the logger used to report parse failures.
func WithLogger(log logrus.FieldLogger) Option {
	return func(r *Resolver) {
		r.log = log
	}
}

// New builds a Resolver over an already loaded file map.
func New(file map[string]string, opts ...Option) *Resolver {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	r := &Resolver{
		file:      make(map[string]string, len(file)),
		overrides: make(map[string]string),
		lookupEnv: os.LookupEnv,
		log:       discard,
	}
	for k, v := range file {
		r.file[k] = v
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load reads the settings file at path and builds a Resolver over it.
// An absent file is a *MissingError.
func Load(path string, opts ...Option) (*Resolver, error) {
	file, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	r := New(file, opts...)
	r.path = path
	r.log.WithField("file", path).WithField("keys", len(file)).Debug("Loaded settings")
	return r, nil
}

// Path returns the settings file the resolver was loaded from, if any.
func (r *Resolver) Path() string {
	return r.path
}

// EnvKey returns the environment variable name for a settings key.
func EnvKey(key string) string {
	return strings.NewReplacer(".", "_", "-", "_").Replace(strings.ToUpper(key))
}

// Lookup resolves key through the override, environment and file tiers.
// Empty values count as unset.
func (r *Resolver) Lookup(key string) (Setting, bool) {
	if v, ok := r.overrides[key]; ok && v != "" {
		return Setting{Key: key, Value: v, Source: SourceOverride}, true
	}
	if v, ok := r.lookupEnv(EnvKey(key)); ok && v != "" {
		return Setting{Key: key, Value: v, Source: SourceEnvironment}, true
	}
	if v, ok := r.file[key]; ok && v != "" {
		return Setting{Key: key, Value: v, Source: SourceFile}, true
	}
	return Setting{Key: key, Source: SourceFallback}, false
}

// Resolve returns the value for key, or fallback when no tier has it.
func (r *Resolver) Resolve(key, fallback string) string {
	if s, ok := r.Lookup(key); ok {
		return s.Value
	}
	return fallback
}

// Require returns the value for key or a *MissingError.
func (r *Resolver) Require(key string) (string, error) {
	if s, ok := r.Lookup(key); ok {
		return s.Value, nil
	}
	return "", &MissingError{Key: key}
}

// ResolveInt parses the value for key as an integer. Unparseable values are
// logged and the fallback is returned.
func (r *Resolver) ResolveInt(key string, fallback int) int {
	s, ok := r.Lookup(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(s.Value))
	if err != nil {
		r.invalid(s, "integer", fallback)
		return fallback
	}
	return n
}

// ResolveBool parses the value for key as a boolean. Unparseable values are
// logged and the fallback is returned.
func (r *Resolver) ResolveBool(key string, fallback bool) bool {
	s, ok := r.Lookup(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(s.Value))
	if err != nil {
		r.invalid(s, "boolean", fallback)
		return fallback
	}
	return b
}

// ResolveDuration accepts either a plain integer, read as milliseconds, or a
// Go duration string such as "1.5s".
func (r *Resolver) ResolveDuration(key string, fallback time.Duration) time.Duration {
	s, ok := r.Lookup(key)
	if !ok {
		return fallback
	}
	raw := strings.TrimSpace(s.Value)
	if ms, err := strconv.Atoi(raw); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		r.invalid(s, "duration", fallback)
		return fallback
	}
	return d
}

func (r *Resolver) invalid(s Setting, kind string, fallback any) {
	r.log.WithFields(logrus.Fields{
		"key":    s.Key,
		"value":  s.Value,
		"source": s.Source.String(),
	}).Warnf("Invalid %s setting, using default %v", kind, fallback)
}

// Settings lists every key known to the file or override tiers, resolved
// through the full chain, sorted by key.
func (r *Resolver) Settings() []Setting {
	keys := make(map[string]struct{}, len(r.file)+len(r.overrides))
	for k := range r.file {
		keys[k] = struct{}{}
	}
	for k := range r.overrides {
		keys[k] = struct{}{}
	}

	settings := make([]Setting, 0, len(keys))
	for k := range keys {
		s, _ := r.Lookup(k)
		settings = append(settings, s)
	}
	sort.Slice(settings, func(i, j int) bool {
		return settings[i].Key < settings[j].Key
	})
	return settings
}

// Variables exposes the resolved settings as template variables.
func (r *Resolver) Variables() map[string]any {
	vars := make(map[string]any)
	for _, s := range r.Settings() {
		vars[s.Key] = s.Value
	}
	return vars
}
