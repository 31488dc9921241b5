// Package config resolves playspec settings through an ordered precedence chain.
//
// A setting is looked up, highest precedence first, in:
//   - per-process overrides (the CLI --set flag)
//   - an environment variable named after the key (upper-cased, '.' and '-' become '_')
//   - the loaded settings file (.properties or YAML)
//   - the fallback supplied by the caller
//
// The Resolver is built once per process and is read-only afterwards, so it can be
// shared between concurrently running tests without locking.
package config
