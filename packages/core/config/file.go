package config

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ReadFile parses a settings file into a flat key-value map. Files ending in
// .yaml or .yml are parsed as YAML with nested maps joined by '.'; anything
// else is parsed as a Java-style properties file.
func ReadFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &MissingError{File: path}
		}
		return nil, fmt.Errorf("cannot read settings file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return parseYAML(data)
	default:
		return parseProperties(data)
	}
}

// FindFile returns the first of DefaultFilenames present in dir.
func FindFile(dir string) (string, bool) {
	for _, name := range DefaultFilenames {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true
		}
	}
	return "", false
}

// Locate returns the settings file to load: explicit when set, otherwise the
// first default file in dir. Finding none is a *MissingError naming the
// primary default file.
func Locate(explicit, dir string) (string, error) {
	if explicit != "" {
		return filepath.Clean(explicit), nil
	}
	if path, ok := FindFile(dir); ok {
		return path, nil
	}
	return "", &MissingError{File: filepath.Join(dir, DefaultFilenames[0])}
}

// parseProperties supports: key=value, key: value, key value,
// '#' and '!' comments, and values wrapped in single or double quotes.
func parseProperties(data []byte) (map[string]string, error) {
	result := make(map[string]string)
	scanner := bufio.NewScanner(bytes.NewReader(data))

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
			continue
		}

		idx := strings.IndexAny(line, "=: \t")
		if idx <= 0 {
			continue
		}

		key := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])
		// "key = value" leaves the separator in front of the value
		if line[idx] == ' ' || line[idx] == '\t' {
			value = strings.TrimSpace(strings.TrimLeft(value, "=:"))
		}

		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		result[key] = value
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading settings file: %w", err)
	}

	return result, nil
}

func parseYAML(data []byte) (map[string]string, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing YAML settings: %w", err)
	}

	result := make(map[string]string)
	flatten("", doc, result)
	return result, nil
}

func flatten(prefix string, value any, out map[string]string) {
	switch v := value.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			flatten(joinKey(prefix, k), v[k], out)
		}
	case nil:
		if prefix != "" {
			out[prefix] = ""
		}
	default:
		if prefix != "" {
			out[prefix] = fmt.Sprintf("%v", v)
		}
	}
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
