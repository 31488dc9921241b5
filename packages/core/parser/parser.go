package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Extensions lists the file suffixes FindFiles treats as check suites.
var Extensions = []string{".playspec.yaml", ".playspec.yml"}

func ParseFile(path string) (*Suite, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(content, path)
}

// Parse decodes a check suite and validates every check in it.
func Parse(content []byte, filename string) (*Suite, error) {
	var doc struct {
		Name      string         `yaml:"name"`
		Variables map[string]any `yaml:"variables"`
		Checks    []yaml.Node    `yaml:"checks"`
	}

	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ParseError{File: filename, Line: 1, Message: "empty check suite"}
		}
		return nil, &ParseError{File: filename, Message: err.Error()}
	}

	suite := &Suite{
		Path:      filename,
		Name:      doc.Name,
		Variables: doc.Variables,
	}
	if suite.Name == "" {
		suite.Name = suiteName(filename)
	}

	names := make(map[string]int)
	for i := range doc.Checks {
		node := &doc.Checks[i]
		check := &Check{Line: node.Line}
		if err := decodeStrict(node, check); err != nil {
			return nil, &ParseError{File: filename, Line: node.Line, Message: err.Error()}
		}
		if check.Name == "" {
			check.Name = fmt.Sprintf("check %d", i+1)
		}
		if line, dup := names[check.Name]; dup {
			return nil, &ParseError{
				File:    filename,
				Line:    node.Line,
				Message: fmt.Sprintf("duplicate check name %q (first defined on line %d)", check.Name, line),
			}
		}
		names[check.Name] = node.Line

		if err := validate(check); err != nil {
			return nil, &ParseError{File: filename, Line: node.Line, Message: fmt.Sprintf("%s: %v", check.Name, err)}
		}
		suite.Checks = append(suite.Checks, check)
	}

	for _, check := range suite.Checks {
		for _, dep := range check.Depends {
			if _, ok := names[dep]; !ok {
				return nil, &ParseError{
					File:    filename,
					Line:    check.Line,
					Message: fmt.Sprintf("%s: depends on unknown check %q", check.Name, dep),
				}
			}
		}
	}

	return suite, nil
}

// decodeStrict re-encodes node so unknown fields are rejected like they are
// at the top level.
func decodeStrict(node *yaml.Node, out any) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	if err := enc.Encode(node); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	dec := yaml.NewDecoder(&buf)
	dec.KnownFields(true)
	return dec.Decode(out)
}

func validate(c *Check) error {
	switch {
	case c.IsUI() && c.Request != nil:
		return errors.New("a check has either steps or a request, not both")
	case !c.IsUI() && c.Request == nil:
		return errors.New("a check needs steps or a request")
	}

	if c.IsUI() {
		if len(c.Expect) > 0 || len(c.Capture) > 0 {
			return errors.New("expect and capture apply to API checks only")
		}
		for i, step := range c.Steps {
			if _, err := step.Kind(); err != nil {
				return fmt.Errorf("step %d: %w", i+1, err)
			}
			if step.Fill != nil && step.Fill.Selector == "" {
				return fmt.Errorf("step %d: fill needs a selector", i+1)
			}
			if step.ExpectText != nil {
				if step.ExpectText.Selector == "" {
					return fmt.Errorf("step %d: expectText needs a selector", i+1)
				}
				if step.ExpectText.Equals != "" && step.ExpectText.Contains != "" {
					return fmt.Errorf("step %d: expectText takes equals or contains, not both", i+1)
				}
			}
		}
		return nil
	}

	if c.Browser != "" {
		return errors.New("browser applies to UI checks only")
	}
	if c.Request.URL == "" {
		return errors.New("request needs a url")
	}
	if c.Request.Method == "" {
		c.Request.Method = "GET"
	}
	c.Request.Method = strings.ToUpper(c.Request.Method)
	for i, a := range c.Expect {
		if a.Subject == "" || a.Operator == "" {
			return fmt.Errorf("expect %d: needs subject and op", i+1)
		}
	}
	for i, cp := range c.Capture {
		if cp.Name == "" {
			return fmt.Errorf("capture %d: needs a name", i+1)
		}
	}
	return nil
}

func suiteName(path string) string {
	base := filepath.Base(path)
	for _, ext := range Extensions {
		if strings.HasSuffix(base, ext) {
			return strings.TrimSuffix(base, ext)
		}
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// IsSuiteFile reports whether path has a check suite extension.
func IsSuiteFile(path string) bool {
	for _, ext := range Extensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

// FindFiles expands paths into check suite files. Directories are walked
// recursively; files are taken as given.
func FindFiles(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && IsSuiteFile(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}
