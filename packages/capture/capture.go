package capture

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/abdul-hamid-achik/playspec/packages/core/env"
	"github.com/abdul-hamid-achik/playspec/packages/http"
)

// Capture names a value to extract. From is "status", "duration",
// "header <Name>", "body" or a gjson path into the body.
type Capture struct {
	Name string `yaml:"name" json:"name"`
	From string `yaml:"from" json:"from"`
}

type Extractor struct {
	response *http.Response
	bodyJSON gjson.Result
}

func NewExtractor(resp *http.Response) *Extractor {
	e := &Extractor{response: resp}
	if gjson.ValidBytes(resp.Body) {
		e.bodyJSON = gjson.ParseBytes(resp.Body)
	}
	return e
}

// Extract returns the captured value and whether the source had one.
func (e *Extractor) Extract(c Capture) (any, bool) {
	from := strings.TrimSpace(c.From)
	switch {
	case from == "status":
		return e.response.StatusCode, true
	case from == "duration":
		return e.response.DurationMs(), true
	case strings.HasPrefix(from, "header "):
		value := e.response.Header(strings.TrimSpace(strings.TrimPrefix(from, "header ")))
		return value, value != ""
	case from == "body" || from == "":
		if e.bodyJSON.Exists() {
			return e.bodyJSON.Value(), true
		}
		return e.response.BodyString(), true
	}

	if !e.bodyJSON.Exists() {
		return nil, false
	}
	result := e.bodyJSON.Get(strings.TrimPrefix(from, "body."))
	if !result.Exists() {
		return nil, false
	}
	return result.Value(), true
}

// Apply extracts every capture into resolver under check. It returns the
// captured values and the names of captures whose source had no value.
func Apply(resp *http.Response, check string, captures []Capture, resolver *env.Resolver) (map[string]any, []string) {
	extractor := NewExtractor(resp)
	values := make(map[string]any, len(captures))
	var missing []string
	for _, c := range captures {
		value, ok := extractor.Extract(c)
		if !ok {
			missing = append(missing, c.Name)
			continue
		}
		values[c.Name] = value
		resolver.SetCapture(check, c.Name, value)
	}
	return values, missing
}
