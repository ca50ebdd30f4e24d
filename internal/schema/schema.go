package schema

import (
	"embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/kaptinlin/jsonschema"
	"github.com/pkg/errors"
)

//go:embed schemas/*.json
var files embed.FS

// Envelope validates a response body against one of the embedded schemas.
type Envelope struct {
	name   string
	schema *jsonschema.Schema
}

var (
	// Config requires data.csrfToken to be a non-empty string.
	Config = mustLoad("config")
	// Captcha requires data.image to be a non-empty string.
	Captcha = mustLoad("captcha")
)

// Load compiles the embedded schema with the given base name.
func Load(name string) (*Envelope, error) {
	data, err := files.ReadFile("schemas/" + name + ".json")
	if err != nil {
		return nil, errors.Wrapf(err, "read schema %s", name)
	}
	compiler := jsonschema.NewCompiler()
	s, err := compiler.Compile(data)
	if err != nil {
		return nil, errors.Wrapf(err, "compile schema %s", name)
	}
	return &Envelope{name: name, schema: s}, nil
}

func mustLoad(name string) *Envelope {
	e, err := Load(name)
	if err != nil {
		panic(err)
	}
	return e
}

// Name returns the schema's base name.
func (e *Envelope) Name() string { return e.name }

// Validate returns nil when body satisfies the schema. Empty or malformed
// bodies are reported as errors rather than panics.
func (e *Envelope) Validate(body []byte) error {
	if len(strings.TrimSpace(string(body))) == 0 {
		return errors.Errorf("%s: empty body", e.name)
	}
	if !json.Valid(body) {
		return errors.Errorf("%s: body is not valid JSON", e.name)
	}
	result := e.schema.ValidateJSON(body)
	if result.IsValid() {
		return nil
	}
	keys := make([]string, 0, len(result.Errors))
	for k, v := range result.Errors {
		keys = append(keys, fmt.Sprintf("%s: %v", k, v))
	}
	sort.Strings(keys)
	return errors.Errorf("%s: schema validation failed: %s", e.name, strings.Join(keys, "; "))
}

// Valid is shorthand for Validate(body) == nil.
func (e *Envelope) Valid(body []byte) bool {
	return e.Validate(body) == nil
}
