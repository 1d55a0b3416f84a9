package pipeline

import (
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"
)

// Schema returns the JSON schema of Config, indented.
func Schema() ([]byte, error) {
	s, err := jsonschema.For[Config](nil)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(s, "", "  ")
}
