package extract

import (
	"encoding/json"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/register-extractor/constants"
)

// BuildRecordJSONSchema returns the JSON-Schema one array element must satisfy.
// Canonical fields must be scalars; other keys are unconstrained and get stringified.
func BuildRecordJSONSchema() map[string]any {
	props := map[string]any{}
	for _, f := range constants.CanonicalFields() {
		props[f] = map[string]any{"type": []string{"string", "number", "boolean", "null"}}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
	}
}

var recordSchema = jsonschema.MustCompileString("register-record.json", mustJSON(BuildRecordJSONSchema()))

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}
