// Package extract turns raw recognition text into register records.
//
// The text is expected to be, or to contain, a JSON array of objects. Strategies are
// tried in order until one yields an array; if none does the page simply has no
// records. Elements that are not flat objects are dropped and reported.
package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/joseph-ayodele/register-extractor/constants"
	"github.com/joseph-ayodele/register-extractor/internal/common"
	"github.com/joseph-ayodele/register-extractor/internal/register"
)

// Diagnostic kinds.
const (
	KindUnparsable = "unparsable_response"
	KindMalformed  = "malformed_record"
)

// Diagnostic is a non-fatal finding about one response.
type Diagnostic struct {
	Kind    string `json:"kind"`
	Index   int    `json:"index"` // element index for malformed records, -1 otherwise
	Message string `json:"message"`
}

// Err maps the diagnostic back onto the error taxonomy.
func (d Diagnostic) Err() error {
	switch d.Kind {
	case KindMalformed:
		return fmt.Errorf("%w: element %d: %s", common.ErrMalformedRecord, d.Index, d.Message)
	default:
		return fmt.Errorf("%w: %s", common.ErrUnparsableResponse, d.Message)
	}
}

// Result is what one recognition response yielded.
type Result struct {
	Records     []register.Record
	Keys        []string // field names in the order the response first mentions them
	Strategy    string   // name of the strategy that found the array, empty if none did
	Diagnostics []Diagnostic
}

// Extractor runs its strategies in order.
type Extractor struct {
	Strategies []Strategy
}

// Default tries a strict parse first, then the greedy bracket match.
func Default() *Extractor {
	return &Extractor{Strategies: []Strategy{StrictStrategy{}, BracketStrategy{}}}
}

// New builds an extractor with a custom strategy chain.
func New(strategies ...Strategy) *Extractor {
	return &Extractor{Strategies: strategies}
}

// Extract never fails: text without a usable array gives zero records and a diagnostic.
func (e *Extractor) Extract(text string) Result {
	for _, s := range e.Strategies {
		payload, ok := s.Find(text)
		if !ok {
			continue
		}
		var elems []json.RawMessage
		if err := json.Unmarshal(payload, &elems); err != nil {
			continue
		}
		res := Result{Strategy: s.Name(), Records: make([]register.Record, 0, len(elems))}
		seen := make(map[string]struct{})
		for i, el := range elems {
			rec, keys, err := toRecord(el)
			if err != nil {
				res.Diagnostics = append(res.Diagnostics, Diagnostic{Kind: KindMalformed, Index: i, Message: err.Error()})
				continue
			}
			res.Records = append(res.Records, rec)
			for _, k := range keys {
				if _, ok := seen[k]; !ok {
					seen[k] = struct{}{}
					res.Keys = append(res.Keys, k)
				}
			}
		}
		return res
	}
	return Result{Diagnostics: []Diagnostic{{
		Kind:    KindUnparsable,
		Index:   -1,
		Message: fmt.Sprintf("no JSON array found in %d bytes of response text", len(text)),
	}}}
}

func toRecord(raw json.RawMessage) (register.Record, []string, error) {
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, nil, err
	}
	if err := recordSchema.Validate(v); err != nil {
		return nil, nil, fmt.Errorf("does not match record schema: %s", describe(v))
	}
	obj := v.(map[string]any)

	keys, err := objectKeys(raw)
	if err != nil {
		return nil, nil, err
	}
	rec := make(register.Record, len(obj))
	for k, val := range obj {
		s, err := stringify(val)
		if err != nil {
			return nil, nil, fmt.Errorf("field %q: %w", k, err)
		}
		rec[k] = s
	}
	return rec, keys, nil
}

// objectKeys lists the top-level keys of a JSON object in document order.
// A repeated key keeps its first position.
func objectKeys(raw json.RawMessage) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	var keys []string
	seen := make(map[string]struct{})
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		k, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", tok)
		}
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
		if _, dup := seen[k]; !dup {
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func stringify(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return constants.NA, nil
	case string:
		return t, nil
	case json.Number:
		return t.String(), nil
	case bool:
		return strconv.FormatBool(t), nil
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}

func describe(v any) string {
	switch t := v.(type) {
	case map[string]any:
		for _, f := range constants.CanonicalFields() {
			switch t[f].(type) {
			case map[string]any, []any:
				return fmt.Sprintf("field %q is not a scalar", f)
			}
		}
		return "object"
	case []any:
		return "element is an array"
	case string:
		return "element is a string"
	case json.Number:
		return "element is a number"
	case bool:
		return "element is a boolean"
	case nil:
		return "element is null"
	default:
		return fmt.Sprintf("element is %T", v)
	}
}
