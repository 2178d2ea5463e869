package extract

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
)

// Strategy locates a JSON array inside free-form recognition text.
// Find returns the array payload only when it parses as a JSON array.
type Strategy interface {
	Name() string
	Find(text string) (json.RawMessage, bool)
}

var (
	reBracket = regexp.MustCompile(`(?s)\[.*\]`)
	reFence   = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)```")
)

// StrictStrategy accepts the text only if the whole of it is a JSON array.
type StrictStrategy struct{}

func (StrictStrategy) Name() string { return "strict" }

func (StrictStrategy) Find(text string) (json.RawMessage, bool) {
	return asArray(text)
}

// BracketStrategy takes everything from the first '[' to the last ']' and parses it strictly.
// The match is greedy, so prose containing a stray ']' after the array defeats it.
type BracketStrategy struct{}

func (BracketStrategy) Name() string { return "bracket" }

func (BracketStrategy) Find(text string) (json.RawMessage, bool) {
	m := reBracket.FindString(text)
	if m == "" {
		return nil, false
	}
	return asArray(m)
}

// FenceStrategy reads the first markdown code fence, for models that wrap JSON in ```json blocks.
type FenceStrategy struct{}

func (FenceStrategy) Name() string { return "fence" }

func (FenceStrategy) Find(text string) (json.RawMessage, bool) {
	m := reFence.FindStringSubmatch(text)
	if len(m) < 2 {
		return nil, false
	}
	return asArray(m[1])
}

func asArray(s string) (json.RawMessage, bool) {
	b := bytes.TrimSpace([]byte(strings.TrimPrefix(s, "\ufeff")))
	if len(b) == 0 || b[0] != '[' {
		return nil, false
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(b, &elems); err != nil {
		return nil, false
	}
	return json.RawMessage(b), true
}
