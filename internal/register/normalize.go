package register

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/joseph-ayodele/register-extractor/constants"
)

// Correction is one literal substring replacement applied to the Name field.
type Correction struct {
	From string
	To   string
}

// DefaultNameCorrections are the known name misreads in the source registers.
var DefaultNameCorrections = []Correction{
	{From: "Sanjana", To: "Ranjana"},
	{From: "Satyashankar", To: "Vijay Shankar"},
}

var (
	reNumericLike = regexp.MustCompile(`^[0-9 +\-.,/()]+$`)
	reHasDigit    = regexp.MustCompile(`[0-9]`)

	digitRepair = strings.NewReplacer("O", "0", "o", "0", "I", "1", "l", "1")
)

// ErrUnstableCorrection rejects a correction whose replacement would itself be
// rewritten again by the correction set, so a second pass would change the name.
var ErrUnstableCorrection = errors.New("unstable name correction")

// maxCorrectionPasses bounds the fixpoint loop over name corrections.
const maxCorrectionPasses = 8

// Normalizer repairs known recognition mistakes and fills gaps with NA.
type Normalizer struct {
	NameCorrections []Correction
	NumericFields   []string
}

// DefaultNormalizer uses the built-in name corrections and numeric fields.
func DefaultNormalizer() *Normalizer {
	return &Normalizer{
		NameCorrections: append([]Correction(nil), DefaultNameCorrections...),
		NumericFields:   constants.NumericFields(),
	}
}

// WithCorrections returns a copy of n with extra name corrections appended after the defaults.
// A replacement containing the text of any correction in the resulting set is rejected
// with ErrUnstableCorrection; "Ram=>Rama" would otherwise grow on every pass.
func (n *Normalizer) WithCorrections(pairs [][2]string) (*Normalizer, error) {
	out := &Normalizer{
		NameCorrections: append([]Correction(nil), n.NameCorrections...),
		NumericFields:   append([]string(nil), n.NumericFields...),
	}
	for _, p := range pairs {
		if p[0] == "" {
			continue
		}
		out.NameCorrections = append(out.NameCorrections, Correction{From: p[0], To: p[1]})
	}
	for _, c := range out.NameCorrections {
		for _, other := range out.NameCorrections {
			if other.From != "" && strings.Contains(c.To, other.From) {
				return nil, fmt.Errorf("%w: %q=>%q reintroduces %q", ErrUnstableCorrection, c.From, c.To, other.From)
			}
		}
	}
	return out, nil
}

// Normalize returns a new record with corrections applied and every canonical field present.
// Fields outside the canonical set pass through unchanged.
func (n *Normalizer) Normalize(in Record) Record {
	out := in.Clone()

	for _, f := range constants.CanonicalFields() {
		v := strings.TrimSpace(out[f])
		if v == "" {
			v = constants.NA
		}
		out[f] = v
	}

	name := out[constants.FieldName]
	if name != constants.NA {
		// a replacement can join with its neighbours into another match, so run to a fixpoint
		for i := 0; i < maxCorrectionPasses; i++ {
			next := n.correctName(name)
			if next == name {
				break
			}
			name = next
		}
		if name = strings.TrimSpace(name); name == "" {
			name = constants.NA
		}
		out[constants.FieldName] = name
	}

	for _, f := range n.NumericFields {
		out[f] = repairDigits(out[f])
	}
	return out
}

func (n *Normalizer) correctName(name string) string {
	for _, c := range n.NameCorrections {
		if c.From == "" {
			continue
		}
		name = strings.ReplaceAll(name, c.From, c.To)
	}
	return name
}

// NormalizeAll applies Normalize to each record in order.
func (n *Normalizer) NormalizeAll(recs []Record) []Record {
	out := make([]Record, 0, len(recs))
	for _, r := range recs {
		out = append(out, n.Normalize(r))
	}
	return out
}

// repairDigits maps O/o to 0 and I/l to 1, but only if the result reads as a number.
// Values like "NA" or "Rs. 100" are left alone.
func repairDigits(v string) string {
	if v == constants.NA {
		return v
	}
	fixed := digitRepair.Replace(v)
	if !reNumericLike.MatchString(fixed) || !reHasDigit.MatchString(fixed) {
		return v
	}
	return fixed
}
