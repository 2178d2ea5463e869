package llm

import (
	"strings"

	"github.com/joseph-ayodele/register-extractor/constants"
	"github.com/joseph-ayodele/register-extractor/internal/register"
)

// BuildInstructions renders the instruction sent with every register page. It carries
// the same name corrections the local normalizer enforces.
func BuildInstructions(corrections []register.Correction) string {
	fields := constants.CanonicalFields()

	var b strings.Builder
	b.WriteString("Analyze the following handwritten patient register image carefully.\n\n")
	b.WriteString("Your task is to extract structured data as a valid JSON array, one object per register row.\n\n")
	b.WriteString("Step 1: Read and recognize all visible words or numbers.\n")
	b.WriteString("Step 2: Match each recognized value to one of these fields:\n")
	for _, f := range fields {
		b.WriteString("- " + f + "\n")
	}
	b.WriteString("Step 3: If any field is blank or unreadable, use \"" + constants.NA + "\".\n")
	b.WriteString("Step 4: Fix common OCR mistakes:\n")
	for _, c := range corrections {
		b.WriteString("- Replace \"" + c.From + "\" with \"" + c.To + "\"\n")
	}
	b.WriteString("- Replace \"O\" with \"0\" and \"I\" with \"1\" in numeric fields (" +
		strings.Join(constants.NumericFields(), ", ") + ")\n")
	b.WriteString("Step 5: Ensure output is valid JSON only. No explanations, no extra text.\n\n")
	b.WriteString("Return the result as a JSON array like this:\n[\n  {\n")
	for i, f := range fields {
		b.WriteString("    \"" + f + "\": \"\"")
		if i < len(fields)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString("  }\n]\n")
	return b.String()
}
