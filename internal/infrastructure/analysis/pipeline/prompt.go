package pipeline

import (
	"fmt"
	"strings"
)

const systemPrompt = `You review residential lease agreements for tenants.
Return one strict JSON object, no markdown, with keys:
analysis: array of {clause (string, quoted or closely paraphrased from the document), risk_level ("low"|"medium"|"high"), explanation (string, one or two sentences for the tenant)};
summary: object with optional rent_amount, security_deposit, lease_term (display strings) and key_terms (array of short strings).
Flag clauses that are unusually harsh, one-sided or likely unenforceable as high. Omit boilerplate with no risk.`

// BuildClausePrompt returns the user prompt for one chunk of a document.
func BuildClausePrompt(documentName string, part, parts int, text string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Document: %s\n", documentName)
	if parts > 1 {
		fmt.Fprintf(&b, "Part %d of %d. Report only clauses found in this part.\n", part, parts)
	}
	b.WriteString("\nText:\n")
	b.WriteString(text)
	return b.String()
}

// SystemPrompt is the instruction shared by every provider.
func SystemPrompt() string {
	return systemPrompt
}
