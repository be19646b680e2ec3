// File path: internal/prompt/classify.go
package prompt

import (
	"fmt"
	"strings"

	"github.com/geekygoose/gander/internal/compliance"
)

// ClassifySystemPrompt primes the hosted provider for single-shot document
// classification.
const ClassifySystemPrompt = "You are a compliance expert. Respond only with valid JSON."

// BuildClassify renders the single-shot document-classification prompt used
// with hosted providers: truncated document text plus an enumerated candidate
// catalog bounded by candidateLimit.
func BuildClassify(filename, text string, candidates []compliance.Control, textBudget, candidateLimit int) string {
	if candidateLimit > 0 && len(candidates) > candidateLimit {
		candidates = candidates[:candidateLimit]
	}
	var b strings.Builder
	b.WriteString("You are a compliance expert. Analyze this document and identify which compliance control it relates to.\n\n")
	fmt.Fprintf(&b, "Document: %s\n", filename)
	fmt.Fprintf(&b, "Content: %s\n\n", Truncate(text, textBudget))
	b.WriteString("Available compliance controls:\n")
	for _, control := range candidates {
		fmt.Fprintf(&b, "- %s: %s (%s) - %s\n", control.Code, control.Title, control.Framework, firstLine(Truncate(control.Description, 100)))
	}
	b.WriteString(`
Select the single most relevant control and provide:
- control_code: The exact control code
- control_title: The exact control title
- framework_name: The framework name
- confidence: A number between 0.0 and 1.0
- reasoning: Brief explanation (1-2 sentences)

Respond ONLY with valid JSON in this exact format:
{
  "suggestions": [
    {
      "control_code": "CONTROL_CODE",
      "control_title": "Control Title",
      "framework_name": "Framework Name",
      "confidence": 0.8,
      "reasoning": "Brief explanation of why this control is relevant."
    }
  ]
}

Do not include any text before or after the JSON. Return an empty suggestions array if no relevant control is found.`)
	return b.String()
}

// BuildSummary renders step one of the two-step protocol: a compact
// fixed-shape summary of the document, independent of any control catalog.
func BuildSummary(filename, text string, textBudget int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Summarize the document %q for compliance classification.\n\n", filename)
	fmt.Fprintf(&b, "Document content:\n%s\n\n", Truncate(text, textBudget))
	b.WriteString(`Respond ONLY with valid JSON in this exact format:
{
  "document_type": "policy|procedure|screenshot|report|configuration|other",
  "primary_topic": "short phrase",
  "key_content": ["up to five short content indicators"],
  "compliance_areas": ["relevant security or compliance areas"],
  "distinguishing_features": "one sentence"
}

No additional text.`)
	return b.String()
}

// BuildMap renders step two of the two-step protocol: given the step-one
// summary, select exactly one control from a numbered candidate list bounded
// by mapLimit. The response references the candidate by list number so small
// models never have to reproduce a control code verbatim.
func BuildMap(summaryJSON string, candidates []compliance.Control, mapLimit int) string {
	if mapLimit > 0 && len(candidates) > mapLimit {
		candidates = candidates[:mapLimit]
	}
	var b strings.Builder
	b.WriteString("A document was summarized as:\n")
	b.WriteString(strings.TrimSpace(summaryJSON))
	b.WriteString("\n\nCandidate compliance controls:\n")
	for i, control := range candidates {
		fmt.Fprintf(&b, "%d. %s: %s (%s) - %s\n", i+1, control.Code, control.Title, control.Framework, firstLine(Truncate(control.Description, 100)))
	}
	fmt.Fprintf(&b, `
Select the ONE control that best matches the document. Respond ONLY with valid JSON:
{"selected_number": 1-%d, "confidence": 0.0-1.0, "reasoning": "one short sentence"}

No additional text.`, len(candidates))
	return b.String()
}
