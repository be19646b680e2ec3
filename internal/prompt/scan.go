// File path: internal/prompt/scan.go
package prompt

import (
	"fmt"
	"strings"

	"github.com/geekygoose/gander/internal/compliance"
)

// ScanSystemPrompt primes the hosted provider for scan requests.
const ScanSystemPrompt = "You are a compliance expert that analyzes evidence documents against security control requirements. You must respond with valid JSON only."

const scanSchema = `You must respond with valid JSON only, following this exact schema:
{
  "requirements": [
    {
      "requirement_id": "string (use the Requirement ID provided above)",
      "outcome": "PASS|PARTIAL|FAIL|NOT_FOUND",
      "confidence": 0.0-1.0,
      "rationale": "string explanation",
      "citations": [{"document_id": "string", "document_name": "string", "page_num": 1, "quote": "string max 30 words"}]
    }
  ],
  "gaps": [
    {
      "requirement_id": "string",
      "summary": "string describing what is missing",
      "recommended_actions": [{"title": "string", "detail": "string", "priority": "HIGH|MEDIUM|LOW"}]
    }
  ]
}`

// BuildScan renders the compliance-scanning prompt for one control. The
// output is byte-identical for identical inputs: requirements and evidence
// are emitted in the order supplied and truncation is deterministic.
func BuildScan(control compliance.Control, requirements []compliance.Requirement, evidence []compliance.EvidenceExcerpt, evidenceBudget int) string {
	var b strings.Builder
	b.WriteString("COMPLIANCE SCANNING TASK\n\n")
	fmt.Fprintf(&b, "You are analyzing evidence documents to determine compliance with the security control %q (%s).\n\n", control.Title, control.Code)
	b.WriteString("CONTROL DESCRIPTION:\n")
	b.WriteString(control.Description)
	b.WriteString("\n\nREQUIREMENTS TO EVALUATE:\n")
	for _, req := range requirements {
		fmt.Fprintf(&b, "\nRequirement ID: %s\n", req.ID)
		fmt.Fprintf(&b, "%s: %s\n", req.Code, req.Text)
		if strings.TrimSpace(req.Guidance) != "" {
			fmt.Fprintf(&b, "  Guidance: %s\n", req.Guidance)
		}
		fmt.Fprintf(&b, "  Maturity Level: %d\n", req.MaturityLevel)
	}
	b.WriteString("\nEVIDENCE DOCUMENTS:\n")
	for i, excerpt := range evidence {
		fmt.Fprintf(&b, "\nDocument %d: %s (Page %d)\n", i+1, excerpt.DocumentName, excerpt.PageNum)
		fmt.Fprintf(&b, "Content: %s\n", Truncate(excerpt.Text, evidenceBudget))
	}
	b.WriteString(`
ANALYSIS INSTRUCTIONS:

1. For each requirement, analyze the evidence and determine:
   - OUTCOME: PASS (fully satisfies), PARTIAL (partially satisfies), FAIL (contradicts), or NOT_FOUND (no evidence)
   - CONFIDENCE: 0.0 to 1.0 based on strength and clarity of evidence
   - RATIONALE: Clear explanation of your assessment
   - CITATIONS: Direct quotes from evidence (max 30 words each)

2. For any requirement that is PARTIAL, FAIL, or NOT_FOUND, identify gaps and recommend specific actions.

3. Be conservative: if evidence is unclear or ambiguous, use lower confidence scores. Reserve confidence near 1.0 for explicit, unambiguous policy statements; screenshots alone should not score above the 0.5-0.6 band.

4. Never hallucinate - only cite evidence that actually exists in the provided documents.

5. Focus on concrete evidence like policies, procedures, configurations, and screenshots.

`)
	b.WriteString(scanSchema)
	return b.String()
}
