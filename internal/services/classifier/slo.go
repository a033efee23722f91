package classifier

import (
	"regexp"
	"strings"
)

// Curriculum-standard code shapes seen in indexed documents:
//   - Common Core: CCSS.MATH.CONTENT.3.OA.A.1, CCSS.ELA-LITERACY.RI.5.2
//   - NGSS: MS-PS1-4, HS-LS2-7, K-ESS2-1, 3-LS4-2
//   - State-style dotted codes: MATH.3.OA.A.1, ELA.5.RI.2, SCI.8.E.4.3
var sloPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bCCSS\.[A-Z-]+(?:\.[A-Za-z0-9-]+){2,6}\b`),
	regexp.MustCompile(`\b(?:K|MS|HS|[1-9]|1[0-2])-[A-Z]{2,4}[0-9]?-[0-9]{1,2}\b`),
	regexp.MustCompile(`\b[A-Z]{2,5}(?:\.[A-Za-z0-9]{1,4}){2,5}\b`),
}

// ExtractSLOCodes pulls Student Learning Objective codes out of free text.
// Codes are uppercased and deduplicated, preserving first-occurrence order.
// Patterns run most-specific first and consume their spans, so a Common Core
// code is not re-reported in fragments by the generic dotted pattern.
func ExtractSLOCodes(text string) []string {
	var codes []string
	seen := make(map[string]struct{})

	remaining := text
	for _, re := range sloPatterns {
		for _, match := range re.FindAllString(remaining, -1) {
			code := strings.ToUpper(match)
			if _, dup := seen[code]; dup {
				continue
			}
			// Dotted state-style codes must carry at least one digit, or
			// plain prose like "U.S.A" would slip through.
			if !strings.ContainsAny(code, "0123456789") {
				continue
			}
			seen[code] = struct{}{}
			codes = append(codes, code)
		}
		remaining = re.ReplaceAllString(remaining, " ")
	}
	return codes
}
