// Package classifier maps free-text curriculum queries to a pedagogical
// content type. Routing is a first-match-wins ordered rule table of keyword
// regexes; unmatched queries fall through to the general template.
package classifier

import (
	"regexp"
	"sort"

	"github.com/praxislearn/curricula/internal/models"

	fiberlog "github.com/gofiber/fiber/v2/log"
)

type rule struct {
	contentType models.ContentType
	pattern     *regexp.Regexp
}

// The built-in table. More specific producer intents (lesson plans,
// assessments) come before the broad explanation bucket.
var builtinRules = []rule{
	{models.ContentTypeLessonPlan, regexp.MustCompile(`(?i)\b(lesson\s*plans?|unit\s*plans?|teaching\s+sequence|plan\s+a\s+lesson|scheme\s+of\s+work)\b`)},
	{models.ContentTypeAssessment, regexp.MustCompile(`(?i)\b(assessments?|quiz(zes)?|tests?\b|exam(s|ination)?|multiple.choice|exit\s+tickets?)\b`)},
	{models.ContentTypeWorksheet, regexp.MustCompile(`(?i)\b(worksheets?|practice\s+(problems?|questions?|sheets?)|homework|drill)\b`)},
	{models.ContentTypeRubric, regexp.MustCompile(`(?i)\b(rubrics?|grading\s+criteria|marking\s+scheme|success\s+criteria)\b`)},
	{models.ContentTypeDifferentiation, regexp.MustCompile(`(?i)\b(differentiat\w*|scaffold\w*|ell\s+support|iep|accommodations?|struggling\s+(students?|learners?)|advanced\s+learners?)\b`)},
	{models.ContentTypeExplanation, regexp.MustCompile(`(?i)\b(explain|what\s+is|what\s+are|how\s+do(es)?|why\s+do(es)?|define|describe|meaning\s+of)\b`)},
}

// Classifier routes queries to content types.
type Classifier struct {
	rules []rule
}

// New builds a classifier. extra maps content-type names to regex patterns
// from config; those rules are tried before the built-in table, in name
// order so precedence does not depend on map iteration. Patterns that fail
// to compile are logged and skipped.
func New(extra map[string]string) *Classifier {
	rules := make([]rule, 0, len(extra)+len(builtinRules))

	names := make([]string, 0, len(extra))
	for name := range extra {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		re, err := regexp.Compile(extra[name])
		if err != nil {
			fiberlog.Warnf("Classifier: skipping invalid rule for %q: %v", name, err)
			continue
		}
		rules = append(rules, rule{contentType: models.ContentType(name), pattern: re})
	}

	rules = append(rules, builtinRules...)
	return &Classifier{rules: rules}
}

// Classify returns the content type for a query.
func (c *Classifier) Classify(query string) models.ContentType {
	for _, r := range c.rules {
		if r.pattern.MatchString(query) {
			return r.contentType
		}
	}
	return models.ContentTypeGeneral
}
