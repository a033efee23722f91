package prompts

import "github.com/praxislearn/curricula/internal/models"

// baseSystem is prepended to every synthesis call unless the request carries
// its own system instruction.
const baseSystem = `You are an experienced curriculum specialist helping K-12 educators. ` +
	`Answer precisely, cite grade-level expectations when relevant, and keep the ` +
	`reading level appropriate for a professional teacher audience.`

// groundingPreamble constrains the model to the retrieved curriculum text.
const groundingPreamble = `Ground your answer in the curriculum excerpts below. ` +
	`Prefer the excerpts over general knowledge; when the excerpts do not cover the ` +
	`question, say so explicitly before answering from general knowledge. ` +
	`Cite excerpts by their bracketed number.`

// templates holds the per-content-type instruction appended to the system
// prompt. Missing entries fall back to the general template.
var templates = map[models.ContentType]string{
	models.ContentTypeExplanation: `Explain the concept clearly with one worked example. ` +
		`State the underlying learning objective first, then build intuition before formalism.`,

	models.ContentTypeLessonPlan: `Produce a structured lesson plan: learning objectives, ` +
		`required materials, warm-up, guided practice, independent practice, and a closing ` +
		`formative check. Include rough timings for a standard class period.`,

	models.ContentTypeAssessment: `Write assessment items aligned to the stated objective. ` +
		`Mix recall and application items, include an answer key, and flag each item's ` +
		`depth-of-knowledge level.`,

	models.ContentTypeWorksheet: `Create practice exercises ordered from scaffolded to ` +
		`independent. Include worked first examples and leave later problems unguided. ` +
		`Provide an answer key at the end.`,

	models.ContentTypeRubric: `Build a criterion-referenced rubric with 4 performance ` +
		`levels. Each cell must describe observable evidence, not vague quality words.`,

	models.ContentTypeDifferentiation: `Suggest concrete differentiation moves: supports ` +
		`for students below grade level, language supports for English learners, and ` +
		`extensions for advanced students. Keep the core objective identical for all groups.`,

	models.ContentTypeGeneral: `Answer the educator's question directly and practically.`,
}

// Template returns the instruction text for a content type.
func Template(ct models.ContentType) string {
	if tmpl, ok := templates[ct]; ok {
		return tmpl
	}
	return templates[models.ContentTypeGeneral]
}
