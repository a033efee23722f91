package prompts

import (
	"strings"
	"testing"

	"github.com/praxislearn/curricula/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildUsesTemplateAndGrounding(t *testing.T) {
	b := NewBuilder(100000)

	req := &models.SynthesisRequest{
		Query: "Create a lesson plan on fractions",
		History: []models.HistoryTurn{
			{Role: "user", Content: "we covered whole numbers last week"},
		},
	}
	chunks := []models.Chunk{
		{Document: "grade3-math.pdf", Text: "Students interpret products of whole numbers."},
		{Document: "grade3-math.pdf", Text: "Fractions are introduced as parts of a whole."},
	}

	p := b.Build(req, chunks, models.ContentTypeLessonPlan)

	assert.Contains(t, p.System, "lesson plan")
	assert.Contains(t, p.System, "Ground your answer")
	assert.Contains(t, p.System, "[1] (grade3-math.pdf)")
	assert.Contains(t, p.System, "[2] (grade3-math.pdf)")
	assert.Equal(t, req.Query, p.User)
	require.Len(t, p.History, 1)
}

func TestBuildWithoutChunksOmitsGrounding(t *testing.T) {
	b := NewBuilder(100000)

	p := b.Build(&models.SynthesisRequest{Query: "what is a numerator?"}, nil, models.ContentTypeExplanation)
	assert.NotContains(t, p.System, "Ground your answer")
	assert.Contains(t, p.System, "curriculum specialist")
}

func TestBuildHonorsCustomSystemInstruction(t *testing.T) {
	b := NewBuilder(100000)

	p := b.Build(&models.SynthesisRequest{
		Query:             "q",
		SystemInstruction: "You are a terse math coach.",
	}, nil, models.ContentTypeGeneral)

	assert.True(t, strings.HasPrefix(p.System, "You are a terse math coach."))
	assert.NotContains(t, p.System, "curriculum specialist")
}

func TestTrimHistoryDropsOldestFirst(t *testing.T) {
	b := NewBuilder(100000)

	long := strings.Repeat("curriculum standards alignment discussion ", 40)
	history := []models.HistoryTurn{
		{Role: "user", Content: long},
		{Role: "assistant", Content: long},
		{Role: "user", Content: "short recent question"},
	}

	// budget fits only the short recent turn
	kept := b.trimHistory(history, 60)
	require.Len(t, kept, 1)
	assert.Equal(t, "short recent question", kept[0].Content)

	// zero budget drops everything
	assert.Empty(t, b.trimHistory(history, 0))

	// ample budget keeps everything in order
	kept = b.trimHistory(history, 1<<20)
	require.Len(t, kept, 3)
	assert.Equal(t, "user", kept[0].Role)
	assert.Equal(t, "short recent question", kept[2].Content)
}

func TestFlatten(t *testing.T) {
	p := Prompt{
		History: []models.HistoryTurn{
			{Role: "user", Content: "hi"},
			{Role: "assistant", Content: "hello"},
		},
		User: "next question",
	}

	flat := p.Flatten()
	assert.Contains(t, flat, "user: hi")
	assert.Contains(t, flat, "assistant: hello")
	assert.True(t, strings.HasSuffix(flat, "next question"))
}

func TestTemplateFallback(t *testing.T) {
	assert.Equal(t, Template(models.ContentTypeGeneral), Template(models.ContentType("unknown")))
}
