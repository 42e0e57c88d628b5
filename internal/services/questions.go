package services

import (
	"strconv"

	"github.com/soaringjerry/Vox/internal/utils"
)

// QuestionCount is the length of the onboarding questionnaire.
const QuestionCount = 4

// Question is one onboarding prompt. IDs are 1-based ordinals and double as
// the question_id stored with each recording.
type Question struct {
	ID       int    `json:"id"`
	Text     string `json:"text"`
	Subtitle string `json:"subtitle"`
}

// Questions returns the fixed questionnaire in locale, falling back to
// English per string.
func Questions(locale string) []Question {
	out := make([]Question, 0, QuestionCount)
	for id := 1; id <= QuestionCount; id++ {
		k := "question." + strconv.Itoa(id)
		out = append(out, Question{
			ID:       id,
			Text:     utils.T(locale, k+".text"),
			Subtitle: utils.T(locale, k+".subtitle"),
		})
	}
	return out
}

// QuestionLabel is the admin-facing label for a recording's question id.
func QuestionLabel(id int) string {
	if id == 0 {
		return "Complete Recording"
	}
	return "Question " + strconv.Itoa(id)
}
