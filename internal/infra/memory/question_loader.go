package memory

import (
	"context"

	"trivia-round-service/internal/domain"
)

// StaticQuestionLoader serves a fixed slice of entries (useful for tests/demos).
type StaticQuestionLoader struct {
	entries []domain.QuestionEntry
}

func NewStaticQuestionLoader(entries []domain.QuestionEntry) *StaticQuestionLoader {
	return &StaticQuestionLoader{entries: entries}
}

func (l *StaticQuestionLoader) LoadQuestions(_ context.Context) ([]domain.QuestionEntry, error) {
	return append([]domain.QuestionEntry(nil), l.entries...), nil
}

// SampleQuestions is a small built-in set used when no question source is configured.
func SampleQuestions() []domain.QuestionEntry {
	return []domain.QuestionEntry{
		{Category: "history", Difficulty: "easy", Prompt: "Which civilisation built the pyramids of Giza?", Options: []string{"Egyptians", "Romans", "Aztecs", "Greeks"}, Answer: "Egyptians"},
		{Category: "history", Difficulty: "medium", Prompt: "In which year did the Berlin Wall fall?", Options: []string{"1989", "1991", "1985", "1961"}, Answer: "1989"},
		{Category: "history", Difficulty: "hard", Prompt: "Which treaty ended the Thirty Years' War?", Options: []string{"Peace of Westphalia", "Treaty of Utrecht", "Treaty of Versailles", "Peace of Augsburg"}, Answer: "Peace of Westphalia"},
		{Category: "geography", Difficulty: "easy", Prompt: "What is the capital of France?", Options: []string{"Paris", "Lyon", "Marseille", "Nice"}, Answer: "Paris"},
		{Category: "geography", Difficulty: "medium", Prompt: "Which river flows through Budapest?", Options: []string{"Danube", "Rhine", "Vistula", "Elbe"}, Answer: "Danube"},
		{Category: "astronomy", Difficulty: "easy", Prompt: "Which planet is known as the Red Planet?", Options: []string{"Mars", "Venus", "Jupiter", "Mercury"}, Answer: "Mars"},
		{Category: "astronomy", Difficulty: "hard", Prompt: "What is the closest star system to the Sun?", Options: []string{"Alpha Centauri", "Sirius", "Barnard's Star", "Vega"}, Answer: "Alpha Centauri"},
		{Category: "science", Difficulty: "medium", Prompt: "What is the chemical symbol for gold?", Options: []string{"Au", "Ag", "Gd", "Go"}, Answer: "Au"},
	}
}
