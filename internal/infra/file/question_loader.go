package file

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"trivia-round-service/internal/domain"
)

// sourceEntry accepts both "prompt" and the legacy "question" key.
type sourceEntry struct {
	Category   string   `yaml:"category"`
	Difficulty string   `yaml:"difficulty"`
	Prompt     string   `yaml:"prompt"`
	Question   string   `yaml:"question"`
	Options    []string `yaml:"options"`
	Answer     string   `yaml:"answer"`
}

type sourceDocument struct {
	Questions []sourceEntry `yaml:"questions"`
}

// QuestionLoader reads question entries from a YAML or JSON file. The document
// is either a list of entries or an object with a "questions" list.
type QuestionLoader struct {
	path string
}

func NewQuestionLoader(path string) *QuestionLoader {
	return &QuestionLoader{path: path}
}

func (l *QuestionLoader) LoadQuestions(_ context.Context) ([]domain.QuestionEntry, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read questions: %w", err)
	}
	entries, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", l.path, err)
	}
	return entries, nil
}

// Parse decodes a question document. JSON is valid YAML, so one decoder serves both.
func Parse(data []byte) ([]domain.QuestionEntry, error) {
	var raw []sourceEntry
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && (trimmed[0] == '[' || trimmed[0] == '-') {
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	} else {
		var doc sourceDocument
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
		raw = doc.Questions
	}

	entries := make([]domain.QuestionEntry, 0, len(raw))
	for _, e := range raw {
		prompt := e.Prompt
		if prompt == "" {
			prompt = e.Question
		}
		entries = append(entries, domain.QuestionEntry{
			Category:   e.Category,
			Difficulty: e.Difficulty,
			Prompt:     prompt,
			Options:    e.Options,
			Answer:     e.Answer,
		})
	}
	return entries, nil
}
