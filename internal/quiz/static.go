package quiz

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// StaticLoader serves packs held in memory, e.g. read from a YAML file.
type StaticLoader struct {
	packs map[uuid.UUID]Pack
}

var _ Loader = (*StaticLoader)(nil)

func NewStaticLoader(packs ...Pack) *StaticLoader {
	m := make(map[uuid.UUID]Pack, len(packs))
	for _, p := range packs {
		m[p.Quiz.ID] = p
	}
	return &StaticLoader{packs: m}
}

func (l *StaticLoader) LoadQuiz(_ context.Context, quizID uuid.UUID) (Quiz, error) {
	p, ok := l.packs[quizID]
	if !ok {
		return Quiz{}, ErrNotFound
	}
	return p.Quiz, nil
}

func (l *StaticLoader) LoadQuestions(_ context.Context, quizID uuid.UUID) ([]Question, error) {
	p, ok := l.packs[quizID]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]Question, len(p.Questions))
	for i, q := range p.Questions {
		out[i] = q.Clone()
	}
	return out, nil
}

type filePack struct {
	ID          string     `yaml:"id"`
	Title       string     `yaml:"title"`
	Description string     `yaml:"description"`
	Questions   []Question `yaml:"questions"`
}

// ReadPackFile parses a YAML quiz definition. Missing ids and orders are filled in.
func ReadPackFile(path string) (Pack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Pack{}, fmt.Errorf("read quiz file: %w", err)
	}
	return ParsePack(data)
}

// ParsePack decodes a YAML quiz definition.
func ParsePack(data []byte) (Pack, error) {
	var raw filePack
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Pack{}, fmt.Errorf("decode quiz: %w", err)
	}

	id := uuid.New()
	if raw.ID != "" {
		parsed, err := uuid.Parse(raw.ID)
		if err != nil {
			return Pack{}, fmt.Errorf("parse quiz id: %w", err)
		}
		id = parsed
	}

	pack := Pack{
		Quiz: Quiz{
			ID:          id,
			Title:       raw.Title,
			Description: raw.Description,
			IsPublic:    true,
		},
		Questions: make([]Question, 0, len(raw.Questions)),
	}
	for i, q := range raw.Questions {
		if strings.TrimSpace(q.Text) == "" {
			return Pack{}, fmt.Errorf("question %d: empty text", i+1)
		}
		if q.ID == "" {
			q.ID = fmt.Sprintf("q%d", i+1)
		}
		if q.Order == 0 {
			q.Order = i + 1
		}
		if q.Type == "" {
			q.Type = TypeFreeText
			if len(q.Choices) > 0 {
				q.Type = TypeMultipleChoice
			}
		}
		if len(q.Choices) > MaxChoices {
			return Pack{}, fmt.Errorf("question %d: at most %d choices", i+1, MaxChoices)
		}
		pack.Questions = append(pack.Questions, q)
	}
	return pack, nil
}
