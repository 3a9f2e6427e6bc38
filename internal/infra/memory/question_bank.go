package memory

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"time"

	"bleepy-challenge-service/internal/domain"
	"gopkg.in/yaml.v3"
)

// StaticQuestionBank serves a fixed question set (useful for tests/demos).
type StaticQuestionBank struct {
	questions []domain.Question
	byID      map[string]domain.Question

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewStaticQuestionBank(questions []domain.Question) *StaticQuestionBank {
	byID := make(map[string]domain.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	return &StaticQuestionBank{
		questions: questions,
		byID:      byID,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (b *StaticQuestionBank) GetQuestion(_ context.Context, questionID string) (domain.Question, error) {
	if q, ok := b.byID[questionID]; ok {
		return q, nil
	}
	return domain.Question{}, domain.ErrQuestionNotFound
}

// SampleQuestions returns up to count random question ids matching the filters.
func (b *StaticQuestionBank) SampleQuestions(_ context.Context, categories []string, difficulties []domain.Difficulty, count int) ([]string, error) {
	pool := make([]string, 0, len(b.questions))
	for _, q := range b.questions {
		if matchesCategory(q, categories) && matchesDifficulty(q, difficulties) {
			pool = append(pool, q.ID)
		}
	}

	b.mu.Lock()
	b.rnd.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	b.mu.Unlock()

	if count < len(pool) {
		pool = pool[:count]
	}
	return pool, nil
}

func matchesCategory(q domain.Question, categories []string) bool {
	if len(categories) == 0 {
		return true
	}
	for _, c := range categories {
		if c == q.Category {
			return true
		}
	}
	return false
}

func matchesDifficulty(q domain.Question, difficulties []domain.Difficulty) bool {
	if len(difficulties) == 0 {
		return true
	}
	for _, d := range difficulties {
		if d == q.Difficulty {
			return true
		}
	}
	return false
}

type questionFile struct {
	Questions []domain.Question `yaml:"questions"`
}

// LoadQuestionsFile reads a YAML question set of the form `questions: [{id, category, difficulty, correct_answer}]`.
func LoadQuestionsFile(path string) ([]domain.Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f questionFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i, q := range f.Questions {
		if q.ID == "" || q.CorrectAnswer == "" {
			return nil, fmt.Errorf("question %d in %s: id and correct_answer are required", i, path)
		}
		if !q.Difficulty.Valid() {
			return nil, fmt.Errorf("question %s in %s: unknown difficulty %q", q.ID, path, q.Difficulty)
		}
	}
	return f.Questions, nil
}

// SampleQuestionSet is the built-in bank used when no question source is configured.
func SampleQuestionSet() []domain.Question {
	return []domain.Question{
		{ID: "cardio-1", Category: "Cardiology", Difficulty: domain.DifficultyHard, CorrectAnswer: "Amiodarone"},
		{ID: "cardio-2", Category: "Cardiology", Difficulty: domain.DifficultyHard, CorrectAnswer: "Aortic stenosis"},
		{ID: "cardio-3", Category: "Cardiology", Difficulty: domain.DifficultyHard, CorrectAnswer: "Wolff-Parkinson-White"},
		{ID: "cardio-4", Category: "Cardiology", Difficulty: domain.DifficultyHard, CorrectAnswer: "Pericarditis"},
		{ID: "cardio-5", Category: "Cardiology", Difficulty: domain.DifficultyHard, CorrectAnswer: "Digoxin"},
		{ID: "cardio-6", Category: "Cardiology", Difficulty: domain.DifficultyMedium, CorrectAnswer: "Atrial fibrillation"},
		{ID: "cardio-7", Category: "Cardiology", Difficulty: domain.DifficultyEasy, CorrectAnswer: "Sinoatrial node"},
		{ID: "neuro-1", Category: "Neurology", Difficulty: domain.DifficultyMedium, CorrectAnswer: "Broca's area"},
		{ID: "neuro-2", Category: "Neurology", Difficulty: domain.DifficultyEasy, CorrectAnswer: "Cerebellum"},
		{ID: "neuro-3", Category: "Neurology", Difficulty: domain.DifficultyHard, CorrectAnswer: "Guillain-Barre syndrome"},
		{ID: "resp-1", Category: "Respiratory", Difficulty: domain.DifficultyEasy, CorrectAnswer: "Alveoli"},
		{ID: "resp-2", Category: "Respiratory", Difficulty: domain.DifficultyMedium, CorrectAnswer: "Salbutamol"},
	}
}
