package quiz

import (
	"fmt"
	"io/fs"
	"math/rand"
	"path/filepath"
	"sort"
	"strings"

	"lanquiz/api"

	"gopkg.in/yaml.v3"
)

// Bank holds the full set of available questions for a host process.
// The set is immutable after Load.
type Bank struct {
	questions []api.Question
}

type questionFile struct {
	Questions []api.Question `yaml:"Questions"`
}

// LoadBank walks an fs.FS and collects questions from every .yml/.yaml
// file found. Malformed questions fail the load rather than being
// silently skipped.
func LoadBank(fsys fs.FS) (*Bank, error) {
	bank := &Bank{}

	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch filepath.Ext(path) {
		case ".yml", ".yaml":
		default:
			return nil
		}

		b, err := fs.ReadFile(fsys, path)
		if err != nil {
			return err
		}

		file := questionFile{}
		if err := yaml.Unmarshal(b, &file); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}

		for _, q := range file.Questions {
			if err := validateQuestion(q); err != nil {
				return fmt.Errorf("%s: question %q: %w", path, q.ID, err)
			}
			bank.questions = append(bank.questions, q)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return bank, nil
}

// NewBank builds a bank from an in-memory question set.
func NewBank(questions []api.Question) (*Bank, error) {
	for _, q := range questions {
		if err := validateQuestion(q); err != nil {
			return nil, fmt.Errorf("question %q: %w", q.ID, err)
		}
	}
	return &Bank{questions: append([]api.Question(nil), questions...)}, nil
}

func validateQuestion(q api.Question) error {
	if q.ID == "" {
		return fmt.Errorf("missing id")
	}
	if q.Prompt == "" {
		return fmt.Errorf("missing prompt")
	}
	if len(q.Options) != api.NumOptions {
		return fmt.Errorf("got %d options, want %d", len(q.Options), api.NumOptions)
	}
	if q.CorrectIndex < 0 || q.CorrectIndex >= api.NumOptions {
		return fmt.Errorf("correct index %d out of range", q.CorrectIndex)
	}
	return nil
}

// Len returns the total number of questions in the bank.
func (b *Bank) Len() int {
	return len(b.questions)
}

// Categories returns the sorted set of categories present in the bank.
func (b *Bank) Categories() []string {
	seen := map[string]struct{}{}
	for _, q := range b.questions {
		if q.Category != "" {
			seen[q.Category] = struct{}{}
		}
	}

	categories := make([]string, 0, len(seen))
	for c := range seen {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	return categories
}

// Select filters the bank by category membership, shuffles the result
// with the supplied random source and returns a prefix of length
// min(count, available). An empty category filter selects everything.
func (b *Bank) Select(count int, categories []string, rng *rand.Rand) []api.Question {
	filtered := make([]api.Question, 0, len(b.questions))
	for _, q := range b.questions {
		if matchesCategory(q, categories) {
			filtered = append(filtered, q)
		}
	}

	rng.Shuffle(len(filtered), func(i, j int) {
		filtered[i], filtered[j] = filtered[j], filtered[i]
	})

	if count < len(filtered) {
		filtered = filtered[:count]
	}
	return filtered
}

func matchesCategory(q api.Question, categories []string) bool {
	if len(categories) == 0 {
		return true
	}
	for _, c := range categories {
		if strings.EqualFold(q.Category, c) {
			return true
		}
	}
	return false
}
