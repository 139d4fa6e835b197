package content

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

const (
	// FinalCategoryID is the reserved category for the elimination round.
	FinalCategoryID = "final_podium"

	// DefaultTimeLimitMs applies when a question file omits timeLimitMs.
	DefaultTimeLimitMs = 5000

	minQuestionsPerCategory = 10
)

// Round1CategoryIDs are the categories every content pack must supply.
// The first entry is the fixed opening block; the rest are pickable.
var Round1CategoryIDs = []string{
	"general",
	"us_history",
	"geography",
	"movies",
	"music",
	"video_games",
	"words",
	"science",
	"sports",
	"decades",
	"what_next",
	"animals",
}

// Category is one pickable trivia category.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Question is a fully normalized trivia question. Answers always holds
// exactly four display strings in A..D order.
type Question struct {
	ID          string
	CategoryID  string
	Prompt      string
	Answers     [4]string
	Correct     string
	TimeLimitMs int
}

// Store is the read-only question index for a process. Loaded once at
// startup and never mutated afterwards, so it is safe for unsynchronized
// concurrent reads across rooms.
type Store struct {
	categories     []Category
	byCategory     map[string][]Question
	byID           map[string]Question
	finalQuestions []Question
}

type rawQuestion struct {
	ID          string          `json:"id"`
	CategoryID  string          `json:"categoryId"`
	Prompt      string          `json:"prompt"`
	Answers     json.RawMessage `json:"answers"`
	Correct     string          `json:"correct"`
	TimeLimitMs int             `json:"timeLimitMs"`
}

type categoriesDoc struct {
	Categories []Category `json:"categories"`
}

// Load reads categories.v1.json plus every questions.*.json file under dir,
// validates the pack, and returns an immutable Store. Any integrity problem
// is fatal to startup.
func Load(dir string) (*Store, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("content directory %s missing: %w", dir, err)
	}

	catPath := filepath.Join(dir, "categories.v1.json")
	catData, err := os.ReadFile(catPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", catPath, err)
	}
	var doc categoriesDoc
	if err := json.Unmarshal(catData, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", catPath, err)
	}

	s := &Store{
		categories: doc.Categories,
		byCategory: make(map[string][]Question),
		byID:       make(map[string]Question),
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list content directory: %w", err)
	}

	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "questions.") || !strings.HasSuffix(name, ".json") {
			continue
		}
		if err := s.loadQuestionFile(filepath.Join(dir, name)); err != nil {
			return nil, err
		}
	}

	for _, id := range Round1CategoryIDs {
		if n := len(s.byCategory[id]); n < minQuestionsPerCategory {
			return nil, fmt.Errorf("category %q must have at least %d questions, found %d", id, minQuestionsPerCategory, n)
		}
	}

	s.finalQuestions = s.byCategory[FinalCategoryID]
	if len(s.finalQuestions) == 0 {
		return nil, fmt.Errorf("no final round questions found (category %q)", FinalCategoryID)
	}
	if len(s.finalQuestions) < minQuestionsPerCategory {
		log.Warn().
			Int("count", len(s.finalQuestions)).
			Msg("final podium pool is short; games may run out of questions")
	}

	log.Info().
		Int("categories", len(s.byCategory)).
		Int("questions", len(s.byID)).
		Int("final_questions", len(s.finalQuestions)).
		Msg("content loaded")

	return s, nil
}

func (s *Store) loadQuestionFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	var raws []rawQuestion
	if err := json.Unmarshal(data, &raws); err != nil {
		return fmt.Errorf("expected a question array in %s: %w", path, err)
	}

	for _, rq := range raws {
		if rq.ID == "" || rq.CategoryID == "" || rq.Prompt == "" || len(rq.Answers) == 0 || rq.Correct == "" {
			return fmt.Errorf("invalid question %q in %s", rq.ID, path)
		}
		if _, dup := s.byID[rq.ID]; dup {
			return fmt.Errorf("duplicate question id %q in %s", rq.ID, path)
		}

		q := Question{
			ID:          rq.ID,
			CategoryID:  rq.CategoryID,
			Prompt:      rq.Prompt,
			Answers:     NormalizeAnswers(rq.Answers),
			Correct:     strings.ToUpper(strings.TrimSpace(rq.Correct)),
			TimeLimitMs: rq.TimeLimitMs,
		}
		if q.TimeLimitMs <= 0 {
			q.TimeLimitMs = DefaultTimeLimitMs
		}

		s.byID[q.ID] = q
		s.byCategory[q.CategoryID] = append(s.byCategory[q.CategoryID], q)
	}

	return nil
}

// Categories returns the category catalog in file order.
func (s *Store) Categories() []Category {
	return s.categories
}

// CategoryName resolves a category id to its display name, falling back to
// the id itself for unknown categories.
func (s *Store) CategoryName(id string) string {
	for _, c := range s.categories {
		if c.ID == id {
			return c.Name
		}
	}
	return id
}

// QuestionsFor returns every question in a category, in file order.
func (s *Store) QuestionsFor(categoryID string) []Question {
	return s.byCategory[categoryID]
}

// FinalQuestions returns the final round pool.
func (s *Store) FinalQuestions() []Question {
	return s.finalQuestions
}

// Question looks up a question by id.
func (s *Store) Question(id string) (Question, bool) {
	q, ok := s.byID[id]
	return q, ok
}
