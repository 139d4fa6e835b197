package content

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func writePack(t *testing.T, questionsPerCategory int, mutate func(dir string)) string {
	t.Helper()
	dir := t.TempDir()

	var cats []Category
	for _, id := range Round1CategoryIDs {
		cats = append(cats, Category{ID: id, Name: "Category " + id})
	}
	catDoc, _ := json.Marshal(map[string]any{"categories": cats})
	if err := os.WriteFile(filepath.Join(dir, "categories.v1.json"), catDoc, 0o644); err != nil {
		t.Fatal(err)
	}

	allIDs := append([]string{}, Round1CategoryIDs...)
	allIDs = append(allIDs, FinalCategoryID)
	for _, catID := range allIDs {
		var qs []map[string]any
		for i := 0; i < questionsPerCategory; i++ {
			qs = append(qs, map[string]any{
				"id":         fmt.Sprintf("%s-%d", catID, i),
				"categoryId": catID,
				"prompt":     "prompt?",
				"answers":    []string{"w", "x", "y", "z"},
				"correct":    "a",
			})
		}
		doc, _ := json.Marshal(qs)
		name := fmt.Sprintf("questions.%s.json", catID)
		if err := os.WriteFile(filepath.Join(dir, name), doc, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	if mutate != nil {
		mutate(dir)
	}
	return dir
}

func TestLoadValidPack(t *testing.T) {
	s, err := Load(writePack(t, 10, nil))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if got := len(s.Categories()); got != len(Round1CategoryIDs) {
		t.Fatalf("expected %d categories, got %d", len(Round1CategoryIDs), got)
	}
	if got := len(s.FinalQuestions()); got != 10 {
		t.Fatalf("expected 10 final questions, got %d", got)
	}

	q, ok := s.Question("general-0")
	if !ok {
		t.Fatal("question lookup failed")
	}
	if q.Correct != "A" {
		t.Fatalf("correct choice not uppercased: %q", q.Correct)
	}
	if q.TimeLimitMs != DefaultTimeLimitMs {
		t.Fatalf("expected default time limit, got %d", q.TimeLimitMs)
	}
	if q.Answers != [4]string{"w", "x", "y", "z"} {
		t.Fatalf("answers not normalized: %v", q.Answers)
	}
}

func TestLoadRejectsMissingDirectory(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestLoadRejectsShortCategory(t *testing.T) {
	if _, err := Load(writePack(t, 9, nil)); err == nil {
		t.Fatal("expected error when a category has fewer than the minimum questions")
	}
}

func TestLoadRejectsDuplicateQuestionIDs(t *testing.T) {
	dir := writePack(t, 10, func(dir string) {
		dup := []map[string]any{{
			"id":         "general-0",
			"categoryId": "movies",
			"prompt":     "dupe?",
			"answers":    []string{"a", "b", "c", "d"},
			"correct":    "A",
		}}
		doc, _ := json.Marshal(dup)
		os.WriteFile(filepath.Join(dir, "questions.extra.json"), doc, 0o644)
	})
	if _, err := Load(dir); err == nil {
		t.Fatal("expected duplicate id error")
	}
}

func TestLoadRejectsMissingFinalPool(t *testing.T) {
	dir := writePack(t, 10, func(dir string) {
		os.Remove(filepath.Join(dir, "questions."+FinalCategoryID+".json"))
	})
	if _, err := Load(dir); err == nil {
		t.Fatal("expected error for missing final pool")
	}
}

func TestCategoryNameFallsBackToID(t *testing.T) {
	s, err := Load(writePack(t, 10, nil))
	if err != nil {
		t.Fatal(err)
	}
	if got := s.CategoryName("movies"); got != "Category movies" {
		t.Fatalf("unexpected name %q", got)
	}
	if got := s.CategoryName("mystery"); got != "mystery" {
		t.Fatalf("expected id fallback, got %q", got)
	}
}

func TestNormalizeAnswersShapes(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want [4]string
	}{
		{
			name: "letter map",
			raw:  `{"A":"one","B":"two","C":"three","D":"four"}`,
			want: [4]string{"one", "two", "three", "four"},
		},
		{
			name: "lowercase letter map",
			raw:  `{"a":"one","b":"two","c":"three","d":"four"}`,
			want: [4]string{"one", "two", "three", "four"},
		},
		{
			name: "plain array",
			raw:  `["one","two","three","four"]`,
			want: [4]string{"one", "two", "three", "four"},
		},
		{
			name: "short array pads with placeholder",
			raw:  `["one","two"]`,
			want: [4]string{"one", "two", Placeholder, Placeholder},
		},
		{
			name: "labeled objects",
			raw:  `[{"label":"B","text":"two"},{"label":"A","text":"one"}]`,
			want: [4]string{"one", "two", Placeholder, Placeholder},
		},
		{
			name: "letter and value keys",
			raw:  `[{"letter":"A","value":"one"},{"letter":"D","answer":"four"}]`,
			want: [4]string{"one", Placeholder, Placeholder, "four"},
		},
		{
			name: "unlabeled objects fill in order",
			raw:  `[{"text":"one"},{"text":"two"}]`,
			want: [4]string{"one", "two", Placeholder, Placeholder},
		},
		{
			name: "empty input",
			raw:  ``,
			want: [4]string{Placeholder, Placeholder, Placeholder, Placeholder},
		},
		{
			name: "blank strings become placeholders",
			raw:  `["one","  ","three",""]`,
			want: [4]string{"one", Placeholder, "three", Placeholder},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NormalizeAnswers(json.RawMessage(tc.raw))
			if got != tc.want {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}
