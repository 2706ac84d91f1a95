package englishquest

import (
	"reflect"
	"sort"
	"testing"
)

func TestQuestionValidate(t *testing.T) {
	valid := Question{
		Text:          "She ___ tennis.",
		Options:       []string{"play", "plays", "playing", "played"},
		CorrectAnswer: "plays",
	}

	tests := []struct {
		name    string
		mutate  func(q *Question)
		wantErr bool
	}{
		{"valid", func(q *Question) {}, false},
		{"empty text", func(q *Question) { q.Text = "" }, true},
		{"three options", func(q *Question) { q.Options = q.Options[:3] }, true},
		{"five options", func(q *Question) { q.Options = append(q.Options, "plaied") }, true},
		{"duplicate options", func(q *Question) { q.Options[0] = "plays" }, true},
		{"empty option", func(q *Question) { q.Options[2] = "" }, true},
		{"answer not an option", func(q *Question) { q.CorrectAnswer = "player" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := Question{
				Text:          valid.Text,
				Options:       append([]string(nil), valid.Options...),
				CorrectAnswer: valid.CorrectAnswer,
			}
			tt.mutate(&q)
			if err := q.Validate(); (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseDifficulty(t *testing.T) {
	for _, d := range Difficulties {
		got, err := ParseDifficulty(string(d))
		if err != nil || got != d {
			t.Fatalf("ParseDifficulty(%q) = %q, %v", d, got, err)
		}
	}
	if _, err := ParseDifficulty("beginner"); err == nil {
		t.Fatal("ParseDifficulty accepted a lowercase label")
	}
	if _, err := ParseDifficulty("Expert"); err == nil {
		t.Fatal("ParseDifficulty accepted an unknown label")
	}
}

func TestShuffleOptionsPreservesCorrectness(t *testing.T) {
	original := makeQuestions(6)

	shuffled := ShuffleOptions(original)
	if len(shuffled) != len(original) {
		t.Fatalf("shuffled %d questions, want %d", len(shuffled), len(original))
	}

	for i, q := range shuffled {
		if q.Text != original[i].Text {
			t.Fatalf("question %d text changed", i)
		}
		if q.CorrectAnswer != original[i].CorrectAnswer {
			t.Fatalf("question %d correct answer changed", i)
		}

		got := append([]string(nil), q.Options...)
		want := append([]string(nil), original[i].Options...)
		sort.Strings(got)
		sort.Strings(want)
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("question %d option set changed: %v vs %v", i, got, want)
		}

		if err := q.Validate(); err != nil {
			t.Fatalf("shuffled question %d invalid: %v", i, err)
		}
	}
}

func TestShuffleOptionsDoesNotMutateInput(t *testing.T) {
	original := makeQuestions(1)
	saved := append([]string(nil), original[0].Options...)

	// Shuffle repeatedly; the input must stay untouched.
	for i := 0; i < 10; i++ {
		ShuffleOptions(original)
	}

	if !reflect.DeepEqual(original[0].Options, saved) {
		t.Fatal("ShuffleOptions mutated its input")
	}
}

func TestPublicWithholdsCorrectAnswer(t *testing.T) {
	q := makeQuestions(1)[0]
	public := q.Public()

	if public.Text != q.Text {
		t.Fatalf("public text = %q, want %q", public.Text, q.Text)
	}
	if !reflect.DeepEqual(public.Options, q.Options) {
		t.Fatalf("public options = %v, want %v", public.Options, q.Options)
	}

	// The public view shares no backing storage with the question.
	public.Options[0] = "tampered"
	if q.Options[0] == "tampered" {
		t.Fatal("Public() aliases the question's option slice")
	}
}
