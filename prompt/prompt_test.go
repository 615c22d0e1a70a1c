package prompt

import (
	"strings"
	"testing"

	"workshop-matchmaker/roster"
)

var sample = []roster.AttendeeRecord{
	{ID: "1", Name: "Alice", Email: "alice@example.com", Interests: "AI, machine learning", LookingToConnectWith: "ML engineers"},
	{ID: "2", Name: "Bob", Email: "bob@example.com", Interests: "web development", LookingToConnectWith: "frontend developers"},
}

func TestCorpus(t *testing.T) {
	got := Corpus(sample)

	want := "WORKSHOP ATTENDEES:\n\n" +
		"- Alice (alice@example.com)\n" +
		"  Interests: AI, machine learning\n" +
		"  Looking to connect with: ML engineers\n\n" +
		"- Bob (bob@example.com)\n" +
		"  Interests: web development\n" +
		"  Looking to connect with: frontend developers\n\n"

	if got != want {
		t.Errorf("unexpected corpus:\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestCorpusDeterministic(t *testing.T) {
	first := Corpus(sample)
	second := Corpus(sample)
	if first != second {
		t.Error("expected byte-identical output for identical input")
	}
}

func TestCorpusEmpty(t *testing.T) {
	got := Corpus(nil)
	if got != "WORKSHOP ATTENDEES:\n\n" {
		t.Errorf("expected label-only corpus for empty input, got %q", got)
	}
}

func TestCorpusPreservesOrder(t *testing.T) {
	reversed := []roster.AttendeeRecord{sample[1], sample[0]}
	got := Corpus(reversed)
	if strings.Index(got, "Bob") > strings.Index(got, "Alice") {
		t.Error("expected records rendered in input order")
	}
}

func TestInstructionEmbedsCorpus(t *testing.T) {
	corpus := Corpus(sample)
	instruction := Instruction(corpus)

	if !strings.Contains(instruction, corpus) {
		t.Error("expected instruction to embed the corpus verbatim")
	}
	if !strings.Contains(instruction, "MAXIMUM 3 people") {
		t.Error("expected instruction to carry the group size rule")
	}
	if !strings.Contains(instruction, "at least one group") {
		t.Error("expected instruction to carry the coverage rule")
	}
}

func TestEstimateTokens(t *testing.T) {
	n, err := EstimateTokens(Instruction(Corpus(sample)), "gpt-4o")
	if err != nil {
		// The tokenizer fetches its encoding on first use.
		t.Skipf("tokenizer unavailable: %v", err)
	}
	if n == 0 {
		t.Error("expected a non-zero token count")
	}
}
