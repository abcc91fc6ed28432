package prompt

import "testing"

func TestRenderMultipleChoice(t *testing.T) {
	c := Candidate{
		Type:     TypeMultipleChoice,
		Question: " Which planet is largest? ",
		Options:  []string{"Mars", "Jupiter", "Venus"},
	}
	want := "Which planet is largest?\n\nA. Mars\nB. Jupiter\nC. Venus"
	if got := c.Render(); got != want {
		t.Fatalf("Render() = %q, want %q", got, want)
	}
}

func TestRenderOpenIgnoresOptions(t *testing.T) {
	c := Candidate{Type: TypeOpen, Question: "Name the capital of France.", Options: []string{"x"}}
	if got := c.Render(); got != "Name the capital of France." {
		t.Fatalf("unexpected render: %q", got)
	}
}

func TestEnsureIDIsStable(t *testing.T) {
	a := Candidate{Type: TypeOpen, Question: "q", ExpectedAnswer: "a"}
	b := Candidate{Type: TypeOpen, Question: "q", ExpectedAnswer: "a", Tags: []string{"x"}}
	if err := a.EnsureID(); err != nil {
		t.Fatalf("EnsureID error: %v", err)
	}
	if err := b.EnsureID(); err != nil {
		t.Fatalf("EnsureID error: %v", err)
	}
	if a.ID == "" || a.ID != b.ID {
		t.Fatalf("expected equal non-empty ids, got %q and %q", a.ID, b.ID)
	}

	c := Candidate{ID: "fixed"}
	if err := c.EnsureID(); err != nil || c.ID != "fixed" {
		t.Fatalf("expected existing id to be kept, got %q (%v)", c.ID, err)
	}
}

func TestAddTagsDeduplicates(t *testing.T) {
	c := Candidate{Tags: []string{"a"}}
	c.AddTags("b", "a", "", "b", "c")
	want := []string{"a", "b", "c"}
	if len(c.Tags) != len(want) {
		t.Fatalf("tags = %v, want %v", c.Tags, want)
	}
	for i := range want {
		if c.Tags[i] != want[i] {
			t.Fatalf("tags = %v, want %v", c.Tags, want)
		}
	}
}

func TestLetters(t *testing.T) {
	c := Candidate{Type: TypeMultipleChoice, Options: []string{"1", "2"}}
	got := c.Letters()
	if len(got) != 2 || got[0] != "A" || got[1] != "B" {
		t.Fatalf("Letters() = %v", got)
	}
	if OptionLetter(26) != "" {
		t.Fatal("expected empty letter beyond Z")
	}
}
