package scoring

import (
	"context"
	"regexp"
	"strings"
)

var (
	answerLabel      = regexp.MustCompile(`(?i)\banswer\b\s*(?:is\s*)?[:\-]?\s*\(?\**([A-Za-z])\**\)?(?:[^A-Za-z]|$)`)
	standaloneLetter = regexp.MustCompile(`\b([A-Z])\b`)
)

// MultipleChoice scores a response by the option letter it picks: 1 when the
// letter equals the expected answer, 0 otherwise.
type MultipleChoice struct{}

// ScoreOne implements Scorer.
func (MultipleChoice) ScoreOne(ctx context.Context, in Input) (*Score, error) {
	expected := strings.ToUpper(strings.TrimSpace(in.Prompt.ExpectedAnswer))
	if expected == "" {
		return nil, ErrNoExpectedAnswer
	}
	letter := ExtractLetter(in.Response, in.Prompt.Letters())
	if letter == "" {
		return nil, nil
	}
	s := &Score{ExtractedAnswer: letter, Reason: "expected " + expected}
	if letter == expected {
		s.Value = 1
	}
	return s, nil
}

// ExtractLetter finds the option letter a response commits to. An explicit
// "Answer: X" wins, then a response that is only a letter, then the last
// standalone capital letter that names a valid option. A lowercase "a" after
// the label and a sentence-initial "A" are read as the article when a
// lowercase word follows them.
func ExtractLetter(response string, valid []string) string {
	text := normalizeResponse(response)
	if text == "" {
		return ""
	}
	allowed := make(map[string]bool, len(valid))
	for _, l := range valid {
		allowed[l] = true
	}
	ok := func(l string) bool {
		return len(allowed) == 0 || allowed[l]
	}

	labels := answerLabel.FindAllStringSubmatchIndex(text, -1)
	for i := len(labels) - 1; i >= 0; i-- {
		start, end := labels[i][2], labels[i][3]
		letter := text[start:end]
		if letter == strings.ToLower(letter) && followedByWord(text, end) {
			continue
		}
		if l := strings.ToUpper(letter); ok(l) {
			return l
		}
		break
	}

	bare := strings.ToUpper(strings.Trim(text, " \t\"'`.,;:!?()[]{}<>*"))
	if len(bare) == 1 && bare[0] >= 'A' && bare[0] <= 'Z' && ok(bare) {
		return bare
	}

	matches := standaloneLetter.FindAllStringIndex(text, -1)
	for i := len(matches) - 1; i >= 0; i-- {
		start, end := matches[i][0], matches[i][1]
		l := text[start:end]
		if len(allowed) == 0 || !allowed[l] {
			continue
		}
		if sentenceInitial(text, start) && followedByWord(text, end) {
			continue
		}
		return l
	}
	return ""
}

// followedByWord reports whether whitespace and then a lowercase word come
// right after text[:end].
func followedByWord(text string, end int) bool {
	rest := text[end:]
	trimmed := strings.TrimLeft(rest, " \t")
	if len(trimmed) == len(rest) || trimmed == "" {
		return false
	}
	return trimmed[0] >= 'a' && trimmed[0] <= 'z'
}

// sentenceInitial reports whether text[start:] begins a sentence or line.
func sentenceInitial(text string, start int) bool {
	before := strings.TrimRight(text[:start], " \t")
	if before == "" {
		return true
	}
	switch before[len(before)-1] {
	case '.', '!', '?', '\n', ':':
		return true
	}
	return false
}
