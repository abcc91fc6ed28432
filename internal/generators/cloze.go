package generators

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/mwiater/sieve/internal/collectors"
	"github.com/mwiater/sieve/internal/prompt"
	"github.com/mwiater/sieve/internal/util"
)

const clozeBlank = "_____"

// HeadlineCloze blanks the longest word of each item title and asks for it
// back. It needs no model.
type HeadlineCloze struct{}

// ID implements Generator.
func (HeadlineCloze) ID() string { return "headline-cloze" }

// Generate implements Generator. Option "max_items" caps the items used.
func (HeadlineCloze) Generate(ctx context.Context, batch collectors.Batch, opts map[string]any) ([]prompt.Candidate, error) {
	items := limitItems(batch, util.IntOption(opts, "max_items", 0))
	out := make([]prompt.Candidate, 0, len(items))
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		title := itemString(item, "title")
		masked, answer, ok := cloze(title)
		if !ok {
			continue
		}
		c := prompt.Candidate{
			Type:           prompt.TypeOpen,
			Question:       fmt.Sprintf("Fill in the missing word in this headline: %q", masked),
			ExpectedAnswer: answer,
			SourceLink:     itemString(item, "link"),
			Tags:           []string{"cloze"},
			Metadata:       map[string]any{"generator": "headline-cloze", "title": title},
		}
		if err := c.EnsureID(); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// cloze replaces the longest alphabetic word (at least four letters, first on
// ties) with a blank.
func cloze(title string) (string, string, bool) {
	words := strings.Fields(title)
	best := -1
	var answer string
	for i, w := range words {
		core := strings.TrimFunc(w, func(r rune) bool { return !unicode.IsLetter(r) })
		if len([]rune(core)) < 4 || strings.IndexFunc(core, func(r rune) bool { return !unicode.IsLetter(r) }) >= 0 {
			continue
		}
		if len([]rune(core)) > len([]rune(answer)) {
			best, answer = i, core
		}
	}
	if best < 0 {
		return "", "", false
	}
	words[best] = strings.Replace(words[best], answer, clozeBlank, 1)
	return strings.Join(words, " "), answer, true
}
