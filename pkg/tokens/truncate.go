package tokens

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// Counter measures text in model tokens.
type Counter interface {
	Count(text string) int
}

type TiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

func NewTiktokenCounter(model string) (*TiktokenCounter, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer for %s: %w", model, err)
	}
	return &TiktokenCounter{enc: enc}, nil
}

func (c *TiktokenCounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

// ApproxCounter estimates four characters per token. It stands in when the
// tokenizer ranks cannot be loaded.
type ApproxCounter struct{}

func (ApproxCounter) Count(text string) int {
	return (utf8.RuneCountInString(text) + 3) / 4
}

// Truncate keeps a whole-line prefix of text whose wrapped form fits in
// maxTokens. wrap is the prompt the text will be embedded in, so the budget
// covers the full request rather than the bare text.
//
// Each line is charged as Count(wrap(line)), which bills the prompt preamble
// once per line. That is conservative and keeps fewer lines than would fit;
// the final re-measure still bounds the full prompt.
func Truncate(counter Counter, text string, maxTokens int, wrap func(string) string) string {
	if wrap == nil {
		wrap = func(s string) string { return s }
	}
	if counter.Count(wrap(text)) <= maxTokens {
		return text
	}

	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	used := 0
	for _, line := range lines {
		n := counter.Count(wrap(line))
		if used+n > maxTokens {
			break
		}
		kept = append(kept, line)
		used += n
	}

	// BPE counts are not additive across lines: re-measure the joined prefix.
	for len(kept) > 0 && counter.Count(wrap(strings.Join(kept, "\n"))) > maxTokens {
		kept = kept[:len(kept)-1]
	}

	return strings.Join(kept, "\n")
}
