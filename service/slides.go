package service

import (
	"strings"
)

const slideSeparator = "---"

// SplitSlides cuts a generated deck into per-slide blocks on the separator
// line. Blocks are trimmed and empty blocks dropped.
func SplitSlides(raw string) []string {
	parts := strings.Split(raw, slideSeparator)
	blocks := make([]string, 0, len(parts))
	for _, part := range parts {
		block := strings.TrimSpace(part)
		if block == "" {
			continue
		}
		blocks = append(blocks, block)
	}
	return blocks
}
