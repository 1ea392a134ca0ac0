package service

import (
	"fmt"
)

// reorganizationPrompt is the request the reorganization model receives for
// a paper. Truncation measures this, not the bare paper.
func reorganizationPrompt(paper string) string {
	return fmt.Sprintf("I need help reorganizing this text that was extracted from a pdf without taking into account reading order. "+
		"Parts of it are interleaved so that it does not read correctly, and it contains unnecessary material such as a long list of references that should be removed. "+
		"Everything related to the main content of the paper must be kept. "+
		"Return the ENTIRE paper as linear, readable text inside a single ``` codeblock so it can be extracted with a regex. "+
		"Do not hallucinate or make up any information.\n\n```\n%s\n```\n", paper)
}
