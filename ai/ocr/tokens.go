package ocr

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// encodings are read from the embedded BPE files, never downloaded
func init() {
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
)

// CountTokens estimates the token count of text with the cl100k_base
// encoding, falling back to whitespace separated words when the encoding
// cannot be loaded.
func CountTokens(text string) int {
	if text == "" {
		return 0
	}
	encOnce.Do(func() {
		enc, _ = tiktoken.GetEncoding("cl100k_base")
	})
	if enc == nil {
		return len(strings.Fields(text))
	}
	return len(enc.Encode(text, nil, nil))
}

// EstimateUsage fills token counts a backend did not report
func EstimateUsage(u Usage, prompt, completion string) Usage {
	if u.PromptTokens == 0 {
		u.PromptTokens = CountTokens(prompt)
	}
	if u.CompletionTokens == 0 {
		u.CompletionTokens = CountTokens(completion)
	}
	u.TotalTokens = u.PromptTokens + u.CompletionTokens
	return u
}
