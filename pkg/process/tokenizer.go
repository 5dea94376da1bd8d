package process

import (
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/tiktoken-go/tokenizer"

	"github.com/Sriram-PR/doc-outline/pkg/utils"
)

var encodings = map[string]tokenizer.Encoding{
	"cl100k_base": tokenizer.Cl100kBase,
	"o200k_base":  tokenizer.O200kBase,
	"p50k_base":   tokenizer.P50kBase,
	"p50k_edit":   tokenizer.P50kEdit,
	"r50k_base":   tokenizer.R50kBase,
}

var (
	codecMu      sync.RWMutex
	defaultCodec tokenizer.Codec
)

// InitTokenizer loads the named encoding ("" means cl100k_base) as the
// package-wide codec used by CountTokens.
func InitTokenizer(encoding string) error {
	if encoding == "" {
		encoding = "cl100k_base"
	}
	enc, ok := encodings[encoding]
	if !ok {
		return fmt.Errorf("%w: unknown tokenizer encoding '%s'", utils.ErrConfigValidation, encoding)
	}

	codec, err := tokenizer.Get(enc)
	if err != nil {
		return fmt.Errorf("loading tokenizer %s: %w", encoding, err)
	}

	codecMu.Lock()
	defaultCodec = codec
	codecMu.Unlock()
	return nil
}

// CountTokens returns the token count of text, or -1 when no tokenizer is loaded.
func CountTokens(text string) int {
	codecMu.RLock()
	codec := defaultCodec
	codecMu.RUnlock()

	if codec == nil {
		return -1
	}
	ids, _, err := codec.Encode(text)
	if err != nil {
		return -1
	}
	return len(ids)
}

// IsInitialized reports whether InitTokenizer has succeeded.
func IsInitialized() bool {
	codecMu.RLock()
	defer codecMu.RUnlock()
	return defaultCodec != nil
}

// measure is the length function for splitting: tokens when available, runes otherwise.
func measure(text string) int {
	if n := CountTokens(text); n >= 0 {
		return n
	}
	return utf8.RuneCountInString(text)
}
