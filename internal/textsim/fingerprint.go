// Package textsim provides text normalization, fingerprinting and
// cross-lingual duplicate detection.
package textsim

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"unicode"
)

// stopWords is the fixed list dropped during preprocessing.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"by": {}, "for": {}, "from": {}, "has": {}, "he": {}, "in": {}, "is": {},
	"it": {}, "its": {}, "of": {}, "on": {}, "or": {}, "that": {}, "the": {},
	"to": {}, "was": {}, "were": {}, "will": {}, "with": {},
}

// Options control preprocessing behavior.
type Options struct {
	// CaseSensitive keeps the original casing when set.
	CaseSensitive bool

	// DropStopWords removes the fixed stop-word list.
	DropStopWords bool

	// MinTokenLength filters tokens shorter than this; zero keeps everything.
	MinTokenLength int
}

// DefaultOptions returns the options used for fingerprinting in the analysis
// pipeline.
func DefaultOptions() Options {
	return Options{}
}

// Fingerprinter normalizes and fingerprints text. Pure; identical token sets
// after normalization always produce identical fingerprints.
type Fingerprinter struct {
	opts Options
}

// NewFingerprinter creates a fingerprinter with the given options.
func NewFingerprinter(opts Options) *Fingerprinter {
	return &Fingerprinter{opts: opts}
}

// Preprocess lower-cases (unless case-sensitive), strips punctuation,
// collapses whitespace and tokenizes, applying the configured filters.
func (f *Fingerprinter) Preprocess(text string) []string {
	if !f.opts.CaseSensitive {
		text = strings.ToLower(text)
	}

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}

	tokens := strings.Fields(b.String())

	if f.opts.DropStopWords || f.opts.MinTokenLength > 0 {
		filtered := tokens[:0]
		for _, tok := range tokens {
			if f.opts.MinTokenLength > 0 && len([]rune(tok)) < f.opts.MinTokenLength {
				continue
			}
			if f.opts.DropStopWords {
				if _, stop := stopWords[tok]; stop {
					continue
				}
			}
			filtered = append(filtered, tok)
		}
		tokens = filtered
	}

	return tokens
}

// Fingerprint hashes the sorted unique token set of the preprocessed text.
func (f *Fingerprinter) Fingerprint(text string) string {
	tokens := f.Preprocess(text)

	unique := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		unique[tok] = struct{}{}
	}

	sorted := make([]string, 0, len(unique))
	for tok := range unique {
		sorted = append(sorted, tok)
	}
	sort.Strings(sorted)

	hash := sha256.Sum256([]byte(strings.Join(sorted, "\x00")))
	return hex.EncodeToString(hash[:])
}
