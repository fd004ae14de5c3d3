// Package corpus provides campaign content sources for duplicate detection.
package corpus

import (
	"context"
	"sync"

	"github.com/trustlens/trustlens/internal/models"
)

// Memory is an in-process corpus of previously seen campaign content. The
// analyzer reads it; the host appends to it as campaigns arrive.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]models.CorpusEntry // keyed by subject ID
}

// NewMemory creates an empty in-memory corpus.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]models.CorpusEntry)}
}

// Add registers content under its subject ID, replacing any previous entry.
func (m *Memory) Add(subjectID, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[subjectID] = models.CorpusEntry{SubjectID: subjectID, Text: text}
}

// Corpus returns all entries except the excluded subject.
func (m *Memory) Corpus(ctx context.Context, excludeSubjectID string) ([]models.CorpusEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.CorpusEntry, 0, len(m.entries))
	for id, entry := range m.entries {
		if id == excludeSubjectID {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}
