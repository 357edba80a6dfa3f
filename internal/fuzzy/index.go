package fuzzy

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
)

// DefaultMaxCandidates bounds how many documents bleve returns for rescoring.
const DefaultMaxCandidates = 50

// Hit is a candidate solution scored against a query.
type Hit struct {
	Fingerprint  string
	Score        float64
	SharedTokens int
}

// Document is what the index needs to know about a cached solution.
type Document struct {
	Fingerprint string
	Category    string
	Tokens      []string
}

type entry struct {
	category string
	tokens   []string
}

// Index is an in-memory inverted index of cached solutions. Bleve narrows the
// candidate set to documents in the requested category sharing at least one
// token; candidates are then rescored by exact token overlap so scores do not
// depend on corpus statistics.
type Index struct {
	bleveIndex    bleve.Index
	entries       map[string]entry
	maxCandidates int
	mu            sync.RWMutex
}

// NewIndex creates an empty in-memory index.
func NewIndex(maxCandidates int) (*Index, error) {
	if maxCandidates <= 0 {
		maxCandidates = DefaultMaxCandidates
	}

	idx, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create bleve index: %w", err)
	}

	return &Index{
		bleveIndex:    idx,
		entries:       make(map[string]entry),
		maxCandidates: maxCandidates,
	}, nil
}

// buildIndexMapping indexes category as an exact keyword and tokens as text.
func buildIndexMapping() mapping.IndexMapping {
	docMapping := bleve.NewDocumentMapping()

	categoryField := bleve.NewKeywordFieldMapping()
	categoryField.Store = false
	docMapping.AddFieldMappingsAt("category", categoryField)

	tokensField := bleve.NewTextFieldMapping()
	tokensField.Store = false
	tokensField.IncludeTermVectors = false
	docMapping.AddFieldMappingsAt("tokens", tokensField)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping

	return indexMapping
}

// Put adds or replaces documents.
func (i *Index) Put(docs ...Document) error {
	if len(docs) == 0 {
		return nil
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	batch := i.bleveIndex.NewBatch()
	for _, doc := range docs {
		if err := batch.Index(doc.Fingerprint, map[string]any{
			"category": doc.Category,
			"tokens":   strings.Join(doc.Tokens, " "),
		}); err != nil {
			return fmt.Errorf("failed to index %s: %w", doc.Fingerprint, err)
		}
	}

	if err := i.bleveIndex.Batch(batch); err != nil {
		return fmt.Errorf("failed to apply index batch: %w", err)
	}

	for _, doc := range docs {
		tokens := append([]string(nil), doc.Tokens...)
		sort.Strings(tokens)
		i.entries[doc.Fingerprint] = entry{category: doc.Category, tokens: tokens}
	}

	return nil
}

// Remove deletes a document. Removing an unknown fingerprint is a no-op.
func (i *Index) Remove(fingerprint string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if _, ok := i.entries[fingerprint]; !ok {
		return nil
	}
	if err := i.bleveIndex.Delete(fingerprint); err != nil {
		return fmt.Errorf("failed to remove %s: %w", fingerprint, err)
	}
	delete(i.entries, fingerprint)
	return nil
}

// Reset drops every document.
func (i *Index) Reset() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	batch := i.bleveIndex.NewBatch()
	for fp := range i.entries {
		batch.Delete(fp)
	}
	if err := i.bleveIndex.Batch(batch); err != nil {
		return fmt.Errorf("failed to reset index: %w", err)
	}
	i.entries = make(map[string]entry)
	return nil
}

// Len returns the number of indexed documents.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.entries)
}

// Search returns candidates in category sharing at least one token with
// queryTokens, ordered by score, then shared tokens, then fingerprint.
func (i *Index) Search(category string, queryTokens []string) ([]Hit, error) {
	if category == "" || len(queryTokens) == 0 {
		return nil, nil
	}

	q := append([]string(nil), queryTokens...)
	sort.Strings(q)

	i.mu.RLock()
	defer i.mu.RUnlock()

	req := bleve.NewSearchRequestOptions(i.buildQuery(category, q), i.maxCandidates, 0, false)
	results, err := i.bleveIndex.Search(req)
	if err != nil {
		return nil, fmt.Errorf("bleve search failed: %w", err)
	}

	hits := make([]Hit, 0, len(results.Hits))
	for _, match := range results.Hits {
		e, ok := i.entries[match.ID]
		if !ok || e.category != category {
			continue
		}
		shared, score := Overlap(q, e.tokens)
		if shared == 0 {
			continue
		}
		hits = append(hits, Hit{Fingerprint: match.ID, Score: score, SharedTokens: shared})
	}

	sort.Slice(hits, func(a, b int) bool {
		if hits[a].Score != hits[b].Score {
			return hits[a].Score > hits[b].Score
		}
		if hits[a].SharedTokens != hits[b].SharedTokens {
			return hits[a].SharedTokens > hits[b].SharedTokens
		}
		return hits[a].Fingerprint < hits[b].Fingerprint
	})

	return hits, nil
}

func (i *Index) buildQuery(category string, tokens []string) query.Query {
	categoryQuery := bleve.NewTermQuery(category)
	categoryQuery.SetField("category")

	tokenQuery := bleve.NewMatchQuery(strings.Join(tokens, " "))
	tokenQuery.SetField("tokens")

	return bleve.NewConjunctionQuery(categoryQuery, tokenQuery)
}

// Close releases the bleve index.
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.bleveIndex.Close()
}
