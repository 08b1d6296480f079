package patternindex

import (
	"sort"

	"github.com/qaorchestrator/core/pkg/log"
	"github.com/qaorchestrator/core/pkg/qatypes"
)

// DefaultTopK is used by callers that don't have an opinion on fan-out.
const DefaultTopK = 5

// Index is the read-only, in-memory PatternIndex façade. It is safe for
// concurrent use by multiple goroutines after Load returns: entries are
// never mutated once loaded.
type Index struct {
	entries []qatypes.PatternEntry
	version string
}

// Load reads the corpus at dir and returns a ready-to-query Index. The
// corpus files are always read and parsed. If cachePath is non-empty and
// the bbolt cache holds entries for the corpus's metadata.json version,
// those cached entries are served; on a cache miss the parsed entries are
// served and best-effort written to the cache. A
// missing corpus directory yields an empty, queryable Index rather than an
// error. A corrupt corpus file is returned as an error.
func Load(dir, cachePath string) (*Index, error) {
	entries, meta, err := loadCorpus(dir)
	if err != nil {
		return nil, err
	}

	if meta.Version != "" && cachePath != "" {
		if cached, ok := loadCache(cachePath, meta.Version); ok {
			log.Logger.Debug().Str("version", meta.Version).Int("count", len(cached)).Msg("pattern index loaded from cache")
			return &Index{entries: fromCacheEntries(cached), version: meta.Version}, nil
		}

		if err := saveCache(cachePath, meta.Version, toCacheEntries(entries)); err != nil {
			log.Logger.Warn().Err(err).Msg("pattern index cache write failed, continuing without cache")
		}
	}

	return &Index{entries: entries, version: meta.Version}, nil
}

// Query tokenizes text and returns the topK most similar corpus entries by
// Jaccard keyword overlap, ordered by descending similarity with ties broken
// by original corpus order (stable sort). Confidence is the best match's
// similarity, or 0 when the index is empty or nothing overlaps.
func (idx *Index) Query(text string, topK int) qatypes.RetrievalContext {
	if topK <= 0 {
		topK = DefaultTopK
	}

	queryTokens := tokenize(text)

	matches := make([]qatypes.PatternMatch, 0, len(idx.entries))
	for _, e := range idx.entries {
		sim := jaccard(queryTokens, e.Keywords)
		if sim <= 0 {
			continue
		}
		matches = append(matches, qatypes.PatternMatch{
			EntryID:    e.ID,
			SourceKind: e.SourceKind,
			Similarity: sim,
			Payload:    e.Payload,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})

	if len(matches) > topK {
		matches = matches[:topK]
	}

	return qatypes.RetrievalContext{
		Matches:    matches,
		Confidence: qatypes.ConfidenceOf(matches),
	}
}

// Stats reports the loaded entry count and corpus version, for
// metrics.Collector's pattern-index gauge.
func (idx *Index) Stats() (count int, version string) {
	return len(idx.entries), idx.version
}

func toCacheEntries(entries []qatypes.PatternEntry) []cacheEntry {
	out := make([]cacheEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, cacheEntry{
			ID:         e.ID,
			SourceKind: string(e.SourceKind),
			Keywords:   keysOf(e.Keywords),
			Payload:    e.Payload,
		})
	}
	return out
}

func fromCacheEntries(cached []cacheEntry) []qatypes.PatternEntry {
	out := make([]qatypes.PatternEntry, 0, len(cached))
	for _, c := range cached {
		out = append(out, qatypes.PatternEntry{
			ID:         c.ID,
			SourceKind: qatypes.SourceKind(c.SourceKind),
			Keywords:   toSet(c.Keywords),
			Payload:    c.Payload,
		})
	}
	return out
}

func keysOf(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}
