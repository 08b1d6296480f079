package patternindex

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/qaorchestrator/core/pkg/qatypes"
)

const (
	commitsFile  = "git_commits.json"
	chunksFile   = "chunks.json"
	metadataFile = "metadata.json"
)

// commitRecord mirrors one element of git_commits.json.
type commitRecord struct {
	ID       string   `json:"id"`
	Message  string   `json:"message"`
	Files    []string `json:"files"`
	Keywords []string `json:"keywords"`
}

// chunkRecord mirrors one element of chunks.json.
type chunkRecord struct {
	ID       string   `json:"id"`
	File     string   `json:"file"`
	Snippet  string   `json:"snippet"`
	Keywords []string `json:"keywords"`
}

// Metadata mirrors metadata.json.
type Metadata struct {
	Version string `json:"version"`
	BuiltAt string `json:"built_at"`
}

// loadCorpus reads the three corpus artifacts from dir. A missing dir
// returns (nil entries, empty Metadata, nil error) — the caller treats that
// as "initialize empty". Any other read/parse failure is returned as an
// error, which callers must treat as fatal startup failure per spec.md §7.
func loadCorpus(dir string) ([]qatypes.PatternEntry, Metadata, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, Metadata{}, nil
	}

	meta, err := readMetadata(filepath.Join(dir, metadataFile))
	if err != nil {
		return nil, Metadata{}, fmt.Errorf("read %s: %w", metadataFile, err)
	}

	commits, err := readCommits(filepath.Join(dir, commitsFile))
	if err != nil {
		return nil, Metadata{}, fmt.Errorf("read %s: %w", commitsFile, err)
	}

	chunks, err := readChunks(filepath.Join(dir, chunksFile))
	if err != nil {
		return nil, Metadata{}, fmt.Errorf("read %s: %w", chunksFile, err)
	}

	entries := make([]qatypes.PatternEntry, 0, len(commits)+len(chunks))
	for _, c := range commits {
		entries = append(entries, qatypes.PatternEntry{
			ID:         c.ID,
			SourceKind: qatypes.SourceCommit,
			Keywords:   toSet(c.Keywords),
			Payload: map[string]any{
				"message": c.Message,
				"files":   c.Files,
			},
		})
	}
	for _, c := range chunks {
		entries = append(entries, qatypes.PatternEntry{
			ID:         c.ID,
			SourceKind: qatypes.SourceCodeChunk,
			Keywords:   toSet(c.Keywords),
			Payload: map[string]any{
				"file":    c.File,
				"snippet": c.Snippet,
			},
		})
	}

	return entries, meta, nil
}

func readMetadata(path string) (Metadata, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Metadata{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, err
	}
	var meta Metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return Metadata{}, err
	}
	return meta, nil
}

func readCommits(path string) ([]commitRecord, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []commitRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func readChunks(path string) ([]chunkRecord, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []chunkRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func toSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
