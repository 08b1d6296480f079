package batchopt

import (
	"testing"

	"github.com/qaorchestrator/core/pkg/qatypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkViolation(i int, kind qatypes.ViolationKind, file string) qatypes.Violation {
	return qatypes.Violation{ID: string(rune('a' + i%26)), Kind: kind, FilePath: file}
}

func TestPartition_Empty(t *testing.T) {
	assert.Empty(t, Partition(nil, ""))
	assert.Empty(t, Partition([]qatypes.Violation{}, ""))
}

func TestPartition_SingleViolation(t *testing.T) {
	batches := Partition([]qatypes.Violation{mkViolation(0, qatypes.KindStyle, "a.go")}, "")
	require.Len(t, batches, 1)
	assert.Len(t, batches[0].Violations, 1)
}

func TestPartition_CapSplitting25Style(t *testing.T) {
	var violations []qatypes.Violation
	for i := 0; i < 25; i++ {
		violations = append(violations, mkViolation(i, qatypes.KindStyle, "x.py"))
	}

	batches := Partition(violations, "")
	require.Len(t, batches, 2)
	assert.Len(t, batches[0].Violations, qatypes.MaxViolationsPerBatch)
	assert.Len(t, batches[1].Violations, 5)

	total := 0
	for _, b := range batches {
		total += len(b.Violations)
		assert.LessOrEqual(t, len(b.Violations), qatypes.MaxViolationsPerBatch)
		assert.LessOrEqual(t, b.FileCount(), qatypes.MaxFilesPerBatch)
	}
	assert.Equal(t, 25, total)
}

func TestPartition_ByFileCapsOnFileCount(t *testing.T) {
	var violations []qatypes.Violation
	for i := 0; i < 15; i++ {
		violations = append(violations, mkViolation(i, qatypes.ViolationKind("k"+string(rune('0'+i%5))), "f"+string(rune('0'+i%15))+".go"))
	}
	// 15 distinct files, all in directory "." -> mixed would pick by-file via directory
	// dominance; the explicit hint pins the strategy under test regardless.
	batches := Partition(violations, qatypes.StrategyByFile)
	for _, b := range batches {
		assert.LessOrEqual(t, b.FileCount(), qatypes.MaxFilesPerBatch)
		assert.LessOrEqual(t, len(b.Violations), qatypes.MaxViolationsPerBatch)
	}
}

func TestPartition_EveryViolationAppearsExactlyOnce(t *testing.T) {
	var violations []qatypes.Violation
	kinds := []qatypes.ViolationKind{qatypes.KindStyle, qatypes.KindSecurity, qatypes.KindConfiguration}
	for i := 0; i < 47; i++ {
		violations = append(violations, qatypes.Violation{
			ID:       "v" + string(rune(i)),
			Kind:     kinds[i%len(kinds)],
			FilePath: "dir" + string(rune('a'+i%12)) + "/f.go",
		})
	}

	batches := Partition(violations, "")

	seen := make(map[string]bool)
	count := 0
	for _, b := range batches {
		assert.LessOrEqual(t, len(b.Violations), qatypes.MaxViolationsPerBatch)
		assert.LessOrEqual(t, b.FileCount(), qatypes.MaxFilesPerBatch)
		for _, v := range b.Violations {
			key := v.ID + "|" + string(v.Kind) + "|" + v.FilePath
			assert.False(t, seen[key], "violation seen twice: %s", key)
			seen[key] = true
			count++
		}
	}
	assert.Equal(t, len(violations), count)
}

func TestPartition_MixedByTypeDominance(t *testing.T) {
	var violations []qatypes.Violation
	for i := 0; i < 9; i++ {
		violations = append(violations, mkViolation(i, qatypes.KindStyle, "f"+string(rune('0'+i))+".go"))
	}
	violations = append(violations, mkViolation(9, qatypes.KindSecurity, "z.go"))

	batches := Partition(violations, "")
	require.NotEmpty(t, batches)
	assert.Equal(t, qatypes.StrategyByType, batches[0].StrategyTag)
}

func TestPartition_MixedFallsBackToComplexity(t *testing.T) {
	var violations []qatypes.Violation
	kinds := []qatypes.ViolationKind{qatypes.KindStyle, qatypes.KindSecurity}
	for i := 0; i < 10; i++ {
		violations = append(violations, qatypes.Violation{
			Kind:     kinds[i%2],
			FilePath: "dir" + string(rune('a'+i)) + "/f.go",
		})
	}

	batches := Partition(violations, "")
	require.NotEmpty(t, batches)
	assert.Equal(t, qatypes.StrategyByComplexity, batches[0].StrategyTag)
}

func TestPartition_Idempotent(t *testing.T) {
	var violations []qatypes.Violation
	for i := 0; i < 30; i++ {
		violations = append(violations, mkViolation(i, qatypes.KindConfigurationMigrate, "m"+string(rune('0'+i%3))+".go"))
	}

	first := Partition(violations, "")
	var flattened []qatypes.Violation
	for _, b := range first {
		flattened = append(flattened, b.Violations...)
	}
	second := Partition(flattened, "")

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Violations, second[i].Violations)
		assert.Equal(t, first[i].StrategyTag, second[i].StrategyTag)
	}
}

func TestPartition_UnknownKindBucketed(t *testing.T) {
	violations := []qatypes.Violation{{Kind: qatypes.ViolationKind("mystery"), FilePath: "x.go"}}
	batches := Partition(violations, qatypes.StrategyByType)
	require.Len(t, batches, 1)
	assert.Equal(t, qatypes.ViolationKind("mystery"), batches[0].Violations[0].Kind)
}

func TestPartition_DistinctUnknownKindsShareOneBucket(t *testing.T) {
	violations := []qatypes.Violation{
		{ID: "v1", Kind: qatypes.ViolationKind("mystery"), FilePath: "a.go"},
		{ID: "v2", Kind: qatypes.ViolationKind("other-mystery"), FilePath: "b.go"},
	}
	batches := Partition(violations, qatypes.StrategyByType)
	require.Len(t, batches, 1, "distinct unrecognized kinds must land in the single reserved kind=unknown bucket")
	assert.Len(t, batches[0].Violations, 2)
}
