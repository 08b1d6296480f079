package daemon

import (
	"context"

	"github.com/qaorchestrator/core/pkg/log"
	"github.com/qaorchestrator/core/pkg/qatypes"
)

// LogFastExecutor is the default worker.FastExecutor: it logs the batch it
// was handed and reports success without touching any files. The actual
// in-process fix strategy (how a FAST batch's violations get auto-applied)
// is detector/language-specific and lives outside this repository; callers
// that need real auto-fixing inject their own FastExecutor into NewDaemon.
type LogFastExecutor struct{}

// Execute implements worker.FastExecutor.
func (LogFastExecutor) Execute(ctx context.Context, batch qatypes.Batch, retrieval qatypes.RetrievalContext) error {
	log.WithComponent("fast-executor").Debug().
		Str("batch_id", batch.ID).
		Int("violations", len(batch.Violations)).
		Int("retrieval_matches", len(retrieval.Matches)).
		Msg("applying fast auto-fix")

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
