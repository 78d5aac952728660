package engine

import (
	"context"
	"errors"

	"github.com/weftworks/weft/internal/types"
)

// BatchClose closes each id independently: one failure is recorded and the
// rest proceed. Succeeded ids appear in request order.
func (e *Engine) BatchClose(ctx context.Context, ids []string, req CloseRequest, actor string) *types.BatchResult {
	result := &types.BatchResult{Succeeded: []string{}, Failed: []types.BatchFailure{}}
	for _, id := range ids {
		_, warnings, err := e.CloseIssue(ctx, id, req, actor)
		collectOutcome(result, id, warnings, err)
	}
	return result
}

// BatchUpdate applies the same update to each id independently.
func (e *Engine) BatchUpdate(ctx context.Context, ids []string, req types.UpdateRequest, actor string) *types.BatchResult {
	result := &types.BatchResult{Succeeded: []string{}, Failed: []types.BatchFailure{}}
	for _, id := range ids {
		_, warnings, err := e.UpdateIssue(ctx, id, req, actor)
		collectOutcome(result, id, warnings, err)
	}
	return result
}

func collectOutcome(result *types.BatchResult, id string, warnings []string, err error) {
	if err != nil {
		failure := types.BatchFailure{ID: id, Error: err.Error(), Code: CodeOf(err)}
		var hard *HardEnforcementError
		if errors.As(err, &hard) {
			failure.ValidTransitions = hard.ValidTransitions
		}
		result.Failed = append(result.Failed, failure)
		return
	}
	result.Succeeded = append(result.Succeeded, id)
	if len(warnings) > 0 {
		result.Warnings = append(result.Warnings, types.BatchWarning{ID: id, Warnings: warnings})
	}
}
