package main

import (
	"context"
	"fmt"
	"time"

	"ctxkeep/pkg/contextmgr"
	"ctxkeep/pkg/ctxerrors"
	"ctxkeep/pkg/ids"
)

// maxDistillationRounds bounds the prepare/distill/retry loop so a
// distillation that never frees enough room fails loudly instead of
// spinning. RecentMessagesTooLarge is returned at once, without looping.
const maxDistillationRounds = 8

// prepareWithAutoDistill runs spec.md §2's prepare → distill → retry loop:
// it calls Prepare(), and on a DistillationNeeded error, distills the
// suggested message range via the configured distiller chain and retries,
// up to maxDistillationRounds times.
func (o *Orchestrator) prepareWithAutoDistill(ctx context.Context) (contextmgr.WorkingContext, error) {
	for round := 0; round < maxDistillationRounds; round++ {
		wc, err := o.cm.Prepare()
		if err == nil {
			return wc, nil
		}

		ce, ok := ctxerrors.AsError(err)
		if !ok || ce.Kind != ctxerrors.KindDistillationNeeded {
			return contextmgr.WorkingContext{}, err
		}

		field, _ := ce.Field("messages_to_distill")
		msgIDs, ok := field.([]ids.MessageID)
		if !ok || len(msgIDs) == 0 {
			return contextmgr.WorkingContext{}, fmt.Errorf("ctxkeepd: distillation_needed error carried no message range: %w", err)
		}

		if distErr := o.distillRange(ctx, msgIDs); distErr != nil {
			return contextmgr.WorkingContext{}, fmt.Errorf("ctxkeepd: auto-distillation round %d: %w", round, distErr)
		}
	}
	return contextmgr.WorkingContext{}, fmt.Errorf("ctxkeepd: exceeded %d distillation rounds without fitting the budget", maxDistillationRounds)
}

// distillRange prepares a distillation scope over msgIDs, generates a
// distillate via the configured distiller, and completes it against the
// context manager.
func (o *Orchestrator) distillRange(ctx context.Context, msgIDs []ids.MessageID) error {
	scope, ok := o.cm.PrepareDistillation(msgIDs)
	if !ok {
		return fmt.Errorf("suggested range is no longer a valid distillation scope")
	}

	start := time.Now()
	text, err := o.dist.Generate(ctx, scope.Messages, scope.TargetTokens)
	duration := time.Since(start)
	if err != nil {
		o.metrics.ObserveDistillation(o.cm.ModelName(), "error", duration)
		return fmt.Errorf("generate_distillation: %w", err)
	}

	if _, err := o.cm.CompleteDistillation(scope, text, "distiller-chain"); err != nil {
		o.metrics.ObserveDistillation(o.cm.ModelName(), "rejected", duration)
		return fmt.Errorf("complete_distillation: %w", err)
	}

	o.metrics.ObserveDistillation(o.cm.ModelName(), "ok", duration)
	log.Info("distilled range [%d,%d) into %d target tokens", scope.Start, scope.End, scope.TargetTokens)
	return nil
}
