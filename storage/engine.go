package storage

import (
	"context"
	"log/slog"
	"time"

	"github.com/storyreel/backend/metrics"
	"github.com/storyreel/backend/models"
	"github.com/storyreel/backend/transform"
)

// Engine executes one logical write against the primary and, strategy
// permitting, the secondary store, with compensating rollback when a
// required mirror write fails.
//
// The engine performs no retries: retry belongs to the repository facade
// so the compensation path here stays simple and idempotent-safe.
type Engine struct {
	primary     PrimaryStore
	secondary   SecondaryStore
	transformer *transform.Transformer
	strategy    Strategy
	logger      *slog.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
}

// NewEngine wires a dual-storage engine. The clock is injected so results
// are deterministic under test.
func NewEngine(primary PrimaryStore, secondary SecondaryStore, transformer *transform.Transformer, strategy Strategy, logger *slog.Logger, m *metrics.Metrics, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	if m == nil {
		m = metrics.NewNop()
	}
	if transformer == nil {
		transformer = transform.NewTransformer()
	}
	return &Engine{
		primary:     primary,
		secondary:   secondary,
		transformer: transformer,
		strategy:    strategy,
		logger:      logger,
		metrics:     m,
		now:         now,
	}
}

// Strategy returns the active storage strategy.
func (e *Engine) Strategy() Strategy {
	return e.strategy
}

// Save executes the dual write for one item.
//
// Order of operations: strategy validation, primary anchor write,
// strategy-gated secondary write, compensating rollback of the primary
// write when a required secondary write fails. A failed rollback escalates
// to a DualStorageError with RollbackFailed set; that condition is never
// swallowed because the stores are then known-inconsistent.
func (e *Engine) Save(ctx context.Context, item Item, actor Actor) (*DualWriteResult, error) {
	start := e.now()
	result := &DualWriteResult{Timestamp: start}

	finish := func(outcome string) {
		result.LatencyMS = e.now().Sub(start).Milliseconds()
		e.metrics.DualWriteLatency.WithLabelValues(string(item.Kind), string(e.strategy.Mode)).
			Observe(float64(result.LatencyMS) / 1000)
		e.metrics.DualWriteTotal.WithLabelValues(string(item.Kind), outcome).Inc()
	}

	if err := e.strategy.Validate(e.secondary.Enabled()); err != nil {
		finish("strategy_rejected")
		return result, err
	}

	// Anchor write. If the primary store rejects it nothing else happens.
	primaryCtx, cancel := context.WithTimeout(ctx, e.strategy.Timeout)
	err := e.primary.Upsert(primaryCtx, item)
	cancel()
	result.Primary.Attempted = true
	if err != nil {
		result.Primary.Error = err.Error()
		e.logger.Error("primary write failed",
			"kind", item.Kind, "id", item.ID(), "actor", actor.ID, "error", err)
		finish("primary_failed")
		return result, err
	}
	result.Primary.Saved = true
	result.Primary.ID = item.ID()

	if !e.strategy.WantsSecondary(e.secondaryUsable()) {
		result.Success = true
		finish("primary_only")
		return result, nil
	}

	secErr := e.writeSecondary(ctx, item, result)
	if secErr == nil {
		result.Success = true
		finish("mirrored")
		return result, nil
	}

	result.Secondary.Error = secErr.Error()

	if e.strategy.Mode != StrategyRequired {
		// Preferred (and a configured fallback) tolerate mirror failure:
		// the primary record stands and the result is partial.
		e.logger.Warn("secondary write failed, keeping primary record",
			"kind", item.Kind, "id", item.ID(), "strategy", e.strategy.Mode, "error", secErr)
		result.Success = true
		finish("partial")
		return result, nil
	}

	// Required strategy: undo the anchor write.
	e.metrics.RollbackTotal.Inc()
	rbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.strategy.Timeout)
	rbErr := e.primary.Delete(rbCtx, item.Kind, item.ID())
	cancel()

	if rbErr != nil {
		e.metrics.RollbackFailed.Inc()
		e.logger.Error("rollback failed, stores inconsistent, manual remediation required",
			"kind", item.Kind, "id", item.ID(), "secondaryError", secErr, "rollbackError", rbErr)
		finish("rollback_failed")
		return result, &DualStorageError{
			ItemID:         item.ID(),
			Op:             "save",
			RollbackFailed: true,
			Cause:          rbErr,
		}
	}

	result.RollbackExecuted = true
	e.logger.Error("secondary write failed under required strategy, primary write rolled back",
		"kind", item.Kind, "id", item.ID(), "error", secErr)
	finish("rolled_back")
	return result, &DualStorageError{ItemID: item.ID(), Op: "save", Cause: secErr}
}

// secondaryUsable applies the stricter configuration bar the fallback
// strategy demands; other strategies only need the store enabled.
func (e *Engine) secondaryUsable() bool {
	if e.strategy.Mode == StrategyFallback {
		return e.secondary.Configured()
	}
	return e.secondary.Enabled()
}

// writeSecondary transforms the item and upserts the derived document(s).
// A project save fans out to the collections of every tagged stage and
// counts as successful when at least one collection write succeeds; an
// entity save targets its single collection.
func (e *Engine) writeSecondary(ctx context.Context, item Item, result *DualWriteResult) error {
	result.Secondary.Attempted = true
	result.Secondary.Collections = make(map[string]bool)

	kinds := []string{string(item.Kind)}
	if item.Kind == KindProject {
		kinds = item.Project.Tags
		if len(kinds) == 0 {
			// Nothing mirrored yet for a fresh project; mirror the story
			// view so reads have a document to land on.
			kinds = []string{models.EntityTagStory}
		}
	}

	var firstErr error
	succeeded := 0
	for _, kind := range kinds {
		id, doc, err := e.transformer.ForKind(kind, item.Project)
		if err != nil {
			return &TransformationError{Kind: EntityKind(kind), ItemID: item.ID(), Cause: err}
		}

		collection := EntityKind(kind).Collection()
		writeCtx, cancel := context.WithTimeout(ctx, e.strategy.Timeout)
		err = e.secondary.Upsert(writeCtx, collection, id, doc)
		cancel()

		result.Secondary.Collections[collection] = err == nil
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		succeeded++
	}

	if succeeded > 0 {
		result.Secondary.Saved = true
		result.Secondary.ID = item.ID()
		return nil
	}
	return firstErr
}

// Delete removes the primary record and best-effort removes the mirrored
// documents. Secondary failures are logged, never surfaced: the primary
// delete is the authoritative one.
func (e *Engine) Delete(ctx context.Context, item Item) error {
	delCtx, cancel := context.WithTimeout(ctx, e.strategy.Timeout)
	err := e.primary.Delete(delCtx, item.Kind, item.ID())
	cancel()
	if err != nil {
		return err
	}

	if !e.secondary.Enabled() {
		return nil
	}

	collections := []string{string(item.Kind)}
	if item.Kind == KindProject {
		collections = item.Project.Tags
	}
	for _, kind := range collections {
		collection := EntityKind(kind).Collection()
		if collection == "" {
			continue
		}
		id := item.ID()
		if item.Kind == KindProject {
			// Project documents are keyed by their stage entity ids.
			if sid, _, err := e.transformer.ForKind(kind, item.Project); err == nil {
				id = sid
			}
		}
		delCtx, cancel := context.WithTimeout(ctx, e.strategy.Timeout)
		if err := e.secondary.Delete(delCtx, collection, id); err != nil {
			e.logger.Warn("secondary delete failed",
				"collection", collection, "id", id, "error", err)
		}
		cancel()
	}
	return nil
}

// ReadBag reads back whatever secondary documents exist for a project, for
// consistency validation. Absent documents stay nil in the bag.
func (e *Engine) ReadBag(ctx context.Context, p *models.Project) transform.SecondaryBag {
	var bag transform.SecondaryBag
	if !e.secondary.Enabled() {
		return bag
	}

	get := func(kind string, dest interface{}) bool {
		id, _, err := e.transformer.ForKind(kind, p)
		if err != nil {
			return false
		}
		getCtx, cancel := context.WithTimeout(ctx, e.strategy.Timeout)
		defer cancel()
		return e.secondary.Get(getCtx, EntityKind(kind).Collection(), id, dest) == nil
	}

	var story transform.StoryDoc
	if get(models.EntityTagStory, &story) {
		bag.Story = &story
	}
	var scenario transform.ScenarioDoc
	if get(models.EntityTagScenario, &scenario) {
		bag.Scenario = &scenario
	}
	var prompt transform.PromptDoc
	if get(models.EntityTagPrompt, &prompt) {
		bag.Prompt = &prompt
	}
	var video transform.VideoDoc
	if get(models.EntityTagVideo, &video) {
		bag.Video = &video
	}
	return bag
}
