package repositories

import (
	"context"

	"github.com/storyreel/backend/dto"
	"github.com/storyreel/backend/models"
	"github.com/storyreel/backend/storage"
	"github.com/storyreel/backend/utils"
)

// SavePipelineTransaction treats a set of pipeline-entity writes as one
// logical unit. There is no store-level atomicity: a failure partway
// through triggers compensating deletes of the entities already written.
// The journal of intents is process-local, so recovery across restarts
// falls to CheckDataConsistency rather than this journal.
func (r *ProjectRepository) SavePipelineTransaction(ctx context.Context, projectID string, bundle dto.PipelineBundle, actor storage.Actor) (*dto.TransactionResult, error) {
	if _, err := r.loadProject(ctx, projectID); err != nil {
		return nil, err
	}

	// Transaction ids are distinct from entity uuids so they are
	// recognizable in logs and recovery URLs.
	txID := "tx-" + utils.GenerateID()
	j := &txJournal{projectID: projectID, startedAt: r.now()}
	r.txMu.Lock()
	r.journal[txID] = j
	r.txMu.Unlock()

	result := &dto.TransactionResult{
		TransactionID: txID,
		EntityIDs:     make(map[string]string),
	}

	record := func(kind storage.EntityKind, id string) {
		r.txMu.Lock()
		j.saved = append(j.saved, txEntry{kind: kind, id: id})
		r.txMu.Unlock()
		result.EntityIDs[string(kind)] = id
	}

	fail := func(stage string, err error) (*dto.TransactionResult, error) {
		result.Error = stage + ": " + err.Error()
		result.RolledBack = r.rollbackPartialTransaction(ctx, txID)
		return result, nil
	}

	// Stage order mirrors the pipeline itself.
	if bundle.Story != nil {
		ack, err := r.SaveStoryToProject(ctx, projectID, *bundle.Story, actor)
		if err != nil {
			return fail("story", err)
		}
		record(storage.KindStory, ack.EntityID)
	}
	if bundle.Scenario != nil {
		ack, err := r.SaveScenarioToProject(ctx, projectID, *bundle.Scenario, actor)
		if err != nil {
			return fail("scenario", err)
		}
		record(storage.KindScenario, ack.EntityID)
	}
	if bundle.Prompt != nil {
		ack, err := r.SavePromptToProject(ctx, projectID, *bundle.Prompt, actor)
		if err != nil {
			return fail("prompt", err)
		}
		record(storage.KindPrompt, ack.EntityID)
	}
	if bundle.Video != nil {
		ack, err := r.SaveVideoToProject(ctx, projectID, *bundle.Video, actor)
		if err != nil {
			return fail("video", err)
		}
		record(storage.KindVideo, ack.EntityID)
	}

	r.txMu.Lock()
	j.completed = true
	r.txMu.Unlock()

	result.Success = true
	return result, nil
}

// rollbackPartialTransaction compensates a failed transaction by deleting
// the entities already written, in reverse order. A rollback failure is
// the one condition logged for operator follow-up rather than returned as
// a normal domain error: the stores are left inconsistent.
func (r *ProjectRepository) rollbackPartialTransaction(ctx context.Context, txID string) bool {
	r.txMu.Lock()
	j, ok := r.journal[txID]
	if !ok {
		r.txMu.Unlock()
		return false
	}
	entries := make([]txEntry, len(j.saved))
	copy(entries, j.saved)
	r.txMu.Unlock()

	allOK := true
	for i := len(entries) - 1; i >= 0; i-- {
		entry := entries[i]
		item := itemForEntry(entry)
		if err := r.engine.Delete(ctx, item); err != nil {
			allOK = false
			r.logger.Error("transaction rollback failed, manual intervention required",
				"transaction", txID, "kind", entry.kind, "id", entry.id, "error", err)
		}
	}

	r.invalidateProject(j.projectID, "")
	return allOK
}

// RecoverPartialTransaction reads back whatever was persisted under a
// transaction id for reconciliation. Best-effort by contract: it never
// fails, it only reports what it could find.
func (r *ProjectRepository) RecoverPartialTransaction(ctx context.Context, txID string) *dto.RecoveryResult {
	result := &dto.RecoveryResult{PartialData: make(map[string]interface{})}

	r.txMu.Lock()
	j, ok := r.journal[txID]
	var entries []txEntry
	if ok {
		entries = make([]txEntry, len(j.saved))
		copy(entries, j.saved)
	}
	r.txMu.Unlock()

	if !ok {
		return result
	}

	for _, entry := range entries {
		var data interface{}
		var err error
		switch entry.kind {
		case storage.KindStory:
			data, err = r.primary.FindStory(ctx, entry.id)
		case storage.KindScenario:
			data, err = r.primary.FindScenario(ctx, entry.id)
		case storage.KindPrompt:
			data, err = r.primary.FindPrompt(ctx, entry.id)
		case storage.KindVideo:
			data, err = r.primary.FindVideo(ctx, entry.id)
		default:
			continue
		}
		if err != nil {
			continue
		}
		result.PartialData[string(entry.kind)] = data
		result.Recovered = true
	}
	return result
}

// itemForEntry builds a skeletal item carrying just enough identity for a
// delete by kind and id.
func itemForEntry(entry txEntry) storage.Item {
	item := storage.Item{Kind: entry.kind}
	switch entry.kind {
	case storage.KindStory:
		item.Story = &models.Story{ID: entry.id}
	case storage.KindScenario:
		item.Scenario = &models.Scenario{ID: entry.id}
	case storage.KindPrompt:
		item.Prompt = &models.Prompt{ID: entry.id}
	case storage.KindVideo:
		item.Video = &models.VideoGeneration{ID: entry.id}
	}
	return item
}
