package pipeline

import (
	"AskArchive/backend/go/internal/archive_service/archive/interfaces"
	"AskArchive/backend/go/internal/archive_service/archive/schema"
	"AskArchive/backend/go/internal/models"
	"AskArchive/backend/go/pkg/logger"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// wipeIncomplete is returned to callers whenever either side of a delete fails.
const wipeIncomplete = "Wipe incomplete. Check logs for database or vector sync issues."

// DeletionPipeline removes archived content from both stores, vector side first.
// Each side is attempted independently and nothing is rolled back.
type DeletionPipeline struct {
	vectorStore interfaces.VectorStore
	metadata    interfaces.MetadataStore
	reporter    interfaces.SyncReporter
	log         *logger.Logger
}

// NewDeletionPipeline creates a new DeletionPipeline. reporter may be nil.
func NewDeletionPipeline(
	vectorStore interfaces.VectorStore,
	metadata interfaces.MetadataStore,
	reporter interfaces.SyncReporter,
	log *logger.Logger,
) *DeletionPipeline {
	return &DeletionPipeline{
		vectorStore: vectorStore,
		metadata:    metadata,
		reporter:    reporter,
		log:         log,
	}
}

// DeleteSource removes one source's vectors and its metadata row.
func (p *DeletionPipeline) DeleteSource(ctx context.Context, userID, sourceID string) (*schema.DeleteResult, error) {
	const op = "delete_source"
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(sourceID) == "" {
		return nil, schema.E(schema.KindInvalidInput, op, "user id and source id are required", nil)
	}
	namespace := schema.Namespace(userID)
	p.log.Info(fmt.Sprintf("Deleting source '%s' from namespace %s", sourceID, namespace))

	// 1. Vector side
	vecErr := p.vectorStore.Delete(ctx, namespace, schema.DeleteRequest{
		Filter: schema.Filter{schema.MetaSource: sourceID},
	})
	if vecErr != nil {
		p.log.Error(fmt.Sprintf("Failed to delete vectors for source '%s': %v", sourceID, vecErr))
	}

	// 2. Relational side
	removed, relErr := p.metadata.DeleteSource(ctx, userID, sourceID)
	if relErr != nil {
		p.log.Error(fmt.Sprintf("Failed to delete metadata row for source '%s': %v", sourceID, relErr))
	}

	if err := p.partialFailure(ctx, op, userID, sourceID, vecErr, relErr); err != nil {
		return nil, err
	}
	if removed == 0 {
		p.log.Warn(fmt.Sprintf("No metadata row existed for source '%s'", sourceID))
	}
	return &schema.DeleteResult{
		Status:  schema.StatusSuccess,
		Message: fmt.Sprintf("Archive wiped. Removed source %s for %s.", sourceID, namespace),
		Removed: removed,
	}, nil
}

// DeleteUser clears the user's whole namespace and all of their metadata rows.
func (p *DeletionPipeline) DeleteUser(ctx context.Context, userID string) (*schema.DeleteResult, error) {
	const op = "delete_user"
	if strings.TrimSpace(userID) == "" {
		return nil, schema.E(schema.KindInvalidInput, op, "user id is required", nil)
	}
	namespace := schema.Namespace(userID)
	p.log.Info(fmt.Sprintf("Deleting all archived content in namespace %s", namespace))

	// 1. Vector side
	vecErr := p.vectorStore.Delete(ctx, namespace, schema.DeleteRequest{DeleteAll: true})
	if vecErr != nil {
		p.log.Error(fmt.Sprintf("Failed to clear namespace %s: %v", namespace, vecErr))
	}

	// 2. Relational side
	removed, relErr := p.metadata.DeleteUserSources(ctx, userID)
	if relErr != nil {
		p.log.Error(fmt.Sprintf("Failed to delete metadata rows for user %s: %v", userID, relErr))
	}

	if err := p.partialFailure(ctx, op, userID, "", vecErr, relErr); err != nil {
		return nil, err
	}
	return &schema.DeleteResult{
		Status:  schema.StatusSuccess,
		Message: fmt.Sprintf("Archive wiped. Removed %d sources for %s.", removed, namespace),
		Removed: removed,
	}, nil
}

// partialFailure turns the per-side errors into a single PartialSync error, or nil.
func (p *DeletionPipeline) partialFailure(ctx context.Context, op, userID, sourceID string, vecErr, relErr error) error {
	var side string
	switch {
	case vecErr != nil && relErr != nil:
		side = schema.SideBoth
	case vecErr != nil:
		side = schema.SideVector
	case relErr != nil:
		side = schema.SideRelational
	default:
		return nil
	}

	e := &schema.Error{
		Kind:    schema.KindPartialSync,
		Op:      op,
		Message: wipeIncomplete,
		Side:    side,
		Err:     errors.Join(vecErr, relErr),
	}
	p.log.WithPayload(map[string]interface{}{
		"user_id":     userID,
		"source_id":   sourceID,
		"failed_side": side,
	}).Warn("Delete left the vector and relational stores out of sync")

	if p.reporter != nil {
		event := &models.SyncEvent{
			Type:       models.SyncPartialDelete,
			UserID:     userID,
			SourceID:   sourceID,
			Namespace:  schema.Namespace(userID),
			FailedSide: side,
			Message:    e.Error(),
			Timestamp:  time.Now().UTC(),
		}
		if err := p.reporter.Report(ctx, event); err != nil {
			p.log.Error(fmt.Sprintf("Failed to report partial delete: %v", err))
		}
	}
	return e
}
