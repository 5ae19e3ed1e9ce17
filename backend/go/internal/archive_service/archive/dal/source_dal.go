package dal

import (
	"AskArchive/backend/go/internal/archive_service/archive/interfaces"
	"AskArchive/backend/go/internal/models"
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SourceDAL provides data access methods for archived sources.
type SourceDAL struct {
	db *gorm.DB
}

// NewSourceDAL creates a new SourceDAL.
func NewSourceDAL(db *gorm.DB) *SourceDAL {
	return &SourceDAL{db: db}
}

// Migrate creates or updates the ingestion_sources table.
func (dal *SourceDAL) Migrate(ctx context.Context) error {
	return dal.db.WithContext(ctx).AutoMigrate(&models.IngestionSource{})
}

// Exists reports whether the user already archived sourceID.
func (dal *SourceDAL) Exists(ctx context.Context, userID, sourceID string) (bool, error) {
	var row models.IngestionSource
	err := dal.db.WithContext(ctx).
		Select("id").
		Where("user_id = ? AND source_id = ?", userID, sourceID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// RegisterSource inserts the row. A row that already exists for the same
// user and source is left untouched.
func (dal *SourceDAL) RegisterSource(ctx context.Context, source *models.IngestionSource) error {
	return dal.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(source).Error
}

// ListSources retrieves all sources of a user, newest first.
func (dal *SourceDAL) ListSources(ctx context.Context, userID string) ([]*models.IngestionSource, error) {
	var sources []*models.IngestionSource
	result := dal.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&sources)
	if result.Error != nil {
		return nil, result.Error
	}
	return sources, nil
}

// DeleteSource removes one source row and returns the number of rows deleted.
// A missing row is not an error.
func (dal *SourceDAL) DeleteSource(ctx context.Context, userID, sourceID string) (int64, error) {
	result := dal.db.WithContext(ctx).
		Where("user_id = ? AND source_id = ?", userID, sourceID).
		Delete(&models.IngestionSource{})
	return result.RowsAffected, result.Error
}

// DeleteUserSources removes every source row of a user in one transaction.
func (dal *SourceDAL) DeleteUserSources(ctx context.Context, userID string) (int64, error) {
	var removed int64
	err := dal.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("user_id = ?", userID).Delete(&models.IngestionSource{})
		if result.Error != nil {
			return result.Error
		}
		removed = result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

var _ interfaces.MetadataStore = (*SourceDAL)(nil)
