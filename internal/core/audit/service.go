package audit

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Service records and queries the automation audit trail
type Service struct {
	db *gorm.DB
}

// NewService creates a new audit service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Record stores one audit entry. Failures are logged, never propagated: an
// audit hiccup must not fail the operation it describes
func (s *Service) Record(actorID uuid.UUID, action, entity string, entityID uuid.UUID, oldValue, newValue interface{}) {
	entry := &Entry{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
		OldValue: toJSON(oldValue),
		NewValue: toJSON(newValue),
	}
	if err := s.db.Create(entry).Error; err != nil {
		log.Printf("⚠️ Failed to write audit entry (%s %s %s): %v", action, entity, entityID, err)
	}
}

// Query retrieves audit entries with filtering and pagination
func (s *Service) Query(filter Filter) (*Page, error) {
	query := s.db.Model(&Entry{})

	if filter.ActorID != nil {
		query = query.Where("actor_id = ?", *filter.ActorID)
	}
	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}
	if filter.Entity != "" {
		query = query.Where("entity = ?", filter.Entity)
	}
	if filter.EntityID != nil {
		query = query.Where("entity_id = ?", *filter.EntityID)
	}

	var totalCount int64
	if err := query.Count(&totalCount).Error; err != nil {
		return nil, fmt.Errorf("failed to count audit entries: %w", err)
	}

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 50
	}

	var entries []Entry
	err := query.
		Order("created_at DESC").
		Limit(filter.PageSize).
		Offset((filter.Page - 1) * filter.PageSize).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}

	return &Page{
		Entries:    entries,
		TotalCount: totalCount,
		PageNum:    filter.Page,
		PageSize:   filter.PageSize,
	}, nil
}

// EntityHistory retrieves all recorded changes for one entity
func (s *Service) EntityHistory(entity string, entityID uuid.UUID) ([]Entry, error) {
	var entries []Entry
	err := s.db.Where("entity = ? AND entity_id = ?", entity, entityID).
		Order("created_at DESC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get entity history: %w", err)
	}
	return entries, nil
}

// DeleteOldEntries removes entries older than the given number of days
func (s *Service) DeleteOldEntries(daysToKeep int) (int64, error) {
	if daysToKeep < 1 {
		return 0, fmt.Errorf("daysToKeep must be at least 1")
	}

	cutoff := s.db.NowFunc().AddDate(0, 0, -daysToKeep)
	result := s.db.Where("created_at < ?", cutoff).Delete(&Entry{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete old audit entries: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func toJSON(value interface{}) datatypes.JSON {
	if value == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		log.Printf("⚠️ Failed to serialize audit snapshot: %v", err)
		return nil
	}
	return datatypes.JSON(raw)
}
