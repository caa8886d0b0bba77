package repositories

import (
	"time"

	"github.com/coursepulse/coursepulse-be/internal/modules/automation/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CursorRepo interface for sweep cursor persistence
type CursorRepo interface {
	Get(instanceID uuid.UUID) (*models.SweepCursor, error)
	Save(cursor *models.SweepCursor) error
	Reset(instanceID uuid.UUID, sweptAt time.Time) error
}

type cursorRepo struct {
	db *gorm.DB
}

// NewCursorRepo creates a new sweep cursor repository
func NewCursorRepo(db *gorm.DB) CursorRepo {
	return &cursorRepo{db: db}
}

// Get returns the cursor for an instance, zero-valued when none is stored
func (r *cursorRepo) Get(instanceID uuid.UUID) (*models.SweepCursor, error) {
	var cursor models.SweepCursor
	err := r.db.Where("instance_id = ?", instanceID).First(&cursor).Error
	if err == gorm.ErrRecordNotFound {
		return &models.SweepCursor{InstanceID: instanceID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &cursor, nil
}

func (r *cursorRepo) Save(cursor *models.SweepCursor) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "instance_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"offset", "swept_at", "updated_at"}),
	}).Create(cursor).Error
}

// Reset marks a completed sweep by rewinding the offset to zero
func (r *cursorRepo) Reset(instanceID uuid.UUID, sweptAt time.Time) error {
	return r.Save(&models.SweepCursor{InstanceID: instanceID, Offset: 0, SweptAt: sweptAt})
}
