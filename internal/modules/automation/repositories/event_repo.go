package repositories

import (
	"context"
	"encoding/json"

	"github.com/coursepulse/coursepulse-be/internal/core/events"
	coremodels "github.com/coursepulse/coursepulse-be/internal/models"
	"github.com/coursepulse/coursepulse-be/internal/modules/automation/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EventRepo persists observed platform events and answers the enrolment
// paging queries the sweep walks through
type EventRepo interface {
	Persist(ctx context.Context, evt *events.Event) error
	Recent(courseID uuid.UUID, limit int) ([]models.EventRecord, error)
	EnrolmentsPage(courseID uuid.UUID, offset, limit int) ([]coremodels.Enrolment, error)
	CountEnrolments(courseID uuid.UUID) (int64, error)
}

type eventRepo struct {
	db *gorm.DB
}

// NewEventRepo creates a new event repository
func NewEventRepo(db *gorm.DB) EventRepo {
	return &eventRepo{db: db}
}

// Persist satisfies events.Store so the bus writes a durable record before
// any handler runs
func (r *eventRepo) Persist(ctx context.Context, evt *events.Event) error {
	record := models.EventRecord{
		ID:         evt.ID,
		Name:       evt.Name,
		CourseID:   evt.CourseID,
		UserID:     evt.UserID,
		OccurredAt: evt.OccurredAt,
	}
	if evt.SubjectID != uuid.Nil {
		subject := evt.SubjectID
		record.SubjectID = &subject
	}
	if len(evt.Data) > 0 {
		raw, err := json.Marshal(evt.Data)
		if err != nil {
			return err
		}
		record.Data = datatypes.JSON(raw)
	}
	return r.db.WithContext(ctx).Create(&record).Error
}

func (r *eventRepo) Recent(courseID uuid.UUID, limit int) ([]models.EventRecord, error) {
	var records []models.EventRecord
	query := r.db.Where("course_id = ?", courseID).Order("occurred_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&records).Error
	return records, err
}

// EnrolmentsPage returns active enrolments for one course in a stable order
// so the sweep cursor stays meaningful across calls
func (r *eventRepo) EnrolmentsPage(courseID uuid.UUID, offset, limit int) ([]coremodels.Enrolment, error) {
	var enrolments []coremodels.Enrolment
	err := r.db.Where("course_id = ? AND active = ?", courseID, true).
		Order("created_at ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&enrolments).Error
	return enrolments, err
}

func (r *eventRepo) CountEnrolments(courseID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.Model(&coremodels.Enrolment{}).
		Where("course_id = ? AND active = ?", courseID, true).
		Count(&count).Error
	return count, err
}
