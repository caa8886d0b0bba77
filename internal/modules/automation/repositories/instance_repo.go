package repositories

import (
	"github.com/coursepulse/coursepulse-be/internal/modules/automation/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InstanceRepo interface for instance database operations
type InstanceRepo interface {
	Create(instance *models.Instance) error
	FindByID(id uuid.UUID) (*models.Instance, error)
	FindByIDFull(id uuid.UUID) (*models.Instance, error)
	FindByCourseID(courseID uuid.UUID) ([]models.Instance, error)
	FindActiveByCourseID(courseID uuid.UUID) ([]models.Instance, error)
	FindActiveIDs() ([]uuid.UUID, error)
	Update(instance *models.Instance) error
	Delete(id uuid.UUID) error
	MarkOrphanedByTemplate(templateID uuid.UUID) (int64, error)
	MarkOrphanedOutsideCategories(templateID uuid.UUID, categoryIDs []uuid.UUID) (int64, error)
	UpsertOverride(override *models.ConditionOverride) error
	FindOverrides(instanceID uuid.UUID) ([]models.ConditionOverride, error)
	DeleteOverride(instanceID uuid.UUID, plugin string) error
}

type instanceRepo struct {
	db *gorm.DB
}

// NewInstanceRepo creates a new instance repository
func NewInstanceRepo(db *gorm.DB) InstanceRepo {
	return &instanceRepo{db: db}
}

func (r *instanceRepo) Create(instance *models.Instance) error {
	return r.db.Create(instance).Error
}

func (r *instanceRepo) FindByID(id uuid.UUID) (*models.Instance, error) {
	var instance models.Instance
	err := r.db.Where("id = ?", id).First(&instance).Error
	if err != nil {
		return nil, err
	}
	return &instance, nil
}

// FindByIDFull loads the instance with its template and condition overrides
func (r *instanceRepo) FindByIDFull(id uuid.UUID) (*models.Instance, error) {
	var instance models.Instance
	err := r.db.Preload("Template").Preload("Overrides").Where("id = ?", id).First(&instance).Error
	if err != nil {
		return nil, err
	}
	return &instance, nil
}

func (r *instanceRepo) FindByCourseID(courseID uuid.UUID) ([]models.Instance, error) {
	var instances []models.Instance
	err := r.db.Preload("Template").Where("course_id = ?", courseID).Order("created_at DESC").Find(&instances).Error
	return instances, err
}

func (r *instanceRepo) FindActiveByCourseID(courseID uuid.UUID) ([]models.Instance, error) {
	var instances []models.Instance
	err := r.db.Preload("Template").Preload("Overrides").
		Where("course_id = ? AND status = ?", courseID, models.InstanceEnabled).
		Find(&instances).Error
	return instances, err
}

func (r *instanceRepo) FindActiveIDs() ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.Model(&models.Instance{}).Where("status = ?", models.InstanceEnabled).Pluck("id", &ids).Error
	return ids, err
}

func (r *instanceRepo) Update(instance *models.Instance) error {
	return r.db.Save(instance).Error
}

func (r *instanceRepo) Delete(id uuid.UUID) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("instance_id = ?", id).Delete(&models.ConditionOverride{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&models.Instance{}).Error
	})
}

// MarkOrphanedByTemplate flags every instance of a deleted template so the
// sweep and trigger paths skip them while course pages can still show why
func (r *instanceRepo) MarkOrphanedByTemplate(templateID uuid.UUID) (int64, error) {
	result := r.db.Model(&models.Instance{}).
		Where("template_id = ? AND status <> ?", templateID, models.InstanceOrphaned).
		Update("status", models.InstanceOrphaned)
	return result.RowsAffected, result.Error
}

// MarkOrphanedOutsideCategories flags instances whose course no longer falls
// inside the template's permitted categories
func (r *instanceRepo) MarkOrphanedOutsideCategories(templateID uuid.UUID, categoryIDs []uuid.UUID) (int64, error) {
	if len(categoryIDs) == 0 {
		return 0, nil
	}
	result := r.db.Model(&models.Instance{}).
		Where("template_id = ? AND status <> ?", templateID, models.InstanceOrphaned).
		Where("course_id IN (?)", r.db.Table("courses").Select("id").Where("category_id NOT IN ?", categoryIDs)).
		Update("status", models.InstanceOrphaned)
	return result.RowsAffected, result.Error
}

func (r *instanceRepo) UpsertOverride(override *models.ConditionOverride) error {
	var existing models.ConditionOverride
	err := r.db.Where("instance_id = ? AND plugin = ?", override.InstanceID, override.Plugin).First(&existing).Error
	if err == gorm.ErrRecordNotFound {
		return r.db.Create(override).Error
	}
	if err != nil {
		return err
	}
	override.ID = existing.ID
	override.CreatedAt = existing.CreatedAt
	return r.db.Save(override).Error
}

func (r *instanceRepo) FindOverrides(instanceID uuid.UUID) ([]models.ConditionOverride, error) {
	var overrides []models.ConditionOverride
	err := r.db.Where("instance_id = ?", instanceID).Find(&overrides).Error
	return overrides, err
}

func (r *instanceRepo) DeleteOverride(instanceID uuid.UUID, plugin string) error {
	return r.db.Where("instance_id = ? AND plugin = ?", instanceID, plugin).Delete(&models.ConditionOverride{}).Error
}
