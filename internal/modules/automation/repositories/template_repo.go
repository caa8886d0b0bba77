package repositories

import (
	"github.com/coursepulse/coursepulse-be/internal/modules/automation/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TemplateRepo interface for template database operations
type TemplateRepo interface {
	Create(template *models.Template) error
	FindByID(id uuid.UUID) (*models.Template, error)
	FindByReference(reference string) (*models.Template, error)
	List(onlyVisible bool) ([]models.Template, error)
	Update(template *models.Template) error
	Delete(id uuid.UUID) error
	CountInstances(id uuid.UUID) (int64, error)
}

type templateRepo struct {
	db *gorm.DB
}

// NewTemplateRepo creates a new template repository
func NewTemplateRepo(db *gorm.DB) TemplateRepo {
	return &templateRepo{db: db}
}

func (r *templateRepo) Create(template *models.Template) error {
	return r.db.Create(template).Error
}

func (r *templateRepo) FindByID(id uuid.UUID) (*models.Template, error) {
	var template models.Template
	err := r.db.Where("id = ?", id).First(&template).Error
	if err != nil {
		return nil, err
	}
	return &template, nil
}

func (r *templateRepo) FindByReference(reference string) (*models.Template, error) {
	var template models.Template
	err := r.db.Where("reference = ?", reference).First(&template).Error
	if err != nil {
		return nil, err
	}
	return &template, nil
}

func (r *templateRepo) List(onlyVisible bool) ([]models.Template, error) {
	var templates []models.Template
	query := r.db.Order("created_at DESC")
	if onlyVisible {
		query = query.Where("visible = ?", true)
	}
	err := query.Find(&templates).Error
	return templates, err
}

func (r *templateRepo) Update(template *models.Template) error {
	return r.db.Save(template).Error
}

func (r *templateRepo) Delete(id uuid.UUID) error {
	return r.db.Where("id = ?", id).Delete(&models.Template{}).Error
}

func (r *templateRepo) CountInstances(id uuid.UUID) (int64, error) {
	var count int64
	err := r.db.Model(&models.Instance{}).Where("template_id = ?", id).Count(&count).Error
	return count, err
}
