package services

import (
	"fmt"
	"time"

	"github.com/coursepulse/coursepulse-be/internal/core/export"
	coremodels "github.com/coursepulse/coursepulse-be/internal/models"
	"github.com/coursepulse/coursepulse-be/internal/modules/automation/repositories"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ScheduleReportRow is one user's delivery state within an instance report
type ScheduleReportRow struct {
	ScheduleID      uuid.UUID  `json:"schedule_id"`
	UserID          uuid.UUID  `json:"user_id"`
	FullName        string     `json:"full_name"`
	Email           string     `json:"email"`
	Status          string     `json:"status"`
	ScheduleTime    *time.Time `json:"schedule_time,omitempty"`
	NotifyCount     int        `json:"notify_count"`
	SuppressReached bool       `json:"suppress_reached"`
	LastSentAt      *time.Time `json:"last_sent_at,omitempty"`
	LastError       string     `json:"last_error,omitempty"`
}

// ScheduleReport is the full per-instance delivery overview
type ScheduleReport struct {
	InstanceID   uuid.UUID           `json:"instance_id"`
	CourseID     uuid.UUID           `json:"course_id"`
	Template     string              `json:"template"`
	StatusCounts map[string]int64    `json:"status_counts"`
	Rows         []ScheduleReportRow `json:"rows"`
}

// ReportService projects schedule state into the per-instance report teachers
// see on the course page
type ReportService struct {
	db           *gorm.DB
	instanceRepo repositories.InstanceRepo
	scheduleRepo repositories.ScheduleRepo
	exporter     *export.Service
}

// NewReportService creates a new report service
func NewReportService(db *gorm.DB, instanceRepo repositories.InstanceRepo, scheduleRepo repositories.ScheduleRepo, exporter *export.Service) *ReportService {
	return &ReportService{db: db, instanceRepo: instanceRepo, scheduleRepo: scheduleRepo, exporter: exporter}
}

// InstanceReport builds the schedule report for one instance
func (s *ReportService) InstanceReport(instanceID uuid.UUID) (*ScheduleReport, error) {
	instance, err := s.instanceRepo.FindByIDFull(instanceID)
	if err != nil {
		return nil, fmt.Errorf("instance not found: %w", err)
	}

	counts, err := s.scheduleRepo.CountByInstanceStatus(instanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to count schedules: %w", err)
	}

	schedules, err := s.scheduleRepo.FindByInstance(instanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load schedules: %w", err)
	}

	userIDs := make([]uuid.UUID, 0, len(schedules))
	for _, sched := range schedules {
		userIDs = append(userIDs, sched.UserID)
	}
	users := map[uuid.UUID]coremodels.User{}
	if len(userIDs) > 0 {
		var rows []coremodels.User
		if err := s.db.Where("id IN ?", userIDs).Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("failed to load users: %w", err)
		}
		for _, u := range rows {
			users[u.ID] = u
		}
	}

	report := &ScheduleReport{
		InstanceID:   instanceID,
		CourseID:     instance.CourseID,
		StatusCounts: counts,
		Rows:         make([]ScheduleReportRow, 0, len(schedules)),
	}
	if instance.Template != nil {
		report.Template = instance.Template.Title
	}

	for _, sched := range schedules {
		row := ScheduleReportRow{
			ScheduleID:      sched.ID,
			UserID:          sched.UserID,
			Status:          sched.Status,
			ScheduleTime:    sched.ScheduleTime,
			NotifyCount:     sched.NotifyCount,
			SuppressReached: sched.SuppressReached,
			LastSentAt:      sched.LastSentAt,
			LastError:       sched.LastError,
		}
		if user, ok := users[sched.UserID]; ok {
			row.FullName = user.FullName()
			row.Email = user.Email
		}
		report.Rows = append(report.Rows, row)
	}
	return report, nil
}

// ExportInstanceReport renders the instance report as a downloadable file.
// Returns the file bytes, content type, and suggested filename.
func (s *ReportService) ExportInstanceReport(instanceID uuid.UUID, format export.Format) ([]byte, string, string, error) {
	report, err := s.InstanceReport(instanceID)
	if err != nil {
		return nil, "", "", err
	}

	headers := []string{"User", "Email", "Status", "Scheduled for", "Sent count", "Suppressed", "Last sent", "Last error"}
	rows := make([][]interface{}, 0, len(report.Rows))
	for _, r := range report.Rows {
		rows = append(rows, []interface{}{
			r.FullName,
			r.Email,
			r.Status,
			formatReportTime(r.ScheduleTime),
			r.NotifyCount,
			r.SuppressReached,
			formatReportTime(r.LastSentAt),
			r.LastError,
		})
	}

	title := fmt.Sprintf("Schedule report - %s", report.Template)
	doc := export.NewDocument(title, headers, rows)

	content, contentType, ext, err := s.exporter.Export(doc, format)
	if err != nil {
		return nil, "", "", err
	}

	filename := fmt.Sprintf("schedule-report-%s%s", instanceID, ext)
	return content, contentType, filename, nil
}

func formatReportTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04")
}
