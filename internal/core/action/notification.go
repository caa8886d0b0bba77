package action

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/coursepulse/coursepulse-be/internal/core/mailer"
	"github.com/coursepulse/coursepulse-be/internal/core/schedule"
	"github.com/coursepulse/coursepulse-be/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ExcerptPolicy controls how dynamic course-module content is rendered
type ExcerptPolicy string

const (
	ExcerptTeaser       ExcerptPolicy = "teaser"
	ExcerptFullLinked   ExcerptPolicy = "full_linked"
	ExcerptFullUnlinked ExcerptPolicy = "full_unlinked"
)

const defaultTeaserLength = 300

// NotificationConfig is the configuration of the built-in notification action
type NotificationConfig struct {
	Schedule schedule.Config `json:"schedule"`

	SenderPolicy      SenderPolicy `json:"sender_policy"`
	CustomSenderName  string       `json:"custom_sender_name,omitempty"`
	CustomSenderEmail string       `json:"custom_sender_email,omitempty"`
	TenantRole        string       `json:"tenant_role,omitempty"`

	CCRoles  []string `json:"cc_roles,omitempty"`
	BCCRoles []string `json:"bcc_roles,omitempty"`

	Subject       string `json:"subject"`
	HeaderContent string `json:"header_content,omitempty"`
	StaticContent string `json:"static_content"`
	FooterContent string `json:"footer_content,omitempty"`

	DynamicModuleID *uuid.UUID    `json:"dynamic_module_id,omitempty"`
	ExcerptPolicy   ExcerptPolicy `json:"excerpt_policy,omitempty"`
	TeaserLength    int           `json:"teaser_length,omitempty"`
}

// Validate checks the configuration at save time
func (c NotificationConfig) Validate() error {
	if err := c.Schedule.Validate(); err != nil {
		return err
	}

	switch c.SenderPolicy {
	case "", SenderCourseTeacher, SenderGroupTeacher, SenderTenantRole:
	case SenderCustom:
		if c.CustomSenderEmail == "" {
			return fmt.Errorf("custom sender policy requires custom_sender_email")
		}
	default:
		return fmt.Errorf("unknown sender policy: %q", c.SenderPolicy)
	}

	switch c.ExcerptPolicy {
	case "", ExcerptTeaser, ExcerptFullLinked, ExcerptFullUnlinked:
	default:
		return fmt.Errorf("unknown excerpt policy: %q", c.ExcerptPolicy)
	}

	if c.Subject == "" {
		return fmt.Errorf("notification requires a subject")
	}
	if c.TeaserLength < 0 {
		return fmt.Errorf("teaser_length must not be negative")
	}

	return nil
}

// Timing exposes the schedule portion of the configuration
func (c NotificationConfig) Timing() schedule.Config {
	return c.Schedule
}

// NotificationPlugin delivers an email notification built from the configured
// content fragments
type NotificationPlugin struct{}

func (NotificationPlugin) Name() string { return "notification" }

func (NotificationPlugin) DecodeConfig(raw json.RawMessage) (Config, error) {
	var cfg NotificationConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode notification config: %w", err)
	}
	if cfg.Schedule.Interval == "" {
		cfg.Schedule.Interval = schedule.IntervalOnce
	}
	if cfg.SenderPolicy == "" {
		cfg.SenderPolicy = SenderCourseTeacher
	}
	if cfg.ExcerptPolicy == "" {
		cfg.ExcerptPolicy = ExcerptFullUnlinked
	}
	if cfg.TeaserLength == 0 {
		cfg.TeaserLength = defaultTeaserLength
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Execute builds and sends one notification email. A false return means the
// delivery did not happen and the schedule should be marked failed.
func (NotificationPlugin) Execute(ctx context.Context, deps Deps, cfg Config, courseID, userID, scheduleID uuid.UUID) (bool, error) {
	notification, ok := cfg.(NotificationConfig)
	if !ok {
		return false, fmt.Errorf("unexpected config type %T for notification action", cfg)
	}

	var user models.User
	if err := deps.DB.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		return false, fmt.Errorf("failed to load recipient: %w", err)
	}
	if !user.Deliverable() {
		return false, fmt.Errorf("recipient %s has no valid delivery address", userID)
	}

	var course models.Course
	if err := deps.DB.WithContext(ctx).First(&course, "id = ?", courseID).Error; err != nil {
		return false, fmt.Errorf("failed to load course: %w", err)
	}

	sender, err := deps.Senders.Resolve(ctx, notification.SenderPolicy, notification, courseID, userID, course.TenantID)
	if err != nil {
		// Sender resolution falls back to the system contact; log and continue
		log.Printf("⚠️ Sender resolution degraded for schedule %s: %v", scheduleID, err)
	}

	cc, err := roleEmails(ctx, deps.DB, courseID, notification.CCRoles)
	if err != nil {
		return false, err
	}
	bcc, err := roleEmails(ctx, deps.DB, courseID, notification.BCCRoles)
	if err != nil {
		return false, err
	}

	vars := placeholderData(&user, &course)
	subject := replaceVariables(notification.Subject, vars)
	htmlBody, err := buildBody(ctx, deps.DB, notification, vars)
	if err != nil {
		return false, err
	}

	msg := mailer.Message{
		To:        user.Email,
		CC:        cc,
		BCC:       bcc,
		Subject:   subject,
		HTMLBody:  htmlBody,
		PlainBody: stripTags(htmlBody),
		FromName:  sender.Name,
		FromEmail: sender.Email,
	}

	if err := deps.Mailer.Send(msg); err != nil {
		return false, fmt.Errorf("failed to send notification: %w", err)
	}

	log.Printf("📤 Notification sent to %s (schedule %s)", user.Email, scheduleID)
	return true, nil
}

// roleEmails collects the addresses of every holder of the given roles in the
// course
func roleEmails(ctx context.Context, db *gorm.DB, courseID uuid.UUID, roles []string) ([]string, error) {
	if len(roles) == 0 {
		return nil, nil
	}

	var emails []string
	err := db.WithContext(ctx).Model(&models.CourseRole{}).
		Select("DISTINCT users.email").
		Joins("JOIN users ON users.id = course_roles.user_id").
		Where("course_roles.course_id = ? AND course_roles.role IN ? AND users.deleted = ? AND users.email <> ''", courseID, roles, false).
		Pluck("users.email", &emails).Error
	if err != nil {
		return nil, fmt.Errorf("failed to resolve role recipients: %w", err)
	}
	return emails, nil
}
