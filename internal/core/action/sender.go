package action

import (
	"context"
	"fmt"
	"sync"

	"github.com/coursepulse/coursepulse-be/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SenderPolicy selects the "from" identity of a delivery
type SenderPolicy string

const (
	SenderCourseTeacher SenderPolicy = "course_teacher"
	SenderGroupTeacher  SenderPolicy = "group_teacher"
	SenderTenantRole    SenderPolicy = "tenant_role"
	SenderCustom        SenderPolicy = "custom"
)

// Sender is a resolved "from" identity
type Sender struct {
	Name  string
	Email string
}

// SenderResolver resolves sender identities for deliveries. Course-teacher
// lookups are cached per course so a sweep over a large enrollment does not
// repeat the role query for every user.
type SenderResolver struct {
	db       *gorm.DB
	fallback Sender

	mu    sync.Mutex
	cache map[uuid.UUID]Sender
}

// NewSenderResolver creates a resolver; fallback is the system contact used
// when no capability holder is found
func NewSenderResolver(db *gorm.DB, fallback Sender) *SenderResolver {
	return &SenderResolver{
		db:       db,
		fallback: fallback,
		cache:    make(map[uuid.UUID]Sender),
	}
}

// Resolve picks the sender for one delivery according to the configured policy
func (r *SenderResolver) Resolve(ctx context.Context, policy SenderPolicy, cfg NotificationConfig, courseID, recipientID, tenantID uuid.UUID) (Sender, error) {
	switch policy {
	case SenderCustom:
		if cfg.CustomSenderEmail == "" {
			return r.fallback, fmt.Errorf("custom sender policy without an address")
		}
		return Sender{Name: cfg.CustomSenderName, Email: cfg.CustomSenderEmail}, nil

	case SenderGroupTeacher:
		sender, err := r.groupTeacher(ctx, courseID, recipientID)
		if err != nil {
			return r.fallback, err
		}
		if sender != nil {
			return *sender, nil
		}
		// No shared group: fall back to the course teacher
		return r.courseTeacher(ctx, courseID)

	case SenderTenantRole:
		role := cfg.TenantRole
		if role == "" {
			role = "manager"
		}
		sender, err := r.firstRoleHolder(ctx, r.db.WithContext(ctx).
			Where("course_roles.course_id IS NULL AND course_roles.tenant_id = ? AND course_roles.role = ?", tenantID, role))
		if err != nil {
			return r.fallback, err
		}
		if sender != nil {
			return *sender, nil
		}
		return r.fallback, nil

	default: // SenderCourseTeacher
		return r.courseTeacher(ctx, courseID)
	}
}

// courseTeacher returns the first teacher of the course, cached per course
func (r *SenderResolver) courseTeacher(ctx context.Context, courseID uuid.UUID) (Sender, error) {
	r.mu.Lock()
	if cached, ok := r.cache[courseID]; ok {
		r.mu.Unlock()
		return cached, nil
	}
	r.mu.Unlock()

	sender, err := r.firstRoleHolder(ctx, r.db.WithContext(ctx).
		Where("course_roles.course_id = ? AND course_roles.role = ?", courseID, "teacher"))
	if err != nil {
		return r.fallback, err
	}

	resolved := r.fallback
	if sender != nil {
		resolved = *sender
	}

	r.mu.Lock()
	r.cache[courseID] = resolved
	r.mu.Unlock()
	return resolved, nil
}

// groupTeacher returns the first teacher sharing a group with the recipient
func (r *SenderResolver) groupTeacher(ctx context.Context, courseID, recipientID uuid.UUID) (*Sender, error) {
	var groupIDs []uuid.UUID
	err := r.db.WithContext(ctx).Model(&models.GroupMember{}).
		Where("course_id = ? AND user_id = ?", courseID, recipientID).
		Pluck("group_id", &groupIDs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load recipient groups: %w", err)
	}
	if len(groupIDs) == 0 {
		return nil, nil
	}

	var row struct {
		FirstName string
		LastName  string
		Email     string
	}
	err = r.db.WithContext(ctx).Model(&models.GroupMember{}).
		Select("users.first_name, users.last_name, users.email").
		Joins("JOIN course_roles ON course_roles.user_id = group_members.user_id AND course_roles.course_id = group_members.course_id").
		Joins("JOIN users ON users.id = group_members.user_id").
		Where("group_members.group_id IN ? AND course_roles.role = ? AND users.deleted = ?", groupIDs, "teacher", false).
		Order("course_roles.created_at ASC").
		Limit(1).
		Scan(&row).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find group teacher: %w", err)
	}
	if row.Email == "" {
		return nil, nil
	}
	return &Sender{Name: displayName(row.FirstName, row.LastName), Email: row.Email}, nil
}

// firstRoleHolder runs a course_roles query and joins the holder's user row
func (r *SenderResolver) firstRoleHolder(ctx context.Context, query *gorm.DB) (*Sender, error) {
	var row struct {
		FirstName string
		LastName  string
		Email     string
	}
	err := query.Model(&models.CourseRole{}).
		Select("users.first_name, users.last_name, users.email").
		Joins("JOIN users ON users.id = course_roles.user_id").
		Where("users.deleted = ?", false).
		Order("course_roles.created_at ASC").
		Limit(1).
		Scan(&row).Error
	if err != nil {
		return nil, fmt.Errorf("failed to resolve sender role: %w", err)
	}
	if row.Email == "" {
		return nil, nil
	}
	return &Sender{Name: displayName(row.FirstName, row.LastName), Email: row.Email}, nil
}

func displayName(first, last string) string {
	switch {
	case first == "":
		return last
	case last == "":
		return first
	default:
		return first + " " + last
	}
}
