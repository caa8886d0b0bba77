package condition

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/coursepulse/coursepulse-be/internal/core/events"
	"github.com/coursepulse/coursepulse-be/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SessionConfig configures the session signup condition
type SessionConfig struct {
	SessionIDs []uuid.UUID `json:"session_ids"`
}

func (c SessionConfig) Validate() error {
	if len(c.SessionIDs) == 0 {
		return fmt.Errorf("session condition requires at least one session")
	}
	return nil
}

// SessionPlugin gates on having signed up for one of the configured sessions.
// It also supplies the session start as a reference timestamp so "before"
// delays can schedule reminders ahead of the session.
type SessionPlugin struct{}

func (SessionPlugin) Name() string { return "session" }

func (SessionPlugin) Options() []Status {
	return []Status{StatusDisabled, StatusAll}
}

func (SessionPlugin) DecodeConfig(raw json.RawMessage) (Config, error) {
	var cfg SessionConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode session config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (SessionPlugin) IsUserCompleted(ctx context.Context, db *gorm.DB, cfg Config, courseID, userID uuid.UUID) (bool, error) {
	session, ok := cfg.(SessionConfig)
	if !ok {
		return false, fmt.Errorf("unexpected config type %T for session condition", cfg)
	}

	var count int64
	err := db.WithContext(ctx).Model(&models.SessionSignup{}).
		Where("user_id = ? AND session_id IN ?", userID, session.SessionIDs).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check session signup: %w", err)
	}
	return count > 0, nil
}

func (SessionPlugin) MatchesEvent(cfg Config, evt events.Event) bool {
	if evt.Name != events.SessionSignup {
		return false
	}
	session, ok := cfg.(SessionConfig)
	if !ok {
		return false
	}
	for _, id := range session.SessionIDs {
		if id == evt.SubjectID {
			return true
		}
	}
	return false
}

// ReferenceTime returns the user's earliest upcoming session start among the
// configured sessions
func (SessionPlugin) ReferenceTime(ctx context.Context, db *gorm.DB, cfg Config, courseID, userID uuid.UUID) (*time.Time, error) {
	session, ok := cfg.(SessionConfig)
	if !ok {
		return nil, fmt.Errorf("unexpected config type %T for session condition", cfg)
	}

	var signup models.SessionSignup
	err := db.WithContext(ctx).
		Where("user_id = ? AND session_id IN ? AND session_start > ?", userID, session.SessionIDs, time.Now()).
		Order("session_start ASC").
		First(&signup).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up session start: %w", err)
	}
	return &signup.SessionStart, nil
}
