package condition

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Spec is one condition with its effective settings after template/instance
// override resolution
type Spec struct {
	Plugin       string
	Status       Status
	UpcomingTime *time.Time
	Config       Config
}

// Evaluator combines the conditions selected for an instance into a single
// eligibility verdict
type Evaluator struct {
	registry *Registry
	db       *gorm.DB
}

// NewEvaluator creates a new condition evaluator
func NewEvaluator(registry *Registry, db *gorm.DB) *Evaluator {
	return &Evaluator{registry: registry, db: db}
}

// IsEligible evaluates all enabled conditions for one (course, user) pair.
//
// enrolledAt is the user's enrolment time, used to grandfather users under
// "upcoming" conditions: a user enrolled before the condition's baseline is
// never blocked by it.
//
// A plugin that errors counts as not satisfied (fail-closed) and is logged;
// it never aborts the evaluation of the other conditions. An empty enabled
// set is vacuously eligible, including under the ALL operator.
func (e *Evaluator) IsEligible(ctx context.Context, specs []Spec, operator Operator, courseID, userID uuid.UUID, enrolledAt *time.Time, now time.Time) bool {
	evaluated := 0
	satisfied := 0

	for _, spec := range specs {
		if spec.Status == StatusDisabled || spec.Status == "" {
			continue
		}

		evaluated++
		if e.evaluateOne(ctx, spec, courseID, userID, enrolledAt, now) {
			satisfied++
		}
	}

	if evaluated == 0 {
		return true
	}

	if operator == OperatorAny {
		return satisfied > 0
	}
	return satisfied == evaluated
}

// evaluateOne resolves a single condition verdict
func (e *Evaluator) evaluateOne(ctx context.Context, spec Spec, courseID, userID uuid.UUID, enrolledAt *time.Time, now time.Time) bool {
	// Grandfathering: users whose enrolment predates an "upcoming" baseline
	// satisfy the condition automatically.
	if spec.Status == StatusFuture && spec.UpcomingTime != nil && enrolledAt != nil && enrolledAt.Before(*spec.UpcomingTime) {
		return true
	}

	plugin, ok := e.registry.Get(spec.Plugin)
	if !ok {
		log.Printf("⚠️ Condition plugin %q not registered (course=%s user=%s), treated as not satisfied", spec.Plugin, courseID, userID)
		return false
	}

	completed, err := plugin.IsUserCompleted(ctx, e.db, spec.Config, courseID, userID)
	if err != nil {
		log.Printf("⚠️ Condition %q evaluation failed (course=%s user=%s): %v", spec.Plugin, courseID, userID, err)
		return false
	}
	return completed
}

// ReferenceTime returns the earliest future reference timestamp any enabled
// condition can supply for the pair, or nil. "Before" delays use it.
func (e *Evaluator) ReferenceTime(ctx context.Context, specs []Spec, courseID, userID uuid.UUID) *time.Time {
	var earliest *time.Time

	for _, spec := range specs {
		if spec.Status == StatusDisabled || spec.Status == "" {
			continue
		}
		plugin, ok := e.registry.Get(spec.Plugin)
		if !ok {
			continue
		}
		provider, ok := plugin.(ReferenceProvider)
		if !ok {
			continue
		}

		ref, err := provider.ReferenceTime(ctx, e.db, spec.Config, courseID, userID)
		if err != nil {
			log.Printf("⚠️ Condition %q reference lookup failed (course=%s user=%s): %v", spec.Plugin, courseID, userID, err)
			continue
		}
		if ref == nil {
			continue
		}
		if earliest == nil || ref.Before(*earliest) {
			earliest = ref
		}
	}

	return earliest
}
