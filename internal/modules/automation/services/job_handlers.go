package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/coursepulse/coursepulse-be/internal/core/jobs"
)

// EvaluatePairHandler runs queued pair evaluations
type EvaluatePairHandler struct {
	trigger *TriggerService
}

// NewEvaluatePairHandler creates a handler for evaluate_pair jobs
func NewEvaluatePairHandler(trigger *TriggerService) *EvaluatePairHandler {
	return &EvaluatePairHandler{trigger: trigger}
}

func (h *EvaluatePairHandler) GetType() string {
	return jobs.TypeEvaluatePair
}

func (h *EvaluatePairHandler) Handle(ctx context.Context, job *jobs.Job) error {
	var payload jobs.EvaluatePairPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("invalid evaluate_pair payload: %w", err)
	}
	return h.trigger.EvaluatePair(ctx, payload.InstanceID, payload.UserID)
}

// SweepInstanceHandler runs queued instance sweeps
type SweepInstanceHandler struct {
	sweep *SweepService
}

// NewSweepInstanceHandler creates a handler for sweep_instance jobs
func NewSweepInstanceHandler(sweep *SweepService) *SweepInstanceHandler {
	return &SweepInstanceHandler{sweep: sweep}
}

func (h *SweepInstanceHandler) GetType() string {
	return jobs.TypeSweepInstance
}

func (h *SweepInstanceHandler) Handle(ctx context.Context, job *jobs.Job) error {
	var payload jobs.SweepInstancePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("invalid sweep_instance payload: %w", err)
	}
	return h.sweep.SweepInstance(ctx, payload.InstanceID)
}

// DeliverScheduleHandler runs queued deliveries
type DeliverScheduleHandler struct {
	delivery *DeliveryService
}

// NewDeliverScheduleHandler creates a handler for deliver_schedule jobs
func NewDeliverScheduleHandler(delivery *DeliveryService) *DeliverScheduleHandler {
	return &DeliverScheduleHandler{delivery: delivery}
}

func (h *DeliverScheduleHandler) GetType() string {
	return jobs.TypeDeliverSchedule
}

func (h *DeliverScheduleHandler) Handle(ctx context.Context, job *jobs.Job) error {
	var payload jobs.DeliverSchedulePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("invalid deliver_schedule payload: %w", err)
	}
	_, err := h.delivery.Deliver(ctx, payload.ScheduleID)
	return err
}
