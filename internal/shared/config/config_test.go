package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigWorkerDefaults(t *testing.T) {
	cfg := LoadConfig()

	assert.Equal(t, 100, cfg.SweepPageSize)
	assert.Equal(t, 50, cfg.DeliveryBatchSize)
	assert.Equal(t, 5, cfg.WorkerConcurrency)
	assert.Equal(t, 15*time.Minute, cfg.SweepInterval)
}

func TestLoadConfigWorkerOverrides(t *testing.T) {
	t.Setenv("SWEEP_PAGE_SIZE", "25")
	t.Setenv("DELIVERY_BATCH_SIZE", "10")
	t.Setenv("SWEEP_INTERVAL_MINUTES", "5")

	cfg := LoadConfig()
	assert.Equal(t, 25, cfg.SweepPageSize)
	assert.Equal(t, 10, cfg.DeliveryBatchSize)
	assert.Equal(t, 5*time.Minute, cfg.SweepInterval)
}

func TestEnvIntRejectsGarbage(t *testing.T) {
	t.Setenv("DELIVERY_BATCH_SIZE", "many")
	cfg := LoadConfig()
	assert.Equal(t, 50, cfg.DeliveryBatchSize, "unparseable values fall back to the default")
}
