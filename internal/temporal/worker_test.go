package temporal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultWorkerConfig(t *testing.T) {
	config := DefaultWorkerConfig("citation-enrichment")

	assert.Equal(t, "citation-enrichment", config.TaskQueue)
	assert.Equal(t, 100, config.MaxConcurrentActivityExecutionSize)
	assert.Equal(t, 50, config.MaxConcurrentWorkflowTaskExecutionSize)
	assert.Equal(t, 4, config.MaxConcurrentActivityTaskPollers)
	assert.Equal(t, 2, config.MaxConcurrentWorkflowTaskPollers)
}

func TestNewWorkerManager_EmptyTaskQueue(t *testing.T) {
	_, err := NewWorkerManager(nil, WorkerConfig{})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "task queue is required")
}

func TestNewWorker_EmptyTaskQueue(t *testing.T) {
	_, err := NewWorker(nil, WorkerConfig{})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "task queue is required")
}

func TestWorkerOptionsFromConfig(t *testing.T) {
	t.Run("applies defaults for zero values", func(t *testing.T) {
		options := workerOptionsFromConfig(WorkerConfig{TaskQueue: "q"})

		assert.Equal(t, 100, options.MaxConcurrentActivityExecutionSize)
		assert.Equal(t, 50, options.MaxConcurrentWorkflowTaskExecutionSize)
		assert.Equal(t, 4, options.MaxConcurrentActivityTaskPollers)
		assert.Equal(t, 2, options.MaxConcurrentWorkflowTaskPollers)
	})

	t.Run("preserves configured values", func(t *testing.T) {
		options := workerOptionsFromConfig(WorkerConfig{
			TaskQueue:                              "q",
			MaxConcurrentActivityExecutionSize:     250,
			MaxConcurrentWorkflowTaskExecutionSize: 125,
			MaxConcurrentActivityTaskPollers:       10,
			MaxConcurrentWorkflowTaskPollers:       5,
		})

		assert.Equal(t, 250, options.MaxConcurrentActivityExecutionSize)
		assert.Equal(t, 125, options.MaxConcurrentWorkflowTaskExecutionSize)
		assert.Equal(t, 10, options.MaxConcurrentActivityTaskPollers)
		assert.Equal(t, 5, options.MaxConcurrentWorkflowTaskPollers)
	})

	t.Run("fills only missing values", func(t *testing.T) {
		options := workerOptionsFromConfig(WorkerConfig{
			TaskQueue:                          "q",
			MaxConcurrentActivityExecutionSize: 42,
		})

		assert.Equal(t, 42, options.MaxConcurrentActivityExecutionSize)
		assert.Equal(t, 50, options.MaxConcurrentWorkflowTaskExecutionSize)
	})
}
