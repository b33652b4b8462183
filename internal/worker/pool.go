package worker

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"tabular-anonymizer/internal/engine"
	"tabular-anonymizer/internal/models"
)

// Task represents a unit of work to be processed
type Task interface {
	Execute() error
	GetID() string
}

// TaskResult represents the result of task execution
type TaskResult struct {
	TaskID    string
	Success   bool
	Error     error
	Duration  time.Duration
	Timestamp time.Time
}

// Pool manages a pool of workers for concurrent task processing
type Pool struct {
	ctx        context.Context
	cancel     context.CancelFunc
	workers    int
	taskQueue  chan Task
	resultChan chan TaskResult
	wg         sync.WaitGroup

	// Statistics
	totalTasks     int64
	completedTasks int64
	failedTasks    int64
	avgDuration    time.Duration
	mutex          sync.RWMutex

	// Configuration
	queueSize   int
	taskTimeout time.Duration
}

// NewPool creates a new worker pool
func NewPool(workers, queueSize int, taskTimeout time.Duration) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		ctx:         ctx,
		cancel:      cancel,
		workers:     workers,
		taskQueue:   make(chan Task, queueSize),
		resultChan:  make(chan TaskResult, queueSize),
		queueSize:   queueSize,
		taskTimeout: taskTimeout,
	}
}

// Start starts the worker pool
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// Stop gracefully stops the worker pool
func (p *Pool) Stop() {
	close(p.taskQueue)
	p.cancel()
	p.wg.Wait()
	close(p.resultChan)
}

// Submit submits a task to the worker pool
func (p *Pool) Submit(task Task) error {
	select {
	case p.taskQueue <- task:
		atomic.AddInt64(&p.totalTasks, 1)
		return nil
	case <-p.ctx.Done():
		return fmt.Errorf("worker pool is shutting down")
	default:
		return fmt.Errorf("task queue is full")
	}
}

// GetResults returns a channel for receiving task results
func (p *Pool) GetResults() <-chan TaskResult {
	return p.resultChan
}

// GetStats returns worker pool statistics
func (p *Pool) GetStats() Stats {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	total := atomic.LoadInt64(&p.totalTasks)
	completed := atomic.LoadInt64(&p.completedTasks)
	failed := atomic.LoadInt64(&p.failedTasks)

	var successRate float64
	if total > 0 {
		successRate = float64(completed) / float64(total)
	}

	return Stats{
		Workers:        p.workers,
		QueueSize:      p.queueSize,
		QueueLength:    len(p.taskQueue),
		TotalTasks:     total,
		CompletedTasks: completed,
		FailedTasks:    failed,
		SuccessRate:    successRate,
		AvgDuration:    p.avgDuration,
	}
}

// worker is the worker goroutine that processes tasks
func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case task, ok := <-p.taskQueue:
			if !ok {
				return // Channel closed, worker should exit
			}
			p.processTask(task)

		case <-p.ctx.Done():
			return // Context cancelled, worker should exit
		}
	}
}

// processTask processes a single task
func (p *Pool) processTask(task Task) {
	start := time.Now()

	result := TaskResult{
		TaskID:    task.GetID(),
		Timestamp: start,
	}

	// Create timeout context for task execution
	taskCtx, cancel := context.WithTimeout(p.ctx, p.taskTimeout)
	defer cancel()

	// Execute task with timeout
	done := make(chan error, 1)
	go func() {
		done <- task.Execute()
	}()

	select {
	case err := <-done:
		result.Error = err
		result.Success = err == nil

	case <-taskCtx.Done():
		result.Error = fmt.Errorf("task timeout")
		result.Success = false
	}

	result.Duration = time.Since(start)

	// Update statistics
	if result.Success {
		atomic.AddInt64(&p.completedTasks, 1)
	} else {
		atomic.AddInt64(&p.failedTasks, 1)
	}

	p.updateAvgDuration(result.Duration)

	// Send result
	select {
	case p.resultChan <- result:
	default:
		// Result channel is full, drop the result
	}
}

// updateAvgDuration updates the average task duration
func (p *Pool) updateAvgDuration(duration time.Duration) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	// Simple moving average
	if p.avgDuration == 0 {
		p.avgDuration = duration
	} else {
		p.avgDuration = (p.avgDuration + duration) / 2
	}
}

// Stats represents worker pool statistics
type Stats struct {
	Workers        int           `json:"workers"`
	QueueSize      int           `json:"queue_size"`
	QueueLength    int           `json:"queue_length"`
	TotalTasks     int64         `json:"total_tasks"`
	CompletedTasks int64         `json:"completed_tasks"`
	FailedTasks    int64         `json:"failed_tasks"`
	SuccessRate    float64       `json:"success_rate"`
	AvgDuration    time.Duration `json:"avg_duration"`
}

// AnonymizationEngine interface for dependency injection
type AnonymizationEngine interface {
	Process(ds *models.Dataset, progress engine.ProgressFunc) (*engine.Result, error)
}

// AnonymizationTask runs the full pipeline on one dataset
type AnonymizationTask struct {
	ID       string
	Name     string
	Dataset  *models.Dataset
	Engine   AnonymizationEngine
	Progress engine.ProgressFunc
	Result   chan *engine.Result
}

// NewAnonymizationTask creates a new anonymization task
func NewAnonymizationTask(id, name string, ds *models.Dataset, eng AnonymizationEngine, progress engine.ProgressFunc) *AnonymizationTask {
	return &AnonymizationTask{
		ID:       id,
		Name:     name,
		Dataset:  ds,
		Engine:   eng,
		Progress: progress,
		Result:   make(chan *engine.Result, 1),
	}
}

// Execute executes the anonymization task
func (at *AnonymizationTask) Execute() error {
	result, err := at.Engine.Process(at.Dataset, at.Progress)
	if err != nil {
		return fmt.Errorf("failed to anonymize %s: %w", at.Name, err)
	}

	select {
	case at.Result <- result:
	default:
		return fmt.Errorf("failed to send result")
	}

	return nil
}

// GetID returns the task ID
func (at *AnonymizationTask) GetID() string {
	return at.ID
}

// GetResult returns the pipeline result, or nil when none was produced
func (at *AnonymizationTask) GetResult() *engine.Result {
	select {
	case result := <-at.Result:
		return result
	default:
		return nil
	}
}

// BatchProcessor anonymizes many datasets using a worker pool. Each dataset
// is an independent file; they share one engine so pseudonyms stay
// consistent across the batch.
type BatchProcessor struct {
	pool   *Pool
	engine AnonymizationEngine
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(workers, queueSize int, eng AnonymizationEngine) *BatchProcessor {
	return &BatchProcessor{
		pool:   NewPool(workers, queueSize, 5*time.Minute),
		engine: eng,
	}
}

// Start starts the batch processor
func (bp *BatchProcessor) Start() {
	bp.pool.Start()
}

// Stop stops the batch processor
func (bp *BatchProcessor) Stop() {
	bp.pool.Stop()
}

// NamedDataset pairs a dataset with the name it was loaded under
type NamedDataset struct {
	Name    string
	Dataset *models.Dataset
}

// BatchResult is the outcome for one dataset of a batch
type BatchResult struct {
	Name   string
	Result *engine.Result
	Err    error
}

// ProcessDatasets anonymizes the datasets concurrently and returns one
// result per input, in input order.
func (bp *BatchProcessor) ProcessDatasets(datasets []NamedDataset) ([]BatchResult, error) {
	if len(datasets) == 0 {
		return nil, nil
	}

	tasks := make([]*AnonymizationTask, len(datasets))
	for i, ds := range datasets {
		taskID := fmt.Sprintf("anonymize_%d_%d", time.Now().Unix(), i)
		task := NewAnonymizationTask(taskID, ds.Name, ds.Dataset, bp.engine, nil)
		tasks[i] = task

		if err := bp.pool.Submit(task); err != nil {
			return nil, fmt.Errorf("failed to submit task %s: %w", taskID, err)
		}
	}

	// Collect per-task completion from the result channel.
	outcomes := make(map[string]TaskResult, len(tasks))
	timeout := time.After(10 * time.Minute)
	for len(outcomes) < len(tasks) {
		select {
		case res, ok := <-bp.pool.GetResults():
			if !ok {
				return nil, fmt.Errorf("worker pool closed before batch finished")
			}
			outcomes[res.TaskID] = res
		case <-timeout:
			return nil, fmt.Errorf("timeout waiting for batch results")
		}
	}

	results := make([]BatchResult, len(tasks))
	for i, task := range tasks {
		results[i] = BatchResult{
			Name:   datasets[i].Name,
			Result: task.GetResult(),
			Err:    outcomes[task.GetID()].Error,
		}
	}
	return results, nil
}

// GetStats returns batch processor statistics
func (bp *BatchProcessor) GetStats() Stats {
	return bp.pool.GetStats()
}
