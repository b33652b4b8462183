package worker

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tabular-anonymizer/internal/engine"
	"tabular-anonymizer/internal/models"
)

type fakeTask struct {
	id   string
	fail bool
	ran  *int64
}

func (t *fakeTask) Execute() error {
	atomic.AddInt64(t.ran, 1)
	if t.fail {
		return fmt.Errorf("task %s failed", t.id)
	}
	return nil
}

func (t *fakeTask) GetID() string { return t.id }

func TestPool_ProcessesTasks(t *testing.T) {
	pool := NewPool(2, 16, time.Second)
	pool.Start()

	var ran int64
	for i := 0; i < 5; i++ {
		err := pool.Submit(&fakeTask{id: fmt.Sprintf("t%d", i), ran: &ran})
		require.NoError(t, err)
	}

	for i := 0; i < 5; i++ {
		select {
		case res := <-pool.GetResults():
			assert.True(t, res.Success)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for results")
		}
	}
	pool.Stop()

	assert.Equal(t, int64(5), ran)
	stats := pool.GetStats()
	assert.Equal(t, int64(5), stats.TotalTasks)
	assert.Equal(t, int64(5), stats.CompletedTasks)
	assert.Zero(t, stats.FailedTasks)
	assert.Equal(t, 1.0, stats.SuccessRate)
}

func TestPool_ReportsFailures(t *testing.T) {
	pool := NewPool(1, 4, time.Second)
	pool.Start()

	var ran int64
	require.NoError(t, pool.Submit(&fakeTask{id: "bad", fail: true, ran: &ran}))

	select {
	case res := <-pool.GetResults():
		assert.False(t, res.Success)
		assert.Error(t, res.Error)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for result")
	}
	pool.Stop()

	stats := pool.GetStats()
	assert.Equal(t, int64(1), stats.FailedTasks)
}

func TestPool_QueueFull(t *testing.T) {
	pool := NewPool(1, 1, time.Second)
	// Not started: nothing consumes the queue.
	var ran int64
	require.NoError(t, pool.Submit(&fakeTask{id: "a", ran: &ran}))
	err := pool.Submit(&fakeTask{id: "b", ran: &ran})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "full")
}

func TestBatchProcessor(t *testing.T) {
	eng, err := engine.New(engine.Config{Level: "low", Salt: "test-salt"})
	require.NoError(t, err)

	bp := NewBatchProcessor(2, 16, eng)
	bp.Start()
	defer bp.Stop()

	var datasets []NamedDataset
	for i := 0; i < 3; i++ {
		ds := models.NewDataset()
		ds.AddColumn("name", []string{"홍길동"})
		ds.AddColumn("ssn", []string{"901010-1234567"})
		datasets = append(datasets, NamedDataset{Name: fmt.Sprintf("file%d.csv", i), Dataset: ds})
	}

	results, err := bp.ProcessDatasets(datasets)
	require.NoError(t, err)
	require.Len(t, results, 3)

	for i, res := range results {
		assert.Equal(t, fmt.Sprintf("file%d.csv", i), res.Name)
		require.NoError(t, res.Err)
		require.NotNil(t, res.Result)

		name, _ := res.Result.Run.Anonymized.Column("name")
		assert.Equal(t, []string{"홍00"}, name.Values)
	}

	stats := bp.GetStats()
	assert.Equal(t, int64(3), stats.CompletedTasks)
}

func TestBatchProcessor_SurfacesEngineErrors(t *testing.T) {
	eng, err := engine.New(engine.Config{Level: "low", Salt: "test-salt"})
	require.NoError(t, err)

	bp := NewBatchProcessor(1, 4, eng)
	bp.Start()
	defer bp.Stop()

	results, err := bp.ProcessDatasets([]NamedDataset{
		{Name: "empty.csv", Dataset: models.NewDataset()},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Error(t, results[0].Err)
	assert.Nil(t, results[0].Result)
}
