package worker_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/worker"
)

func TestNewJobMetrics(t *testing.T) {
	metrics, err := worker.NewJobMetrics()
	require.NoError(t, err)
	assert.NotNil(t, metrics)
}

func TestJobMetrics_Record(t *testing.T) {
	metrics, err := worker.NewJobMetrics()
	require.NoError(t, err)

	metrics.RecordJob(worker.JobOverdueSweep, 120*time.Millisecond, nil)
	metrics.RecordJob(worker.JobErasureExecute, time.Second, errors.New("handler failed"))
	metrics.RecordItems(worker.JobDeliveryReap, 3)
	metrics.RecordItems(worker.JobDeliveryReap, 0)
}

func TestJobMetrics_NilReceiverIsSafe(t *testing.T) {
	var metrics *worker.JobMetrics
	metrics.RecordJob(worker.JobSLAReport, time.Second, nil)
	metrics.RecordItems(worker.JobSLAReport, 5)
}
