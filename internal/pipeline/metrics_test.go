package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/bankocr/internal/fields"
	"github.com/MeKo-Tech/bankocr/internal/testutil"
	"github.com/MeKo-Tech/bankocr/internal/window"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestMetricsPartialRun(t *testing.T) {
	partial := runsTotal.WithLabelValues("partial")
	captureFailed := fieldResultsTotal.WithLabelValues(fields.BranchName.String(), string(StatusFailed), string(KindCapture))
	bankOK := fieldResultsTotal.WithLabelValues(fields.BankCode.String(), string(StatusOK), "")
	beforePartial := counterValue(t, partial)
	beforeFailed := counterValue(t, captureFailed)
	beforeOK := counterValue(t, bankOK)

	win := &faultyWindow{
		ImageWindow: newTestWindow(),
		failGrab:    testutil.DefaultLayout()[fields.BranchName].Image(),
	}
	runner := NewRunnerWithEngine(fixedLocator(win), testutil.NewScriptedEngine("0005", "みずほ銀行", "100"), testOptions())
	_, err := runner.Run(context.Background(), testRequest())
	require.NoError(t, err)

	assert.InDelta(t, beforePartial+1, counterValue(t, partial), 0)
	assert.InDelta(t, beforeFailed+1, counterValue(t, captureFailed), 0)
	assert.InDelta(t, beforeOK+1, counterValue(t, bankOK), 0)
}

func TestMetricsWindowNotFound(t *testing.T) {
	notFound := runsTotal.WithLabelValues("window_not_found")
	before := counterValue(t, notFound)

	_, err := NewRunnerWithEngine(window.NewImageLocator(), testutil.NewScriptedEngine(), testOptions()).
		Run(context.Background(), testRequest())
	require.Error(t, err)
	assert.InDelta(t, before+1, counterValue(t, notFound), 0)
}

func TestRunStatus(t *testing.T) {
	ok := newResult("w", time.Now())
	for _, id := range fields.All {
		ok.set(FieldResult{Field: id, Status: StatusOK, Corrected: "x"})
	}
	assert.Equal(t, "ok", runStatus(ok))

	failed := newResult("w", time.Now())
	for _, id := range fields.All {
		failed.set(FieldResult{Field: id, Status: StatusFailed, ErrorKind: KindRecognition})
	}
	assert.Equal(t, "failed", runStatus(failed))
}
