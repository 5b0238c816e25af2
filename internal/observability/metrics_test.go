package observability

import (
	"testing"
	"time"

	"github.com/danmuck/mcp-awx/internal/testutil/testlog"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)

	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("mcp-awx", "GET", "/health", 200, 12*time.Millisecond)
	RecordControllerRequest("ping", "GET", 0, 3*time.Millisecond)
	RecordToolCall("health", "ok", 40*time.Millisecond)
	RecordJobResult("", true)
}

func TestRecordControllerRequestLabelsStatus(t *testing.T) {
	testlog.Start(t)

	before := testutil.ToFloat64(controllerRequests.WithLabelValues("job_status", "GET", "503"))
	RecordControllerRequest("job_status", "GET", 503, time.Millisecond)
	after := testutil.ToFloat64(controllerRequests.WithLabelValues("job_status", "GET", "503"))
	if after-before != 1 {
		t.Fatalf("expected one recorded request, got delta %v", after-before)
	}

	before = testutil.ToFloat64(jobResults.WithLabelValues("successful", "false"))
	RecordJobResult("successful", false)
	after = testutil.ToFloat64(jobResults.WithLabelValues("successful", "false"))
	if after-before != 1 {
		t.Fatalf("expected one job result, got delta %v", after-before)
	}
}
