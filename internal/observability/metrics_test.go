package observability

import (
	"testing"
	"time"

	"github.com/danmuck/agentctl/internal/testutil/testlog"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("agentd", "GET", "/healthz", 200, 12*time.Millisecond)
	RecordAgentOp("sign_request", true, 3*time.Millisecond)
	RecordAgentOp("sign_request", false, time.Millisecond)
}
