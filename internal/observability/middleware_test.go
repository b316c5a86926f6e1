package observability

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/danmuck/agentctl/internal/testutil/testlog"
)

func adminTestRouter(buf *bytes.Buffer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := zerolog.New(buf)
	r := gin.New()
	r.Use(AdminRequests("agentd", logger))
	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/keys", func(c *gin.Context) { c.String(http.StatusOK, "[]") })
	r.GET("/boom", func(c *gin.Context) { c.String(http.StatusInternalServerError, "boom") })
	return r
}

func serveOnce(t *testing.T, r *gin.Engine, path string) *httptest.ResponseRecorder {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, path, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAdminRequestsLogsAtRouteLevel(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	var buf bytes.Buffer
	r := adminTestRouter(&buf)

	serveOnce(t, r, "/keys")
	line := buf.String()
	if !strings.Contains(line, `"level":"info"`) {
		t.Fatalf("keys request not logged at info: %s", line)
	}
	if !strings.Contains(line, `"path":"/keys"`) {
		t.Fatalf("path missing from log: %s", line)
	}

	buf.Reset()
	serveOnce(t, r, "/healthz")
	if line := buf.String(); !strings.Contains(line, `"level":"debug"`) {
		t.Fatalf("scrape path not demoted to debug: %s", line)
	}

	buf.Reset()
	serveOnce(t, r, "/boom")
	if line := buf.String(); !strings.Contains(line, `"level":"error"`) {
		t.Fatalf("5xx not logged at error: %s", line)
	}

	buf.Reset()
	serveOnce(t, r, "/missing")
	if line := buf.String(); !strings.Contains(line, `"level":"warn"`) {
		t.Fatalf("404 not logged at warn: %s", line)
	}
}
