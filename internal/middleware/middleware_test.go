package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/aura-seminar/certificates/internal/metrics"
)

func newRouter(logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Metrics(), Logger(logger))
	r.GET("/certificate/:code", func(c *gin.Context) { c.Status(http.StatusFound) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })
	return r
}

func serve(r http.Handler, path string) {
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
}

func TestLogger_RecordsRoute(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	serve(newRouter(zap.New(core)), "/certificate/abc")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.InfoLevel, entry.Level)
	fields := entry.ContextMap()
	assert.Equal(t, "/certificate/:code", fields["route"])
	assert.Equal(t, "/certificate/abc", fields["path"])
	assert.EqualValues(t, http.StatusFound, fields["status"])
}

func TestLogger_ServerErrorsAtErrorLevel(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	serve(newRouter(zap.New(core)), "/boom")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, zapcore.ErrorLevel, logs.All()[0].Level)
}

func TestMetrics_GroupsByRoute(t *testing.T) {
	r := newRouter(zap.NewNop())
	counter := metrics.HTTPRequests.WithLabelValues(http.MethodGet, "/certificate/:code", "302")
	before := testutil.ToFloat64(counter)

	serve(r, "/certificate/a")
	serve(r, "/certificate/b")
	serve(r, "/nowhere")

	assert.Equal(t, before+2, testutil.ToFloat64(counter))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues(http.MethodGet, "unmatched", "404")))
}
