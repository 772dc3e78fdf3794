package certificates

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(h *harness) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(h.records, h.artifacts, 0, nil).RegisterRoutes(r)
	return r
}

func issued(id int64, code string) *harness {
	reg := attendee(id, true)
	reg.CertificateCode = code
	return newHarness(reg)
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestDelivery_UnknownCode(t *testing.T) {
	h := issued(1, "known")
	w := get(newTestRouter(h), "/certificate/DOES-NOT-EXIST")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 0, h.store.calls)
}

func TestDelivery_DocumentGeneratesBothArtifacts(t *testing.T) {
	h := issued(1, "abc")
	w := get(newTestRouter(h), "/certificate/abc")

	require.Equal(t, http.StatusFound, w.Code)
	loc := w.Header().Get("Location")
	assert.True(t, strings.HasPrefix(loc, "https://store.test/certificates/2024/distributed-systems/abc.pdf"))
	assert.Contains(t, loc, "ttl=5m0s")
	assert.True(t, h.store.has("certificates/2024/distributed-systems/abc.jpg"))
	assert.True(t, h.store.has("certificates/2024/distributed-systems/abc.pdf"))
	assert.Empty(t, h.sender.sent)
}

func TestDelivery_ImageOnly(t *testing.T) {
	h := issued(1, "abc")
	w := get(newTestRouter(h), "/certificate/abc/jpg")

	require.Equal(t, http.StatusFound, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Location"), "https://store.test/certificates/2024/distributed-systems/abc.jpg"))
	assert.False(t, h.store.has("certificates/2024/distributed-systems/abc.pdf"))
}

func TestDelivery_ExistingArtifactsAreOnlySigned(t *testing.T) {
	h := issued(1, "abc")
	r := newTestRouter(h)
	require.Equal(t, http.StatusFound, get(r, "/certificate/abc").Code)
	puts := h.store.putCount()

	require.Equal(t, http.StatusFound, get(r, "/certificate/abc").Code)
	assert.Equal(t, puts, h.store.putCount())
	assert.Equal(t, 1, h.renderer.documents)
}

func TestDelivery_StorageFailure(t *testing.T) {
	h := issued(1, "abc")
	h.store.putErr = errors.New("s3 unavailable")
	w := get(newTestRouter(h), "/certificate/abc")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestDelivery_OrphanedCertificate(t *testing.T) {
	reg := attendee(1, true)
	reg.CertificateCode = "abc"
	reg.Event = nil
	h := newHarness(reg)
	w := get(newTestRouter(h), "/certificate/abc")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 0, h.store.calls)
}
