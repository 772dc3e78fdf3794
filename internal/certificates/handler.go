package certificates

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-seminar/certificates/internal/models"
	"github.com/aura-seminar/certificates/pkg/response"
)

// DefaultSignedURLTTL is how long a delivery redirect stays valid.
const DefaultSignedURLTTL = 5 * time.Minute

// CodeLookup resolves a certificate code to its registration.
type CodeLookup interface {
	GetByCertificateCode(ctx context.Context, code string) (*models.Registration, error)
}

// Handler serves certificate downloads. Artifacts are generated inline when missing,
// then the client is redirected to a signed store URL.
type Handler struct {
	records   CodeLookup
	artifacts *Artifacts
	ttl       time.Duration
	logger    *zap.Logger
}

// NewHandler creates the delivery handler.
func NewHandler(records CodeLookup, artifacts *Artifacts, ttl time.Duration, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = DefaultSignedURLTTL
	}
	return &Handler{records: records, artifacts: artifacts, ttl: ttl, logger: logger}
}

// RegisterRoutes mounts GET /certificate/:code and GET /certificate/:code/jpg.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/certificate/:code", h.Document)
	r.GET("/certificate/:code/jpg", h.Image)
}

// Document redirects to the PDF. GET /certificate/:code
func (h *Handler) Document(c *gin.Context) {
	h.serve(c, KindDocument)
}

// Image redirects to the JPEG. GET /certificate/:code/jpg
func (h *Handler) Image(c *gin.Context) {
	h.serve(c, KindImage)
}

func (h *Handler) serve(c *gin.Context, kind Kind) {
	ctx := c.Request.Context()
	code := c.Param("code")
	reg, err := h.records.GetByCertificateCode(ctx, code)
	if errors.Is(err, models.ErrRegistrationNotFound) {
		response.NotFound(c, "certificate not found")
		return
	}
	if err != nil {
		h.logger.Error("lookup certificate", zap.String("certificate_code", code), zap.Error(err))
		response.Internal(c, "failed to load certificate")
		return
	}
	if !reg.HasAssociations() {
		response.NotFound(c, "certificate not found")
		return
	}

	if kind == KindDocument {
		_, err = h.artifacts.EnsureDocument(ctx, reg)
	} else {
		_, err = h.artifacts.EnsureImage(ctx, reg)
	}
	if err != nil {
		h.logger.Error("generate certificate", zap.String("certificate_code", code), zap.String("kind", string(kind)), zap.Error(err))
		response.Internal(c, "failed to generate certificate")
		return
	}

	url, err := h.artifacts.SignedURL(ctx, reg, kind, h.ttl)
	if err != nil {
		h.logger.Error("sign certificate url", zap.String("certificate_code", code), zap.Error(err))
		response.Internal(c, "failed to sign certificate url")
		return
	}
	c.Redirect(http.StatusFound, url)
}
