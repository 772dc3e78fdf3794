package certificates

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/aura-seminar/certificates/internal/metrics"
	"github.com/aura-seminar/certificates/internal/models"
	"github.com/aura-seminar/certificates/pkg/storage"
)

// Artifacts materializes the image and document for a registration that already has a code.
// Every write goes through the existence cache so later checks skip the store.
type Artifacts struct {
	store    ObjectStore
	exists   *ExistenceCache
	renderer Renderer
	logger   *zap.Logger
}

// NewArtifacts wires the object store, existence cache and renderer together.
func NewArtifacts(store ObjectStore, exists *ExistenceCache, renderer Renderer, logger *zap.Logger) *Artifacts {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Artifacts{store: store, exists: exists, renderer: renderer, logger: logger}
}

// EnsureImage renders and stores the image if it is absent. It returns the fresh bytes when it
// rendered, nil when the image was already there.
func (a *Artifacts) EnsureImage(ctx context.Context, reg *models.Registration) ([]byte, error) {
	key, err := ArtifactKey(reg, KindImage)
	if err != nil {
		return nil, err
	}
	ok, err := a.exists.Check(ctx, KindImage, reg.CertificateCode, key)
	if err != nil {
		return nil, fmt.Errorf("check image %s: %w", key, err)
	}
	if ok {
		return nil, nil
	}
	return a.renderImage(ctx, reg, key)
}

// EnsureDocument renders and stores the document if it is absent, generating the image first
// when that is missing too. It reports whether a document was written.
func (a *Artifacts) EnsureDocument(ctx context.Context, reg *models.Registration) (bool, error) {
	key, err := ArtifactKey(reg, KindDocument)
	if err != nil {
		return false, err
	}
	ok, err := a.exists.Check(ctx, KindDocument, reg.CertificateCode, key)
	if err != nil {
		return false, fmt.Errorf("check document %s: %w", key, err)
	}
	if ok {
		return false, nil
	}
	if err := a.renderDocument(ctx, reg, key); err != nil {
		return false, err
	}
	return true, nil
}

// ReadDocument returns the stored document bytes. A document the cache believed present but the
// store no longer has is regenerated once.
func (a *Artifacts) ReadDocument(ctx context.Context, reg *models.Registration) ([]byte, error) {
	key, err := ArtifactKey(reg, KindDocument)
	if err != nil {
		return nil, err
	}
	data, err := a.store.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		a.logger.Warn("document missing from store, regenerating", zap.String("key", key))
		a.exists.Forget(ctx, KindDocument, reg.CertificateCode)
		if err := a.renderDocument(ctx, reg, key); err != nil {
			return nil, err
		}
		data, err = a.store.Get(ctx, key)
	}
	if err != nil {
		return nil, fmt.Errorf("read document %s: %w", key, err)
	}
	return data, nil
}

// Verify checks the store directly for one artifact, refreshing the cached answer.
func (a *Artifacts) Verify(ctx context.Context, reg *models.Registration, kind Kind) (bool, error) {
	key, err := ArtifactKey(reg, kind)
	if err != nil {
		return false, err
	}
	return a.exists.Verify(ctx, kind, reg.CertificateCode, key)
}

// SignedURL returns a time-limited read URL for one artifact.
func (a *Artifacts) SignedURL(ctx context.Context, reg *models.Registration, kind Kind, ttl time.Duration) (string, error) {
	key, err := ArtifactKey(reg, kind)
	if err != nil {
		return "", err
	}
	return a.store.SignedURL(ctx, key, ttl)
}

// Purge deletes both artifacts and their cache entries; the next request regenerates them.
func (a *Artifacts) Purge(ctx context.Context, reg *models.Registration) error {
	for _, kind := range []Kind{KindDocument, KindImage} {
		key, err := ArtifactKey(reg, kind)
		if err != nil {
			return err
		}
		if err := a.store.Delete(ctx, key); err != nil {
			return err
		}
		a.exists.Forget(ctx, kind, reg.CertificateCode)
		a.logger.Info("artifact purged", zap.String("key", key))
	}
	return nil
}

func (a *Artifacts) renderImage(ctx context.Context, reg *models.Registration, key string) ([]byte, error) {
	start := time.Now()
	img, err := a.renderer.RenderImage(reg)
	if err != nil {
		return nil, fmt.Errorf("render image for %s: %w", reg.CertificateCode, err)
	}
	metrics.ArtifactRenderDuration.WithLabelValues(string(KindImage)).Observe(time.Since(start).Seconds())
	if err := a.store.Put(ctx, key, img, storage.Private); err != nil {
		return nil, err
	}
	metrics.ArtifactRenders.WithLabelValues(string(KindImage)).Inc()
	a.exists.MarkExists(ctx, KindImage, reg.CertificateCode)
	a.logger.Info("certificate image stored", zap.String("key", key))
	return img, nil
}

func (a *Artifacts) renderDocument(ctx context.Context, reg *models.Registration, key string) error {
	img, err := a.imageBytes(ctx, reg)
	if err != nil {
		return err
	}
	start := time.Now()
	doc, err := a.renderer.RenderDocument(img)
	if err != nil {
		return fmt.Errorf("render document for %s: %w", reg.CertificateCode, err)
	}
	metrics.ArtifactRenderDuration.WithLabelValues(string(KindDocument)).Observe(time.Since(start).Seconds())
	if err := a.store.Put(ctx, key, doc, storage.Private); err != nil {
		return err
	}
	metrics.ArtifactRenders.WithLabelValues(string(KindDocument)).Inc()
	a.exists.MarkExists(ctx, KindDocument, reg.CertificateCode)
	a.logger.Info("certificate document stored", zap.String("key", key))
	return nil
}

// imageBytes returns valid image bytes for the document, rendering the image when it is absent
// or when the cache claims an image the store no longer holds.
func (a *Artifacts) imageBytes(ctx context.Context, reg *models.Registration) ([]byte, error) {
	fresh, err := a.EnsureImage(ctx, reg)
	if err != nil {
		return nil, err
	}
	if fresh != nil {
		return fresh, nil
	}
	key, err := ArtifactKey(reg, KindImage)
	if err != nil {
		return nil, err
	}
	data, err := a.store.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		a.logger.Warn("image missing from store, regenerating", zap.String("key", key))
		a.exists.Forget(ctx, KindImage, reg.CertificateCode)
		return a.renderImage(ctx, reg, key)
	}
	if err != nil {
		return nil, fmt.Errorf("read image %s: %w", key, err)
	}
	return data, nil
}
