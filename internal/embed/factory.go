package embed

import (
	"github.com/docrag/engine/internal/config"
	"github.com/docrag/engine/internal/ragerr"
)

// New constructs the configured Embedder backend wrapped in an LRU query
// cache. The local backend additionally serializes first-load of its
// shared library across processes using a FileLock rooted at libDir.
func New(cfg config.EmbeddingsConfig, libDir string) (Embedder, error) {
	var (
		inner Embedder
		err   error
	)

	switch cfg.Backend {
	case config.EmbeddingBackendRemote:
		inner, err = NewRemoteEmbedder(RemoteConfig{
			BaseURL: cfg.RemoteBaseURL,
			APIKey:  cfg.RemoteAPIKey,
			Model:   cfg.RemoteModel,
			Dims:    cfg.Dimensions,
		})
	case config.EmbeddingBackendLocal:
		inner, err = newLocalEmbedderLocked(cfg.LocalLibraryPath, libDir)
	case config.EmbeddingBackendStatic, "":
		inner = NewStaticEmbedder(cfg.Dimensions)
	default:
		return nil, ragerr.New(ragerr.ErrCodeConfigInvalid, "unknown embedding backend", nil).
			WithDetail("backend", string(cfg.Backend))
	}
	if err != nil {
		return nil, err
	}

	return NewCachedEmbedder(inner, cfg.CacheSize), nil
}

// newLocalEmbedderLocked acquires a cross-process lock over libDir before
// dlopening the local backend, so concurrent docrag processes don't race
// on a first-time model/library fetch performed out of band.
func newLocalEmbedderLocked(libraryPath, libDir string) (*LocalEmbedder, error) {
	lock := NewFileLock(libDir)
	if err := lock.Lock(); err != nil {
		return nil, ragerr.Wrap(ragerr.ErrCodeModelDownload, err)
	}
	defer lock.Unlock()

	return NewLocalEmbedder(libraryPath)
}
