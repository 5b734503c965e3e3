package embed

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/docrag/engine/internal/ragerr"
)

// LocalEmbedder loads a bundled shared library via dlopen and calls its
// exported embedding entry points directly, avoiding a subprocess or
// network round trip. The library must export:
//
//	int docrag_embed_dims(void);
//	int docrag_embed(const char* text, float* out, int out_len);
type LocalEmbedder struct {
	mu      sync.Mutex
	handle  uintptr
	dims    int
	model   string
	embed   func(text string, out []float32, outLen int32) int32
	closeFn func()
}

// NewLocalEmbedder dlopens libraryPath and resolves its embedding symbols.
func NewLocalEmbedder(libraryPath string) (*LocalEmbedder, error) {
	if libraryPath == "" {
		return nil, ragerr.New(ragerr.ErrCodeConfigInvalid, "local embedding backend requires a library path", nil)
	}

	handle, err := purego.Dlopen(libraryPath, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, ragerr.New(ragerr.ErrCodeModelDownload, "failed to load local embedding library", err).
			WithDetail("path", libraryPath)
	}

	var dimsFn func() int32
	purego.RegisterLibFunc(&dimsFn, handle, "docrag_embed_dims")
	dims := int(dimsFn())
	if dims <= 0 {
		dims = StaticDimensions
	}

	var embedFn func(uintptr, uintptr, int32) int32
	purego.RegisterLibFunc(&embedFn, handle, "docrag_embed")

	le := &LocalEmbedder{
		handle: handle,
		dims:   dims,
		model:  "local-shared-lib",
	}
	le.embed = func(text string, out []float32, outLen int32) int32 {
		cText := append([]byte(text), 0)
		return embedFn(
			uintptr(unsafe.Pointer(&cText[0])),
			uintptr(unsafe.Pointer(&out[0])),
			outLen,
		)
	}
	le.closeFn = func() { _ = purego.Dlclose(handle) }

	runtime.SetFinalizer(le, func(e *LocalEmbedder) { _ = e.Close() })

	return le, nil
}

// Embed calls into the loaded library for a single text.
func (l *LocalEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]float32, l.dims)
	if rc := l.embed(text, out, int32(l.dims)); rc != 0 {
		return nil, ragerr.New(ragerr.ErrCodeEmbeddingFailed, fmt.Sprintf("local embedder returned code %d", rc), nil)
	}
	return normalizeVector(out), nil
}

// EmbedBatch calls Embed for each text; the local backend has no native
// batch entry point.
func (l *LocalEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := l.Embed(ctx, text)
		if err != nil {
			return nil, &BatchError{Offset: i, Err: err}
		}
		out[i] = vec
	}
	return out, nil
}

func (l *LocalEmbedder) Dimensions() int   { return l.dims }
func (l *LocalEmbedder) ModelName() string { return l.model }

func (l *LocalEmbedder) Available(context.Context) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.handle != 0
}

// Close unloads the shared library. Safe to call multiple times.
func (l *LocalEmbedder) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.handle == 0 {
		return nil
	}
	l.closeFn()
	l.handle = 0
	return nil
}
