package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hupe1980/gridstream/blobstore"
	s3store "github.com/hupe1980/gridstream/blobstore/s3"
	"github.com/hupe1980/gridstream/resource"
)

// Registry holds named in-memory arrays addressable as mem:// URIs.
type Registry struct {
	mu     sync.RWMutex
	arrays map[string]*MemArray
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{arrays: make(map[string]*MemArray)}
}

// Register makes the array addressable as mem://name.
func (r *Registry) Register(name string, arr *MemArray) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.arrays[name] = arr
}

// Get looks up a registered array.
func (r *Registry) Get(name string) (*MemArray, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	arr, ok := r.arrays[name]
	return arr, ok
}

// DefaultEngine resolves array URIs across backends:
//
//	mem://name              registered in-memory array
//	file:///path or /path   snapshot on the local file system
//	s3://bucket/path        snapshot on S3 (default AWS config chain)
//	<prefix><name>          snapshot behind an explicitly mounted blob store
type DefaultEngine struct {
	registry *Registry
	ctrl     *resource.Controller

	mu     sync.Mutex
	mounts map[string]blobstore.BlobStore
	s3     map[string]blobstore.BlobStore // bucket -> store
}

var _ Engine = (*DefaultEngine)(nil)

// EngineOption configures a DefaultEngine.
type EngineOption func(*DefaultEngine)

// WithRegistry sets the registry backing mem:// URIs.
func WithRegistry(r *Registry) EngineOption {
	return func(e *DefaultEngine) { e.registry = r }
}

// WithResourceController applies IO limits to snapshot loads.
func WithResourceController(ctrl *resource.Controller) EngineOption {
	return func(e *DefaultEngine) { e.ctrl = ctrl }
}

// NewEngine creates a DefaultEngine.
func NewEngine(opts ...EngineOption) *DefaultEngine {
	e := &DefaultEngine{
		registry: NewRegistry(),
		mounts:   make(map[string]blobstore.BlobStore),
		s3:       make(map[string]blobstore.BlobStore),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the engine's mem:// registry.
func (e *DefaultEngine) Registry() *Registry { return e.registry }

// Mount routes URIs beginning with prefix to the given store; the remainder
// of the URI is the array name within the store. Used for MinIO and other
// pre-configured backends.
func (e *DefaultEngine) Mount(prefix string, store blobstore.BlobStore) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mounts[prefix] = store
}

// Open implements Engine.
func (e *DefaultEngine) Open(ctx context.Context, uri string) (Array, error) {
	if store, name, ok := e.mounted(uri); ok {
		arr, err := LoadArray(ctx, store, name, e.ctrl)
		if err != nil {
			return nil, err
		}
		return &arrayHandle{uri: uri, arr: arr}, nil
	}

	switch {
	case strings.HasPrefix(uri, "mem://"):
		name := strings.TrimPrefix(uri, "mem://")
		arr, ok := e.registry.Get(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, uri)
		}
		return &arrayHandle{uri: uri, arr: arr}, nil

	case strings.HasPrefix(uri, "s3://"):
		rest := strings.TrimPrefix(uri, "s3://")
		bucket, key, ok := strings.Cut(rest, "/")
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: malformed s3 uri %q", ErrNotFound, uri)
		}
		store, err := e.s3Store(ctx, bucket)
		if err != nil {
			return nil, err
		}
		arr, err := LoadArray(ctx, store, key, e.ctrl)
		if err != nil {
			return nil, err
		}
		return &arrayHandle{uri: uri, arr: arr}, nil

	default:
		path := strings.TrimPrefix(uri, "file://")
		if strings.Contains(path, "://") {
			return nil, fmt.Errorf("%w: unsupported uri scheme in %q", ErrNotFound, uri)
		}
		dir, base := filepath.Split(filepath.Clean(path))
		arr, err := LoadArray(ctx, blobstore.NewLocalStore(dir), base, e.ctrl)
		if err != nil {
			return nil, err
		}
		return &arrayHandle{uri: uri, arr: arr}, nil
	}
}

func (e *DefaultEngine) mounted(uri string) (blobstore.BlobStore, string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for prefix, store := range e.mounts {
		if strings.HasPrefix(uri, prefix) {
			return store, strings.TrimPrefix(uri, prefix), true
		}
	}
	return nil, "", false
}

func (e *DefaultEngine) s3Store(ctx context.Context, bucket string) (blobstore.BlobStore, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if store, ok := e.s3[bucket]; ok {
		return store, nil
	}
	store, err := s3store.NewStoreFromDefaultConfig(ctx, bucket, "")
	if err != nil {
		return nil, err
	}
	e.s3[bucket] = store
	return store, nil
}
