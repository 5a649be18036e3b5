package reports

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"campuscore/internal/infra/blob/s3"
)

// Artifact describes a stored report file.
type Artifact struct {
	Key         string            `json:"key"`
	Filename    string            `json:"filename"`
	ContentType string            `json:"content_type"`
	SizeBytes   int64             `json:"size_bytes"`
	URL         string            `json:"url,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// ObjectStore persists report artifacts.
type ObjectStore interface {
	// Put stores a new immutable object and fails if key exists.
	Put(ctx context.Context, key string, payload []byte, contentType string, metadata map[string]string) (Artifact, error)
	// Get returns the artifact metadata and full payload.
	Get(ctx context.Context, key string) (Artifact, []byte, error)
	// Delete removes the object and reports whether it existed.
	Delete(ctx context.Context, key string) (bool, error)
	// List returns artifacts whose key starts with prefix, sorted by key.
	List(ctx context.Context, prefix string) ([]Artifact, error)
}

// MemoryObjectStore keeps artifacts in process memory.
type MemoryObjectStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
	now     func() time.Time
}

type memoryObject struct {
	artifact Artifact
	payload  []byte
}

// NewMemoryObjectStore returns an empty in-memory store.
func NewMemoryObjectStore() *MemoryObjectStore {
	return &MemoryObjectStore{
		objects: make(map[string]memoryObject),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryObjectStore) Put(_ context.Context, key string, payload []byte, contentType string, metadata map[string]string) (Artifact, error) {
	if strings.TrimSpace(key) == "" {
		return Artifact{}, fmt.Errorf("artifact key required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.objects[key]; exists {
		return Artifact{}, fmt.Errorf("artifact %s already exists", key)
	}
	artifact := Artifact{
		Key:         key,
		Filename:    filenameOf(key),
		ContentType: contentType,
		SizeBytes:   int64(len(payload)),
		URL:         "memory://reports/" + key,
		Metadata:    cloneMetadata(metadata),
		CreatedAt:   m.now(),
	}
	m.objects[key] = memoryObject{artifact: artifact, payload: append([]byte(nil), payload...)}
	return copyArtifact(artifact), nil
}

func (m *MemoryObjectStore) Get(_ context.Context, key string) (Artifact, []byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return Artifact{}, nil, fmt.Errorf("artifact %s not found", key)
	}
	return copyArtifact(obj.artifact), append([]byte(nil), obj.payload...), nil
}

func (m *MemoryObjectStore) Delete(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	delete(m.objects, key)
	return ok, nil
}

func (m *MemoryObjectStore) List(_ context.Context, prefix string) ([]Artifact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Artifact, 0, len(m.objects))
	for key, obj := range m.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, copyArtifact(obj.artifact))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// S3ObjectStore stores artifacts in an S3 bucket. Artifact URLs are
// presigned GET links valid for URLExpiry.
type S3ObjectStore struct {
	store     *s3.Store
	URLExpiry time.Duration
}

// NewS3ObjectStore wraps store.
func NewS3ObjectStore(store *s3.Store) *S3ObjectStore {
	return &S3ObjectStore{store: store, URLExpiry: time.Hour}
}

func (o *S3ObjectStore) Put(ctx context.Context, key string, payload []byte, contentType string, metadata map[string]string) (Artifact, error) {
	obj, err := o.store.Put(ctx, key, payload, contentType, metadata)
	if err != nil {
		return Artifact{}, err
	}
	return o.artifact(ctx, obj), nil
}

func (o *S3ObjectStore) Get(ctx context.Context, key string) (Artifact, []byte, error) {
	obj, payload, err := o.store.Get(ctx, key)
	if err != nil {
		return Artifact{}, nil, err
	}
	return o.artifact(ctx, obj), payload, nil
}

func (o *S3ObjectStore) Delete(ctx context.Context, key string) (bool, error) {
	return o.store.Delete(ctx, key)
}

func (o *S3ObjectStore) List(ctx context.Context, prefix string) ([]Artifact, error) {
	objects, err := o.store.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	out := make([]Artifact, 0, len(objects))
	for _, obj := range objects {
		out = append(out, Artifact{
			Key:       obj.Key,
			Filename:  filenameOf(obj.Key),
			SizeBytes: obj.Size,
			CreatedAt: obj.LastModified,
		})
	}
	return out, nil
}

func (o *S3ObjectStore) artifact(ctx context.Context, obj s3.Object) Artifact {
	artifact := Artifact{
		Key:         obj.Key,
		Filename:    filenameOf(obj.Key),
		ContentType: obj.ContentType,
		SizeBytes:   obj.Size,
		Metadata:    obj.Metadata,
		CreatedAt:   obj.LastModified,
	}
	if url, err := o.store.PresignURL(ctx, obj.Key, o.URLExpiry); err == nil {
		artifact.URL = url
	}
	return artifact
}

func filenameOf(key string) string {
	if i := strings.LastIndex(key, "/"); i >= 0 {
		return key[i+1:]
	}
	return key
}

func cloneMetadata(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyArtifact(a Artifact) Artifact {
	a.Metadata = cloneMetadata(a.Metadata)
	return a
}
