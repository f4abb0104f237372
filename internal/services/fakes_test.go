package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/tasklane/apiserver/internal/events"
	"github.com/tasklane/apiserver/internal/store"
	"github.com/tasklane/apiserver/types"
)

type fakeUserRepo struct {
	mu     sync.Mutex
	users  []types.User
	err    error
	nextID int
}

func (r *fakeUserRepo) Create(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return types.User{}, r.err
	}
	for _, existing := range r.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return types.User{}, store.ErrDuplicate
		}
	}
	r.nextID++
	user.ID = r.nextID
	r.users = append(r.users, user)
	return user, nil
}

func (r *fakeUserRepo) GetByUsername(_ context.Context, username string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return types.User{}, r.err
	}
	for _, user := range r.users {
		if user.Username == username {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *fakeUserRepo) GetByLogin(ctx context.Context, login string) (types.User, error) {
	user, err := r.GetByUsername(ctx, login)
	if !errors.Is(err, store.ErrNotFound) {
		return user, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == login {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

// fakeHasher stores passwords reversibly and counts verifications.
type fakeHasher struct {
	mu       sync.Mutex
	verified []string
}

func (h *fakeHasher) Hash(password string) (string, error) {
	return "hashed:" + password, nil
}

func (h *fakeHasher) Verify(password, digest string) bool {
	h.mu.Lock()
	h.verified = append(h.verified, digest)
	h.mu.Unlock()
	return digest == "hashed:"+password
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, evt events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) eventTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, evt := range p.events {
		out = append(out, evt.Type)
	}
	return out
}

type memoryObjects struct {
	bucket  string
	objects map[string][]byte
	ensured int
	putErr  error
}

func newMemoryObjects() *memoryObjects {
	return &memoryObjects{bucket: "snapshots", objects: make(map[string][]byte)}
}

func (m *memoryObjects) EnsureBucket(context.Context) error {
	m.ensured++
	return nil
}

func (m *memoryObjects) Put(_ context.Context, key string, r io.Reader, size int64, contentType string) error {
	if m.putErr != nil {
		return m.putErr
	}
	if contentType != "text/csv" {
		return errors.New("unexpected content type " + contentType)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if int64(len(data)) != size {
		return errors.New("size mismatch")
	}
	m.objects[key] = data
	return nil
}

func (m *memoryObjects) Get(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, errors.New("no such key: " + strings.TrimSpace(key))
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryObjects) Bucket() string {
	return m.bucket
}
