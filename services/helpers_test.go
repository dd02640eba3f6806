package services

import (
	gocontext "context"
	"sync"
	"time"

	"github.com/hocvui-edu/hocvui_api/model"
	"github.com/hocvui-edu/hocvui_api/services/repositories"
)

// fakeIdentityRepo is an in-memory IdentityRepository for tests. Failure
// flags let the transaction tests break specific steps.
type fakeIdentityRepo struct {
	mu         sync.Mutex
	identities map[string]*model.Identity
	progress   map[string]*model.IdentityProgress

	failCreateProgress bool
	createCalls        int
}

func newFakeIdentityRepo() *fakeIdentityRepo {
	return &fakeIdentityRepo{
		identities: map[string]*model.Identity{},
		progress:   map[string]*model.IdentityProgress{},
	}
}

func (r *fakeIdentityRepo) GetByID(id string) (*model.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	identity, ok := r.identities[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	copied := *identity
	return &copied, nil
}

func (r *fakeIdentityRepo) GetByIdentifier(identifier string) (*model.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, identity := range r.identities {
		if identifier != "" && (identity.Email == identifier || identity.MobileNumber == identifier) {
			copied := *identity
			return &copied, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *fakeIdentityRepo) Create(identity *model.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.createCalls++
	copied := *identity
	r.identities[identity.ID] = &copied
	return nil
}

func (r *fakeIdentityRepo) Save(identity *model.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *identity
	r.identities[identity.ID] = &copied
	return nil
}

func (r *fakeIdentityRepo) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.identities, id)
	return nil
}

func (r *fakeIdentityRepo) List(limit int) ([]model.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Identity, 0, len(r.identities))
	for _, identity := range r.identities {
		if len(out) == limit {
			break
		}
		out = append(out, *identity)
	}
	return out, nil
}

func (r *fakeIdentityRepo) CreateProgress(progress *model.IdentityProgress) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreateProgress {
		return errProgressWrite
	}
	copied := *progress
	r.progress[progress.IdentityID] = &copied
	return nil
}

func (r *fakeIdentityRepo) GetProgress(identityID string) (*model.IdentityProgress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	progress, ok := r.progress[identityID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	copied := *progress
	return &copied, nil
}

func (r *fakeIdentityRepo) DeleteProgress(identityID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.progress, identityID)
	return nil
}

func (r *fakeIdentityRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.identities)
}

var errProgressWrite = repositoryError("progress write failed")

type repositoryError string

func (e repositoryError) Error() string { return string(e) }

// fakeCodeStore is an in-memory resetCodeStore.
type fakeCodeStore struct {
	mu     sync.Mutex
	values map[string]string
}

func newFakeCodeStore() *fakeCodeStore {
	return &fakeCodeStore{values: map[string]string{}}
}

func (s *fakeCodeStore) Set(_ gocontext.Context, key, value string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *fakeCodeStore) Get(_ gocontext.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[key], nil
}

func (s *fakeCodeStore) Delete(_ gocontext.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.values, key)
	}
	return nil
}

func (s *fakeCodeStore) Exists(_ gocontext.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.values[key]
	return ok, nil
}

// fakeAttemptCounter is an in-memory attemptCounter with per-key TTLs.
type fakeAttemptCounter struct {
	mu     sync.Mutex
	counts map[string]int64
	ttls   map[string]time.Duration

	ttlErr error
}

func newFakeAttemptCounter() *fakeAttemptCounter {
	return &fakeAttemptCounter{counts: map[string]int64{}, ttls: map[string]time.Duration{}}
}

func (c *fakeAttemptCounter) Increment(_ gocontext.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[key]++
	return c.counts[key], nil
}

func (c *fakeAttemptCounter) Expire(_ gocontext.Context, key string, expiration time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ttls[key] = expiration
	return nil
}

func (c *fakeAttemptCounter) TTL(_ gocontext.Context, key string) (time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ttlErr != nil {
		return 0, c.ttlErr
	}
	ttl, ok := c.ttls[key]
	if !ok {
		return -1, nil
	}
	return ttl, nil
}

func (c *fakeAttemptCounter) Delete(_ gocontext.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.counts, key)
		delete(c.ttls, key)
	}
	return nil
}

func newTestIdentityService(repo IdentityRepository) *IdentityService {
	return &IdentityService{
		repo:  repo,
		codes: newFakeCodeStore(),
		keys:  newKeyedMutex(),
	}
}

func newTestLoginLimiter(counter attemptCounter, maxAttempts int64) *LoginLimiterService {
	return &LoginLimiterService{counter: counter, maxAttempts: maxAttempts, window: time.Minute}
}

func newTestSessionService(identitySvc *IdentityService) *SessionService {
	return &SessionService{
		identitySvc: identitySvc,
		limiterSvc:  newTestLoginLimiter(newFakeAttemptCounter(), 1000),
		store:       newMemorySessionStore(),
		slots:       newKeyedMutex(),
		sessions:    map[string]*model.Session{},
		sessionTTL:  time.Hour,
	}
}
