package certificates

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/aura-seminar/certificates/internal/mailer"
	"github.com/aura-seminar/certificates/internal/models"
	"github.com/aura-seminar/certificates/pkg/cache"
	"github.com/aura-seminar/certificates/pkg/queue"
	"github.com/aura-seminar/certificates/pkg/storage"
)

type fakeRecords struct {
	mu          sync.Mutex
	regs        map[int64]models.Registration
	codeWrites  int
	sentWrites  int
	listErr     error
	lastEventID *int64
}

func newFakeRecords(regs ...models.Registration) *fakeRecords {
	f := &fakeRecords{regs: map[int64]models.Registration{}}
	for _, r := range regs {
		f.regs[r.ID] = r
	}
	return f
}

func (f *fakeRecords) get(id int64) models.Registration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.regs[id]
}

func (f *fakeRecords) GetWithAssociations(_ context.Context, id int64) (*models.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.regs[id]
	if !ok {
		return nil, models.ErrRegistrationNotFound
	}
	return &r, nil
}

func (f *fakeRecords) GetByCertificateCode(_ context.Context, code string) (*models.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.regs {
		if code != "" && r.CertificateCode == code {
			return &r, nil
		}
	}
	return nil, models.ErrRegistrationNotFound
}

func (f *fakeRecords) AssignCertificateCode(_ context.Context, id int64, code string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.regs[id]
	if !ok {
		return "", models.ErrRegistrationNotFound
	}
	if r.CertificateCode == "" {
		r.CertificateCode = code
		f.regs[id] = r
		f.codeWrites++
	}
	return r.CertificateCode, nil
}

func (f *fakeRecords) MarkCertificateSent(_ context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.regs[id]
	if r.CertificateSent {
		return false, nil
	}
	r.CertificateSent = true
	f.regs[id] = r
	f.sentWrites++
	return true, nil
}

func (f *fakeRecords) ListPresent(_ context.Context, eventID *int64) ([]models.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.lastEventID = eventID
	var out []models.Registration
	for _, r := range f.regs {
		if !r.Present {
			continue
		}
		if eventID != nil && (r.EventID == nil || *r.EventID != *eventID) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeRecords) ListPendingCertificates(_ context.Context) ([]models.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Registration
	for _, r := range f.regs {
		if r.Present && (!r.CertificateSent || r.CertificateCode == "") {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	calls   int
	puts    []string
	gets    int
	putErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}}
}

func (s *fakeStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	_, ok := s.objects[key]
	return ok, nil
}

func (s *fakeStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.gets++
	b, ok := s.objects[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return b, nil
}

func (s *fakeStore) Put(_ context.Context, key string, body []byte, _ storage.Visibility) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.putErr != nil {
		return s.putErr
	}
	s.puts = append(s.puts, key)
	s.objects[key] = body
	return nil
}

func (s *fakeStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	delete(s.objects, key)
	return nil
}

func (s *fakeStore) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return "https://store.test/" + key + "?ttl=" + ttl.String(), nil
}

func (s *fakeStore) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

func (s *fakeStore) putCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.puts)
}

type fakeRenderer struct {
	mu        sync.Mutex
	images    int
	documents int
	docInputs [][]byte
	imageErr  error
}

func (r *fakeRenderer) RenderImage(reg *models.Registration) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.imageErr != nil {
		return nil, r.imageErr
	}
	r.images++
	return []byte("jpeg:" + reg.CertificateCode), nil
}

func (r *fakeRenderer) RenderDocument(img []byte) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !bytes.HasPrefix(img, []byte("jpeg:")) {
		return nil, errors.New("document needs image bytes")
	}
	r.documents++
	r.docInputs = append(r.docInputs, img)
	return append([]byte("pdf:"), img...), nil
}

type fakeSender struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (s *fakeSender) Send(_ context.Context, msg mailer.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

type fakeEmailLogs struct {
	mu      sync.Mutex
	entries map[int64]*models.EmailLog
	nextID  int64
}

func newFakeEmailLogs() *fakeEmailLogs {
	return &fakeEmailLogs{entries: map[int64]*models.EmailLog{}}
}

func (l *fakeEmailLogs) Create(_ context.Context, el *models.EmailLog) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	el.ID = l.nextID
	el.Status = models.EmailLogStatusPending
	cp := *el
	l.entries[el.ID] = &cp
	return nil
}

func (l *fakeEmailLogs) MarkSent(_ context.Context, id int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[id].Status = models.EmailLogStatusSent
	return nil
}

func (l *fakeEmailLogs) MarkFailed(_ context.Context, id int64, reason string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[id].Status = models.EmailLogStatusFailed
	l.entries[id].ErrorMessage = reason
	return nil
}

type fakeEnqueuer struct {
	mu       sync.Mutex
	payloads []queue.CertificatePayload
}

func (e *fakeEnqueuer) EnqueueCertificate(_ context.Context, p queue.CertificatePayload) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.payloads = append(e.payloads, p)
	return nil
}

type fakeRunner struct {
	mu      sync.Mutex
	runs    []int64
	failOn  map[int64]error
	results map[int64]Result
}

func (r *fakeRunner) Generate(_ context.Context, id int64, _ bool) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, id)
	if err := r.failOn[id]; err != nil {
		return Result{}, err
	}
	return r.results[id], nil
}

func int64Ptr(v int64) *int64 { return &v }

var testEvent = models.Event{
	ID:       5,
	Name:     "Distributed Systems in Practice",
	Slug:     "distributed-systems",
	Type:     models.EventTypeSeminar,
	StartsAt: time.Date(2024, time.March, 14, 18, 0, 0, 0, time.UTC),
}

func attendee(id int64, present bool) models.Registration {
	ev := testEvent
	return models.Registration{
		ID:      id,
		UserID:  int64Ptr(100 + id),
		EventID: int64Ptr(ev.ID),
		Present: present,
		User:    &models.User{ID: 100 + id, Email: "attendee@example.com", FullName: "MARY O'BRIEN"},
		Event:   &ev,
	}
}

type harness struct {
	records   *fakeRecords
	store     *fakeStore
	cache     *cache.Memory
	renderer  *fakeRenderer
	sender    *fakeSender
	emailLogs *fakeEmailLogs
	exists    *ExistenceCache
	artifacts *Artifacts
	generator *Generator
}

func newHarness(regs ...models.Registration) *harness {
	h := &harness{
		records:   newFakeRecords(regs...),
		store:     newFakeStore(),
		cache:     cache.NewMemory(256, time.Hour),
		renderer:  &fakeRenderer{},
		sender:    &fakeSender{},
		emailLogs: newFakeEmailLogs(),
	}
	h.exists = NewExistenceCache(h.cache, h.store, time.Hour, nil)
	h.artifacts = NewArtifacts(h.store, h.exists, h.renderer, nil)
	h.generator = NewGenerator(h.records, h.artifacts, h.sender, h.emailLogs, nil, GeneratorConfig{PublicURL: "https://certs.example.com/"}, nil)
	return h
}
