package policy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/safeagree/internal/artifact"
	"horse.fit/safeagree/internal/content"
	"horse.fit/safeagree/internal/fingerprint"
	"horse.fit/safeagree/internal/summarizer"
)

type memCatalog struct {
	mu          sync.Mutex
	nextID      int64
	entries     map[int64]*CatalogEntry
	byFP        map[fingerprint.Fingerprint]int64
	users       map[int64]bool
	assoc       map[int64]map[int64]bool
	insertCalls int
	touchCalls  int

	// beforeInsert runs once, ahead of the next InsertEntry.
	beforeInsert func()
	// insertErr, when set, is returned by every InsertEntry.
	insertErr error
	// hideEntries makes FindByFingerprint always miss.
	hideEntries bool
}

func newMemCatalog(userIDs ...int64) *memCatalog {
	c := &memCatalog{
		entries: make(map[int64]*CatalogEntry),
		byFP:    make(map[fingerprint.Fingerprint]int64),
		users:   make(map[int64]bool),
		assoc:   make(map[int64]map[int64]bool),
	}
	for _, id := range userIDs {
		c.users[id] = true
	}
	return c
}

func (c *memCatalog) FindByFingerprint(_ context.Context, fp fingerprint.Fingerprint) (*CatalogEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.byFP[fp]
	if !ok || c.hideEntries {
		return nil, ErrNotFound
	}
	copied := *c.entries[id]
	return &copied, nil
}

func (c *memCatalog) InsertEntry(_ context.Context, entry NewCatalogEntry) (*CatalogEntry, error) {
	c.mu.Lock()
	hook := c.beforeInsert
	c.beforeInsert = nil
	c.mu.Unlock()
	if hook != nil {
		hook()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.insertCalls++
	if c.insertErr != nil {
		return nil, c.insertErr
	}
	return c.insertLocked(entry)
}

func (c *memCatalog) insertLocked(entry NewCatalogEntry) (*CatalogEntry, error) {
	if _, exists := c.byFP[entry.Fingerprint]; exists {
		return nil, ErrUniquenessViolation
	}
	c.nextID++
	row := &CatalogEntry{
		ID:              c.nextID,
		UUID:            entry.UUID,
		Fingerprint:     entry.Fingerprint,
		CompanyName:     entry.CompanyName,
		SourceLink:      entry.SourceLink,
		ArtifactKey:     entry.ArtifactKey,
		Language:        entry.Language,
		CreatedAt:       entry.ProcessedAt,
		LastProcessedAt: entry.ProcessedAt,
	}
	c.entries[row.ID] = row
	c.byFP[row.Fingerprint] = row.ID
	copied := *row
	return &copied, nil
}

func (c *memCatalog) TouchEntry(_ context.Context, entryID int64, at time.Time, link *string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touchCalls++
	row, ok := c.entries[entryID]
	if !ok {
		return ErrNotFound
	}
	row.LastProcessedAt = at
	if link != nil {
		value := *link
		row.SourceLink = &value
	}
	return nil
}

func (c *memCatalog) GetEntry(_ context.Context, entryID int64) (*CatalogEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	row, ok := c.entries[entryID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *row
	return &copied, nil
}

func (c *memCatalog) ListEntries(_ context.Context, limit int) ([]CatalogEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]CatalogEntry, 0, len(c.entries))
	for _, row := range c.entries {
		out = append(out, *row)
	}
	sortEntries(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (c *memCatalog) ListByUser(_ context.Context, userID int64) ([]CatalogEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]CatalogEntry, 0)
	for entryID := range c.assoc[userID] {
		out = append(out, *c.entries[entryID])
	}
	sortEntries(out)
	return out, nil
}

func (c *memCatalog) UserExists(_ context.Context, userID int64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.users[userID], nil
}

func (c *memCatalog) UpsertAssociation(_ context.Context, userID, entryID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.users[userID] {
		return fmt.Errorf("user %d: %w", userID, ErrNotFound)
	}
	if _, ok := c.entries[entryID]; !ok {
		return fmt.Errorf("entry %d: %w", entryID, ErrNotFound)
	}
	if c.assoc[userID] == nil {
		c.assoc[userID] = make(map[int64]bool)
	}
	c.assoc[userID][entryID] = true
	return nil
}

func (c *memCatalog) DeleteAssociation(_ context.Context, userID, entryID int64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.assoc[userID][entryID] {
		return false, nil
	}
	delete(c.assoc[userID], entryID)
	return true, nil
}

func (c *memCatalog) ListArtifactKeys(_ context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.entries))
	for _, row := range c.entries {
		keys = append(keys, row.ArtifactKey)
	}
	return keys, nil
}

func (c *memCatalog) ListUsersWithLibraries(_ context.Context) ([]int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]int64, 0, len(c.assoc))
	for userID, entries := range c.assoc {
		if len(entries) > 0 {
			ids = append(ids, userID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (c *memCatalog) entryCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *memCatalog) linked(userID, entryID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.assoc[userID][entryID]
}

func (c *memCatalog) libraryIDs(userID int64) []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]int64, 0, len(c.assoc[userID]))
	for id := range c.assoc[userID] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func sortEntries(entries []CatalogEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].LastProcessedAt.Equal(entries[j].LastProcessedAt) {
			return entries[i].LastProcessedAt.After(entries[j].LastProcessedAt)
		}
		return entries[i].ID > entries[j].ID
	})
}

type memObject struct {
	body     []byte
	modified time.Time
}

type memArtifacts struct {
	mu      sync.Mutex
	objects map[string]memObject
	puts    int
	putErr  error
	now     func() time.Time

	// afterList runs once, after the next List has taken its snapshot.
	afterList func()
}

func newMemArtifacts(now func() time.Time) *memArtifacts {
	return &memArtifacts{objects: make(map[string]memObject), now: now}
}

func (s *memArtifacts) Put(_ context.Context, key string, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts++
	if s.putErr != nil {
		return s.putErr
	}
	if _, exists := s.objects[key]; exists {
		return fmt.Errorf("%w: %s", artifact.ErrExists, key)
	}
	s.objects[key] = memObject{body: append([]byte(nil), body...), modified: s.now()}
	return nil
}

func (s *memArtifacts) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	object, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", artifact.ErrNotFound, key)
	}
	return append([]byte(nil), object.body...), nil
}

func (s *memArtifacts) Touch(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	object, ok := s.objects[key]
	if !ok {
		return fmt.Errorf("%w: %s", artifact.ErrNotFound, key)
	}
	object.modified = s.now()
	s.objects[key] = object
	return nil
}

func (s *memArtifacts) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *memArtifacts) List(_ context.Context) ([]artifact.ObjectInfo, error) {
	s.mu.Lock()
	out := make([]artifact.ObjectInfo, 0, len(s.objects))
	for key, object := range s.objects {
		out = append(out, artifact.ObjectInfo{Key: key, Size: int64(len(object.body)), ModifiedAt: object.modified})
	}
	hook := s.afterList
	s.afterList = nil
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *memArtifacts) modifiedAt(key string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.objects[key].modified
}

func (s *memArtifacts) set(key string, body []byte, modified time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = memObject{body: body, modified: modified}
}

func (s *memArtifacts) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

type mapFetcher struct {
	mu    sync.Mutex
	pages map[string]string
}

func (f *mapFetcher) FetchRenderedText(_ context.Context, link string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	text, ok := f.pages[link]
	if !ok {
		return "", errors.New("fetch status 404")
	}
	return text, nil
}

func (f *mapFetcher) set(link, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[link] = text
}

type stubSummarizer struct {
	calls   atomic.Int32
	delay   time.Duration
	block   bool
	err     error
	summary *summarizer.Summary

	// entered receives a value when a call starts; gate, when set, holds
	// every call until it is closed.
	entered chan struct{}
	gate    chan struct{}
}

func (s *stubSummarizer) Name() string {
	return "stub"
}

func (s *stubSummarizer) Summarize(ctx context.Context, req summarizer.Request) (*summarizer.Summary, error) {
	s.calls.Add(1)
	if s.entered != nil {
		select {
		case s.entered <- struct{}{}:
		default:
		}
	}
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	if s.summary != nil {
		copied := *s.summary
		return &copied, nil
	}
	return &summarizer.Summary{
		Sections:  []summarizer.Section{{Title: "Overview", Content: req.Text}},
		KeyPoints: []string{req.Text},
		Sentiment: "neutral",
	}, nil
}

type fakeClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), step: time.Second}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.step)
	return c.now
}

type harness struct {
	catalog    *memCatalog
	artifacts  *memArtifacts
	fetcher    *mapFetcher
	summarizer *stubSummarizer
	clock      *fakeClock
	orch       *Orchestrator
	lib        *Library
}

func newHarness(t *testing.T, configure ...func(*Deps)) *harness {
	t.Helper()

	clock := newFakeClock()
	h := &harness{
		catalog:    newMemCatalog(1, 2, 3),
		artifacts:  newMemArtifacts(clock.Now),
		fetcher:    &mapFetcher{pages: make(map[string]string)},
		summarizer: &stubSummarizer{},
		clock:      clock,
	}

	deps := Deps{
		Catalog:        h.catalog,
		Artifacts:      h.artifacts,
		Normalizer:     content.NewNormalizer(h.fetcher, nil),
		Summarizer:     h.summarizer,
		Logger:         zerolog.Nop(),
		Now:            clock.Now,
		DetectLanguage: func(string) string { return "en" },
	}
	for _, fn := range configure {
		fn(&deps)
	}

	orch, err := NewOrchestrator(deps)
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	h.orch = orch
	h.lib = NewLibrary(h.catalog, orch, zerolog.Nop(), LibraryOptions{ImportConcurrency: 3})
	return h
}

func (h *harness) processLink(t *testing.T, userID int64, link string) *Result {
	t.Helper()
	res, err := h.orch.ProcessDocument(context.Background(), ProcessRequest{
		UserID: userID,
		Input:  content.LinkInput(link),
	})
	if err != nil {
		t.Fatalf("process %s: %v", link, err)
	}
	return res
}
