package policy

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"horse.fit/safeagree/internal/artifact"
	"horse.fit/safeagree/internal/content"
	"horse.fit/safeagree/internal/fingerprint"
	"horse.fit/safeagree/internal/summarizer"
)

func TestProcessDocumentPrivacyLinkEndToEnd(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.fetcher.set("https://example.com/privacy", "We collect emails.")

	first := h.processLink(t, 1, "https://example.com/privacy")
	if first.Cached {
		t.Fatalf("first submission should not be cached")
	}
	if first.Entry.CompanyName != "example" {
		t.Fatalf("unexpected company: got %q want %q", first.Entry.CompanyName, "example")
	}
	if first.Entry.Link() != "https://example.com/privacy" {
		t.Fatalf("unexpected source link: %q", first.Entry.Link())
	}
	wantFP := fingerprint.Of("We collect emails.")
	if first.Entry.Fingerprint != wantFP {
		t.Fatalf("unexpected fingerprint: got %s want %s", first.Entry.Fingerprint, wantFP)
	}
	if first.Entry.ArtifactKey != "policy_summary_"+wantFP.Hex()+".json" {
		t.Fatalf("unexpected artifact key: %s", first.Entry.ArtifactKey)
	}
	if first.Entry.Language != "en" || first.Artifact.Language != "en" {
		t.Fatalf("unexpected language: entry %q artifact %q", first.Entry.Language, first.Artifact.Language)
	}
	if first.Artifact.Summarizer != "stub" || first.Artifact.Fingerprint != wantFP.Hex() {
		t.Fatalf("unexpected artifact metadata: %+v", first.Artifact)
	}
	if !h.catalog.linked(1, first.Entry.ID) {
		t.Fatalf("expected entry to be linked to user 1")
	}

	second := h.processLink(t, 1, "https://example.com/privacy")
	if !second.Cached {
		t.Fatalf("second submission should be cached")
	}
	if second.Entry.ID != first.Entry.ID {
		t.Fatalf("unexpected entry id: got %d want %d", second.Entry.ID, first.Entry.ID)
	}
	if !second.Entry.LastProcessedAt.After(first.Entry.LastProcessedAt) {
		t.Fatalf("expected last processed to advance: first %s second %s", first.Entry.LastProcessedAt, second.Entry.LastProcessedAt)
	}
	if got := h.summarizer.calls.Load(); got != 1 {
		t.Fatalf("unexpected summarizer calls: got %d want 1", got)
	}
	if got := h.catalog.entryCount(); got != 1 {
		t.Fatalf("unexpected entry count: got %d want 1", got)
	}
	if got := len(h.catalog.libraryIDs(1)); got != 1 {
		t.Fatalf("unexpected library size: got %d want 1", got)
	}

	a, _ := json.Marshal(first.Artifact)
	b, _ := json.Marshal(second.Artifact)
	if string(a) != string(b) {
		t.Fatalf("cached artifact differs\nfirst:  %s\nsecond: %s", a, b)
	}
}

func TestProcessDocumentSharesEntryAcrossUsersAndSources(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.fetcher.set("https://example.com/privacy", "We collect emails.")
	h.fetcher.set("https://mirror.example.org/privacy", "We   collect emails.\n")

	first := h.processLink(t, 1, "https://example.com/privacy")
	second := h.processLink(t, 2, "https://mirror.example.org/privacy")

	upload, err := h.orch.ProcessDocument(context.Background(), ProcessRequest{
		UserID:      3,
		Input:       content.FileInput("policy.txt", "text/plain", []byte("We collect emails.")),
		CompanyName: "Someone Else",
		FileName:    "policy.txt",
	})
	if err != nil {
		t.Fatalf("process upload: %v", err)
	}

	if second.Entry.ID != first.Entry.ID || upload.Entry.ID != first.Entry.ID {
		t.Fatalf("expected one entry, got ids %d %d %d", first.Entry.ID, second.Entry.ID, upload.Entry.ID)
	}
	if upload.Entry.CompanyName != "example" {
		t.Fatalf("company name must not be overwritten on a hit: got %q", upload.Entry.CompanyName)
	}
	if second.Entry.Link() != "https://mirror.example.org/privacy" {
		t.Fatalf("expected source link update on hit, got %q", second.Entry.Link())
	}
	if upload.Entry.Link() != "https://mirror.example.org/privacy" {
		t.Fatalf("upload must not clear the source link, got %q", upload.Entry.Link())
	}
	for _, userID := range []int64{1, 2, 3} {
		if !h.catalog.linked(userID, first.Entry.ID) {
			t.Fatalf("expected user %d to be linked", userID)
		}
	}
	if got := h.summarizer.calls.Load(); got != 1 {
		t.Fatalf("unexpected summarizer calls: got %d want 1", got)
	}
}

func TestProcessDocumentConcurrentMissesComputeOnce(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.summarizer.delay = 50 * time.Millisecond
	h.fetcher.set("https://example.com/privacy", "We collect emails.")

	const submitters = 16
	var (
		wg   sync.WaitGroup
		ids  = make([]int64, submitters)
		errs = make([]error, submitters)
	)
	start := make(chan struct{})
	for i := 0; i < submitters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			res, err := h.orch.ProcessDocument(context.Background(), ProcessRequest{
				UserID: int64(i%3) + 1,
				Input:  content.LinkInput("https://example.com/privacy"),
			})
			errs[i] = err
			if res != nil {
				ids[i] = res.Entry.ID
			}
		}()
	}
	close(start)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("submitter %d: %v", i, err)
		}
		if ids[i] != ids[0] {
			t.Fatalf("submitter %d got entry %d want %d", i, ids[i], ids[0])
		}
	}
	if got := h.summarizer.calls.Load(); got != 1 {
		t.Fatalf("unexpected summarizer calls: got %d want 1", got)
	}
	if got := h.catalog.entryCount(); got != 1 {
		t.Fatalf("unexpected entry count: got %d want 1", got)
	}
	for _, userID := range []int64{1, 2, 3} {
		if !h.catalog.linked(userID, ids[0]) {
			t.Fatalf("expected user %d to be linked", userID)
		}
	}
}

func TestProcessDocumentUnrelatedFingerprintsDoNotWait(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.summarizer.delay = 200 * time.Millisecond
	h.fetcher.set("https://a.example.com/p", "Policy A.")
	h.fetcher.set("https://b.example.com/p", "Policy B.")

	started := time.Now()
	var wg sync.WaitGroup
	for _, link := range []string{"https://a.example.com/p", "https://b.example.com/p"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.orch.ProcessDocument(context.Background(), ProcessRequest{
				UserID: 1,
				Input:  content.LinkInput(link),
			})
			if err != nil {
				t.Errorf("process %s: %v", link, err)
			}
		}()
	}
	wg.Wait()

	if elapsed := time.Since(started); elapsed >= 400*time.Millisecond {
		t.Fatalf("distinct fingerprints were serialized: took %s", elapsed)
	}
	if got := h.summarizer.calls.Load(); got != 2 {
		t.Fatalf("unexpected summarizer calls: got %d want 2", got)
	}
}

func TestProcessDocumentCanceledCallerDoesNotFailSharedWaiters(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.summarizer.entered = make(chan struct{}, 1)
	h.summarizer.gate = make(chan struct{})
	h.fetcher.set("https://example.com/privacy", "We collect emails.")

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	defer cancelLeader()
	leaderErr := make(chan error, 1)
	go func() {
		_, err := h.orch.ProcessDocument(leaderCtx, ProcessRequest{
			UserID: 1,
			Input:  content.LinkInput("https://example.com/privacy"),
		})
		leaderErr <- err
	}()
	<-h.summarizer.entered

	type outcome struct {
		res *Result
		err error
	}
	follower := make(chan outcome, 1)
	go func() {
		res, err := h.orch.ProcessDocument(context.Background(), ProcessRequest{
			UserID: 2,
			Input:  content.LinkInput("https://example.com/privacy"),
		})
		follower <- outcome{res: res, err: err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancelLeader()
	if err := <-leaderErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("unexpected leader error: got %v want context.Canceled", err)
	}
	close(h.summarizer.gate)

	got := <-follower
	if got.err != nil {
		t.Fatalf("follower failed after leader canceled: %v", got.err)
	}
	if got.res.Entry.Link() != "https://example.com/privacy" {
		t.Fatalf("unexpected follower entry: %+v", got.res.Entry)
	}
	if calls := h.summarizer.calls.Load(); calls != 1 {
		t.Fatalf("unexpected summarizer calls: got %d want 1", calls)
	}
	if !h.catalog.linked(2, got.res.Entry.ID) {
		t.Fatalf("expected follower's user to be linked")
	}
	if h.catalog.linked(1, got.res.Entry.ID) {
		t.Fatalf("canceled caller must not be linked")
	}
}

func TestProcessDocumentJoinedCallerRecordsItsLink(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.summarizer.entered = make(chan struct{}, 1)
	h.summarizer.gate = make(chan struct{})
	h.fetcher.set("https://example.com/privacy", "We collect emails.")
	h.fetcher.set("https://example.com/legal/privacy", "We collect emails.")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := h.orch.ProcessDocument(context.Background(), ProcessRequest{
			UserID: 1,
			Input:  content.LinkInput("https://example.com/privacy"),
		}); err != nil {
			t.Errorf("leader: %v", err)
		}
	}()
	<-h.summarizer.entered

	var joined *Result
	wg.Add(1)
	go func() {
		defer wg.Done()
		res, err := h.orch.ProcessDocument(context.Background(), ProcessRequest{
			UserID: 2,
			Input:  content.LinkInput("https://example.com/legal/privacy"),
		})
		if err != nil {
			t.Errorf("joined caller: %v", err)
			return
		}
		joined = res
	}()
	time.Sleep(50 * time.Millisecond)
	close(h.summarizer.gate)
	wg.Wait()

	if joined == nil {
		t.Fatalf("joined caller returned no result")
	}
	if joined.Entry.Link() != "https://example.com/legal/privacy" {
		t.Fatalf("unexpected link in joined result: %q", joined.Entry.Link())
	}
	stored, err := h.catalog.GetEntry(context.Background(), joined.Entry.ID)
	if err != nil {
		t.Fatalf("get entry: %v", err)
	}
	if stored.Link() != "https://example.com/legal/privacy" {
		t.Fatalf("unexpected stored link: got %q want the joined caller's link", stored.Link())
	}
	if calls := h.summarizer.calls.Load(); calls != 1 {
		t.Fatalf("unexpected summarizer calls: got %d want 1", calls)
	}
}

func TestProcessDocumentReconcilesLostInsertRace(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.fetcher.set("https://example.com/privacy", "We collect emails.")
	fp := fingerprint.Of("We collect emails.")

	// Another process catalogs the same fingerprint between our lookup and insert.
	h.catalog.beforeInsert = func() {
		h.catalog.mu.Lock()
		defer h.catalog.mu.Unlock()
		link := "https://other.example.com/privacy"
		if _, err := h.catalog.insertLocked(NewCatalogEntry{
			UUID:        "winner",
			Fingerprint: fp,
			CompanyName: "winner",
			SourceLink:  &link,
			ArtifactKey: artifact.KeyFor(fp),
			Language:    "en",
			ProcessedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		}); err != nil {
			t.Errorf("insert competitor: %v", err)
		}
	}

	res := h.processLink(t, 1, "https://example.com/privacy")
	if res.Entry.UUID != "winner" {
		t.Fatalf("expected the winner's entry, got %+v", res.Entry)
	}
	if res.Entry.CompanyName != "winner" {
		t.Fatalf("unexpected company: %q", res.Entry.CompanyName)
	}
	if got := h.catalog.entryCount(); got != 1 {
		t.Fatalf("unexpected entry count: got %d want 1", got)
	}
	if !h.catalog.linked(1, res.Entry.ID) {
		t.Fatalf("expected association to the winner")
	}
	if got := h.summarizer.calls.Load(); got != 1 {
		t.Fatalf("unexpected summarizer calls: got %d want 1", got)
	}
}

func TestProcessDocumentInsertConflictRetriesAreBounded(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.fetcher.set("https://example.com/privacy", "We collect emails.")
	h.catalog.insertErr = ErrUniquenessViolation
	h.catalog.hideEntries = true

	_, err := h.orch.ProcessDocument(context.Background(), ProcessRequest{
		UserID: 1,
		Input:  content.LinkInput("https://example.com/privacy"),
	})
	if !errors.Is(err, ErrStorageWriteFailed) {
		t.Fatalf("unexpected error: got %v want ErrStorageWriteFailed", err)
	}
	if errors.Is(err, ErrUniquenessViolation) {
		t.Fatalf("uniqueness violation must not leak: %v", err)
	}
	if h.catalog.insertCalls != maxInsertAttempts {
		t.Fatalf("unexpected insert attempts: got %d want %d", h.catalog.insertCalls, maxInsertAttempts)
	}
	if got := h.summarizer.calls.Load(); got != 1 {
		t.Fatalf("unexpected summarizer calls: got %d want 1", got)
	}
}

func TestProcessDocumentInsertFailureIsStorageWriteFailed(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.fetcher.set("https://example.com/privacy", "We collect emails.")
	h.catalog.insertErr = errors.New("connection reset")

	_, err := h.orch.ProcessDocument(context.Background(), ProcessRequest{
		UserID: 1,
		Input:  content.LinkInput("https://example.com/privacy"),
	})
	if !errors.Is(err, ErrStorageWriteFailed) {
		t.Fatalf("unexpected error: got %v want ErrStorageWriteFailed", err)
	}
	// The orphaned blob stays for the sweeper.
	if got := h.artifacts.count(); got != 1 {
		t.Fatalf("unexpected artifact count: got %d want 1", got)
	}
}

func TestProcessDocumentGatewayTimeout(t *testing.T) {
	t.Parallel()

	h := newHarness(t, func(d *Deps) { d.SummarizeTimeout = 20 * time.Millisecond })
	h.summarizer.block = true
	h.fetcher.set("https://example.com/privacy", "We collect emails.")

	_, err := h.orch.ProcessDocument(context.Background(), ProcessRequest{
		UserID: 1,
		Input:  content.LinkInput("https://example.com/privacy"),
	})
	if !errors.Is(err, ErrGatewayTimeout) {
		t.Fatalf("unexpected error: got %v want ErrGatewayTimeout", err)
	}
	if !IsRetryable(err) {
		t.Fatalf("timeout should be retryable")
	}
	if h.catalog.entryCount() != 0 || h.artifacts.count() != 0 {
		t.Fatalf("nothing may be persisted after a timeout")
	}
}

func TestProcessDocumentGatewayFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.summarizer.err = errors.New("model overloaded")
	h.fetcher.set("https://example.com/privacy", "We collect emails.")

	_, err := h.orch.ProcessDocument(context.Background(), ProcessRequest{
		UserID: 1,
		Input:  content.LinkInput("https://example.com/privacy"),
	})
	if !errors.Is(err, ErrGatewayFailure) {
		t.Fatalf("unexpected error: got %v want ErrGatewayFailure", err)
	}
	if errors.Is(err, ErrGatewayTimeout) {
		t.Fatalf("failure must not be reported as timeout")
	}
	if h.catalog.entryCount() != 0 || h.artifacts.count() != 0 {
		t.Fatalf("nothing may be persisted after a gateway failure")
	}

	h.summarizer.err = nil
	if res := h.processLink(t, 1, "https://example.com/privacy"); res.Cached {
		t.Fatalf("retry after failure should compute")
	}
}

func TestProcessDocumentRejectsInvalidSummary(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.summarizer.summary = &summarizer.Summary{Sections: nil, KeyPoints: []string{}, Sentiment: "neutral"}
	h.fetcher.set("https://example.com/privacy", "We collect emails.")

	_, err := h.orch.ProcessDocument(context.Background(), ProcessRequest{
		UserID: 1,
		Input:  content.LinkInput("https://example.com/privacy"),
	})
	if !errors.Is(err, ErrGatewayFailure) {
		t.Fatalf("unexpected error: got %v want ErrGatewayFailure", err)
	}
}

func TestProcessDocumentPutFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.artifacts.putErr = errors.New("disk full")
	h.fetcher.set("https://example.com/privacy", "We collect emails.")

	_, err := h.orch.ProcessDocument(context.Background(), ProcessRequest{
		UserID: 1,
		Input:  content.LinkInput("https://example.com/privacy"),
	})
	if !errors.Is(err, ErrStorageWriteFailed) {
		t.Fatalf("unexpected error: got %v want ErrStorageWriteFailed", err)
	}
	if h.catalog.entryCount() != 0 {
		t.Fatalf("no entry may exist without its artifact")
	}
}

func TestProcessDocumentAdoptsExistingArtifact(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.fetcher.set("https://example.com/privacy", "We collect emails.")
	fp := fingerprint.Of("We collect emails.")
	earlier := `{"fingerprint":"` + fp.Hex() + `","sections":[{"title":"Earlier","content":"Earlier run."}],"key_points":[],"sentiment":"neutral","language":"en","summarizer":"earlier","generated_at":"2024-01-01T00:00:00Z"}`
	h.artifacts.set(artifact.KeyFor(fp), []byte(earlier), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	res := h.processLink(t, 1, "https://example.com/privacy")
	if res.Artifact.Summarizer != "earlier" {
		t.Fatalf("expected the stored artifact to be adopted, got %+v", res.Artifact)
	}
	view, err := h.orch.GetEntry(context.Background(), res.Entry.ID)
	if err != nil {
		t.Fatalf("get entry: %v", err)
	}
	if view.Artifact.Sections[0].Title != "Earlier" {
		t.Fatalf("unexpected stored artifact: %+v", view.Artifact)
	}	if got := h.artifacts.modifiedAt(artifact.KeyFor(fp)); !got.After(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("adopted artifact age was not reset: %s", got)
	}
}

func TestProcessDocumentMissingArtifactIsCorruption(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.fetcher.set("https://example.com/privacy", "We collect emails.")
	res := h.processLink(t, 1, "https://example.com/privacy")

	if err := h.artifacts.Delete(context.Background(), res.Entry.ArtifactKey); err != nil {
		t.Fatalf("delete artifact: %v", err)
	}

	_, err := h.orch.ProcessDocument(context.Background(), ProcessRequest{
		UserID: 2,
		Input:  content.LinkInput("https://example.com/privacy"),
	})
	if !errors.Is(err, ErrCacheCorruption) {
		t.Fatalf("unexpected error: got %v want ErrCacheCorruption", err)
	}
	if got := h.summarizer.calls.Load(); got != 1 {
		t.Fatalf("corruption must not trigger recompute: got %d calls", got)
	}
	if h.catalog.linked(2, res.Entry.ID) {
		t.Fatalf("failed request must not create an association")
	}

	if _, err := h.orch.GetEntry(context.Background(), res.Entry.ID); !errors.Is(err, ErrCacheCorruption) {
		t.Fatalf("unexpected get error: got %v want ErrCacheCorruption", err)
	}
}

func TestProcessDocumentUnreadableArtifactIsCorruption(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.fetcher.set("https://example.com/privacy", "We collect emails.")
	res := h.processLink(t, 1, "https://example.com/privacy")
	h.artifacts.set(res.Entry.ArtifactKey, []byte("{truncated"), time.Now())

	if _, err := h.orch.GetEntry(context.Background(), res.Entry.ID); !errors.Is(err, ErrCacheCorruption) {
		t.Fatalf("unexpected error: got %v want ErrCacheCorruption", err)
	}
}

func TestProcessDocumentEmptyContent(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.fetcher.set("https://example.com/blank", " \n\t ")

	_, err := h.orch.ProcessDocument(context.Background(), ProcessRequest{
		UserID: 1,
		Input:  content.LinkInput("https://example.com/blank"),
	})
	if !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("unexpected error: got %v want ErrEmptyContent", err)
	}
	if h.summarizer.calls.Load() != 0 || h.catalog.entryCount() != 0 {
		t.Fatalf("empty content must stop before the gateway")
	}
}

func TestProcessDocumentExtractionFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	_, err := h.orch.ProcessDocument(context.Background(), ProcessRequest{
		UserID: 1,
		Input:  content.LinkInput("https://example.com/missing"),
	})
	if !errors.Is(err, ErrExtractionFailed) {
		t.Fatalf("unexpected error: got %v want ErrExtractionFailed", err)
	}
	if !IsUserError(err) {
		t.Fatalf("extraction failure should count as a user error")
	}
}

func TestProcessDocumentCollisionReusesFirstArtifact(t *testing.T) {
	t.Parallel()

	h := newHarness(t, func(d *Deps) {
		d.Hash = func(string) fingerprint.Fingerprint { return fingerprint.Fingerprint(42) }
	})
	h.fetcher.set("https://a.example.com/p", "First policy.")
	h.fetcher.set("https://b.example.com/p", "A different policy.")

	first := h.processLink(t, 1, "https://a.example.com/p")
	second := h.processLink(t, 1, "https://b.example.com/p")

	if second.Entry.ID != first.Entry.ID || !second.Cached {
		t.Fatalf("colliding fingerprints should reuse the first entry")
	}
	if second.Artifact.Sections[0].Content != "First policy." {
		t.Fatalf("expected first artifact, got %+v", second.Artifact.Sections)
	}
}

func TestProcessDocumentUnknownUser(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.fetcher.set("https://example.com/privacy", "We collect emails.")

	_, err := h.orch.ProcessDocument(context.Background(), ProcessRequest{
		UserID: 99,
		Input:  content.LinkInput("https://example.com/privacy"),
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("unexpected error: got %v want ErrNotFound", err)
	}

	_, err = h.orch.ProcessDocument(context.Background(), ProcessRequest{
		Input: content.LinkInput("https://example.com/privacy"),
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("unexpected error: got %v want ErrInvalidInput", err)
	}
}

func TestGetEntryNotFound(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	if _, err := h.orch.GetEntry(context.Background(), 404); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unexpected error: got %v want ErrNotFound", err)
	}
}

func TestHistoryOrdersByLastProcessed(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.fetcher.set("https://a.example.com/p", "Policy A.")
	h.fetcher.set("https://b.example.com/p", "Policy B.")

	a := h.processLink(t, 1, "https://a.example.com/p")
	b := h.processLink(t, 1, "https://b.example.com/p")
	h.processLink(t, 2, "https://a.example.com/p")

	entries, err := h.orch.History(context.Background(), 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(entries) != 2 || entries[0].ID != a.Entry.ID || entries[1].ID != b.Entry.ID {
		t.Fatalf("unexpected history order: %+v", entries)
	}

	limited, err := h.orch.History(context.Background(), 1)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("unexpected limited history length: %d", len(limited))
	}
}

func TestNewOrchestratorRequiresCollaborators(t *testing.T) {
	t.Parallel()

	if _, err := NewOrchestrator(Deps{}); err == nil {
		t.Fatalf("expected error for missing collaborators")
	}
}
