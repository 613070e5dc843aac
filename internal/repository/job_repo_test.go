package repository

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/timmy/coursegen/internal/domain"
	"github.com/timmy/coursegen/internal/kvstore"
)

func newTestRepo(t *testing.T) (*JobRepository, kvstore.Store) {
	t.Helper()
	store := kvstore.NewMemoryStore()
	repo := NewJobRepository(store)
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	var tick int64
	repo.now = func() time.Time {
		return base.Add(time.Duration(atomic.AddInt64(&tick, 1)) * time.Millisecond)
	}
	return repo, store
}

func generationInput() *domain.GenerationInput {
	return &domain.GenerationInput{Subject: "Algebra I", Passion: "Soccer", AgeRange: "Grades 6–8"}
}

func TestQueueKeys(t *testing.T) {
	created := time.Date(2025, 1, 2, 3, 4, 5, 6, time.UTC)
	if got := QueuePartition(domain.JobStatusPending); got != "JOB#PENDING" {
		t.Errorf("QueuePartition = %q", got)
	}
	if got := QueuePartition(domain.JobStatusFailed); got != "JOB#FAILED" {
		t.Errorf("QueuePartition = %q", got)
	}
	want := "chapterJob#2025-01-02T03:04:05.000000006Z#j1"
	if got := QueueSortKey(domain.JobTypeChapter, created, "j1"); got != want {
		t.Errorf("QueueSortKey = %q, want %q", got, want)
	}
	if got := JobEntity(domain.JobTypeChapter, "j1"); got != "chapterJob#j1" {
		t.Errorf("JobEntity = %q", got)
	}
}

func TestJobRepository_ItemKeyCarriesType(t *testing.T) {
	repo, store := newTestRepo(t)
	ctx := context.Background()

	job, err := repo.Create(ctx, "u1", &domain.ExportInput{CurriculumID: "c1"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := store.Get(ctx, kvstore.Key{Owner: "u1", Entity: "chapterJob#" + job.JobID}); err != nil {
		t.Fatalf("item not stored under chapterJob#<id>: %v", err)
	}

	got, err := repo.Get(ctx, "u1", job.JobID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Type != domain.JobTypeChapter || got.JobID != job.JobID {
		t.Errorf("Get = %s %s", got.Type, got.JobID)
	}
}

func TestJobRepository_Lifecycle(t *testing.T) {
	repo, store := newTestRepo(t)
	ctx := context.Background()

	job, err := repo.Create(ctx, "owner@example.com", generationInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	ref, err := repo.FindNextPending(ctx, domain.JobTypeCurriculum)
	if err != nil || ref == nil {
		t.Fatalf("FindNextPending = %v, %v", ref, err)
	}
	if ref.JobID != job.JobID {
		t.Fatalf("found %s, want %s", ref.JobID, job.JobID)
	}
	if none, _ := repo.FindNextPending(ctx, domain.JobTypeChapter); none != nil {
		t.Errorf("chapter scan returned %+v", none)
	}

	ok, err := repo.Claim(ctx, *ref)
	if err != nil || !ok {
		t.Fatalf("Claim = %v, %v", ok, err)
	}
	ok, err = repo.Claim(ctx, *ref)
	if err != nil || ok {
		t.Fatalf("second Claim = %v, %v; want false, nil", ok, err)
	}

	item, _ := store.Get(ctx, kvstore.Key{Owner: ref.OwnerID, Entity: JobEntity(ref.Type, ref.JobID)})
	if item.Attr(kvstore.AttrIndexPK) != "JOB#RUNNING" || item.Attr("status") != "running" {
		t.Errorf("after claim attrs = %+v", item.Attrs)
	}

	out := &domain.JobOutput{Bucket: "b", Key: "textbook/x/curriculum16.json", Format: "json", Filename: "curriculum16.json"}
	if err := repo.MarkDone(ctx, *ref, out); err != nil {
		t.Fatalf("MarkDone: %v", err)
	}

	got, err := repo.Get(ctx, ref.OwnerID, ref.JobID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != domain.JobStatusDone {
		t.Errorf("status = %s", got.Status)
	}
	if got.Output == nil || got.Output.Key != out.Key {
		t.Errorf("output = %+v", got.Output)
	}
	if got.ErrorMessage != "" {
		t.Errorf("error message set on done job: %q", got.ErrorMessage)
	}
	if got.InputErr != nil {
		t.Errorf("InputErr = %v", got.InputErr)
	}

	// A finished job cannot be failed afterwards.
	if err := repo.MarkFailed(ctx, *ref, "late"); !errors.Is(err, kvstore.ErrConditionFailed) {
		t.Errorf("MarkFailed on done job error = %v", err)
	}
}

func TestJobRepository_MarkFailedTruncates(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	job, err := repo.Create(ctx, "u1", &domain.ExportInput{CurriculumID: "c1"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	ref := job.Ref()
	if ok, _ := repo.Claim(ctx, ref); !ok {
		t.Fatal("claim failed")
	}
	if err := repo.MarkFailed(ctx, ref, strings.Repeat("x", 800)); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	got, _ := repo.Get(ctx, "u1", job.JobID)
	if got.Status != domain.JobStatusFailed {
		t.Errorf("status = %s", got.Status)
	}
	if len(got.ErrorMessage) != domain.MaxErrorMessageLen {
		t.Errorf("error length = %d", len(got.ErrorMessage))
	}
	if got.Output != nil {
		t.Errorf("output set on failed job: %+v", got.Output)
	}
}

func TestJobRepository_PriorityAndOrder(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	first, _ := repo.Create(ctx, "u1", &domain.ExportInput{CurriculumID: "c1"})
	second, _ := repo.Create(ctx, "u2", &domain.ExportInput{CurriculumID: "c2"})

	ref, _ := repo.FindNextPending(ctx, domain.JobTypeChapter)
	if ref == nil || ref.JobID != first.JobID {
		t.Fatalf("oldest = %+v, want %s", ref, first.JobID)
	}
	repo.Claim(ctx, *ref)

	ref, _ = repo.FindNextPending(ctx, domain.JobTypeChapter)
	if ref == nil || ref.JobID != second.JobID {
		t.Fatalf("next = %+v, want %s", ref, second.JobID)
	}
}

func TestJobRepository_ConcurrentClaim(t *testing.T) {
	repo, store := newTestRepo(t)
	ctx := context.Background()

	job, _ := repo.Create(ctx, "u1", generationInput())
	ref := job.Ref()

	const workers = 20
	var (
		wins int32
		wg   sync.WaitGroup
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			ok, err := repo.Claim(ctx, ref)
			if err != nil {
				t.Errorf("Claim error: %v", err)
			}
			if ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if wins != 1 {
		t.Fatalf("wins = %d, want exactly 1", wins)
	}
	item, _ := store.Get(ctx, kvstore.Key{Owner: "u1", Entity: JobEntity(job.Type, job.JobID)})
	if item.Attr("status") != "running" {
		t.Errorf("status = %q", item.Attr("status"))
	}
}

func TestJobRepository_InvalidStoredInput(t *testing.T) {
	repo, store := newTestRepo(t)
	ctx := context.Background()

	store.Put(ctx, &kvstore.Item{
		Key: kvstore.Key{Owner: "u1", Entity: JobEntity(domain.JobTypeChapter, "bad")},
		Attrs: map[string]string{
			"jobId":  "bad",
			"type":   string(domain.JobTypeChapter),
			"status": "pending",
			"input":  `{"week":2}`,
		},
	})

	got, err := repo.Get(ctx, "u1", "bad")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !errors.Is(got.InputErr, domain.ErrInputInvalid) {
		t.Errorf("InputErr = %v, want ErrInputInvalid", got.InputErr)
	}
}

func TestJobRepository_GetMissing(t *testing.T) {
	repo, _ := newTestRepo(t)
	if _, err := repo.Get(context.Background(), "u1", "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestCurriculumRepository_RoundTrip(t *testing.T) {
	store := kvstore.NewMemoryStore()
	repo := NewCurriculumRepository(store)
	ctx := context.Background()

	rec := &domain.CurriculumRecord{
		OwnerID:      "u1",
		CurriculumID: "c1",
		Subject:      "Algebra I",
		Passion:      "Soccer",
		Likes:        []string{"goals"},
		Weeks:        []domain.WeekItem{{Week: 1, Title: "Kickoff"}},
		Fallback:     true,
		CreatedAt:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := repo.Save(ctx, rec); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := repo.Get(ctx, "u1", "c1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Subject != "Algebra I" || !got.Fallback || len(got.Weeks) != 1 || got.Likes[0] != "goals" {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if _, err := repo.Get(ctx, "u1", "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("missing error = %v", err)
	}
}
