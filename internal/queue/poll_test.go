package queue

import (
	"context"
	"sync"
	"testing"

	"github.com/timmy/coursegen/internal/domain"
	"github.com/timmy/coursegen/internal/kvstore"
	"github.com/timmy/coursegen/internal/notify"
	"github.com/timmy/coursegen/internal/repository"
)

func newQueue(store kvstore.Store, n notify.Notifier) *PollQueue {
	return NewPollQueue(repository.NewJobRepository(store), n, Options{
		DownloadURL: func(key string) string { return "https://cdn.example.com/" + key },
	})
}

func genInput() *domain.GenerationInput {
	return &domain.GenerationInput{Subject: "Algebra I", Passion: "Soccer", AgeRange: "Grades 6–8"}
}

func TestPollQueue_PriorityDrainsCurriculumFirst(t *testing.T) {
	q := newQueue(kvstore.NewMemoryStore(), nil)
	ctx := context.Background()

	chapterID, err := q.Enqueue(ctx, "u1", &domain.ExportInput{CurriculumID: "c1"})
	if err != nil {
		t.Fatalf("Enqueue chapter: %v", err)
	}
	genID, err := q.Enqueue(ctx, "u1", genInput())
	if err != nil {
		t.Fatalf("Enqueue curriculum: %v", err)
	}

	first, err := q.ClaimNext(ctx)
	if err != nil || first == nil {
		t.Fatalf("ClaimNext = %v, %v", first, err)
	}
	if first.JobID != genID {
		t.Errorf("first claimed = %s, want curriculum job %s", first.JobID, genID)
	}
	if first.Status != domain.JobStatusRunning {
		t.Errorf("claimed status = %s", first.Status)
	}

	second, _ := q.ClaimNext(ctx)
	if second == nil || second.JobID != chapterID {
		t.Fatalf("second claimed = %+v, want %s", second, chapterID)
	}

	third, err := q.ClaimNext(ctx)
	if err != nil || third != nil {
		t.Errorf("empty queue ClaimNext = %+v, %v", third, err)
	}
}

// racingStore lets a rival claim the job between the scan and the claim.
type racingStore struct {
	kvstore.Store
	once  sync.Once
	rival func()
}

func (s *racingStore) ConditionalUpdate(ctx context.Context, key kvstore.Key, set, cond map[string]string) error {
	s.once.Do(s.rival)
	return s.Store.ConditionalUpdate(ctx, key, set, cond)
}

func TestPollQueue_RescansAfterLostRace(t *testing.T) {
	mem := kvstore.NewMemoryStore()
	seed := newQueue(mem, nil)
	ctx := context.Background()

	firstID, _ := seed.Enqueue(ctx, "u1", genInput())
	secondID, _ := seed.Enqueue(ctx, "u2", genInput())

	rival := newQueue(mem, nil)
	racing := &racingStore{Store: mem}
	racing.rival = func() {
		job, err := rival.ClaimNext(ctx)
		if err != nil || job == nil || job.JobID != firstID {
			t.Errorf("rival claim = %+v, %v", job, err)
		}
	}
	q := newQueue(racing, nil)

	job, err := q.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}
	if job == nil || job.JobID != secondID {
		t.Fatalf("claimed %+v, want %s after losing the race for %s", job, secondID, firstID)
	}
}

func TestPollQueue_CompleteFailAndStatus(t *testing.T) {
	q := newQueue(kvstore.NewMemoryStore(), nil)
	ctx := context.Background()

	doneID, _ := q.Enqueue(ctx, "u1", genInput())
	failID, _ := q.Enqueue(ctx, "u1", genInput())

	view, err := q.Status(ctx, "u1", doneID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if view.Status != domain.JobStatusPending || view.Display != "pending" {
		t.Errorf("pending view = %+v", view)
	}

	job, _ := q.ClaimNext(ctx)
	out := &domain.JobOutput{Bucket: "b", Key: "textbook/u1/j/curriculum16.json", Format: "json", Filename: "curriculum16.json"}
	if err := q.Complete(ctx, job, out); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	view, _ = q.Status(ctx, "u1", doneID)
	if view.Status != domain.JobStatusDone || view.Filename != "curriculum16.json" {
		t.Errorf("done view = %+v", view)
	}
	if view.DownloadURL != "https://cdn.example.com/textbook/u1/j/curriculum16.json" {
		t.Errorf("download url = %q", view.DownloadURL)
	}

	job, _ = q.ClaimNext(ctx)
	if job.JobID != failID {
		t.Fatalf("claimed %s, want %s", job.JobID, failID)
	}
	if err := q.Fail(ctx, job, "generation backend exploded"); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	view, _ = q.Status(ctx, "u1", failID)
	if view.Status != domain.JobStatusFailed || view.Display != "error" || view.Error == "" {
		t.Errorf("failed view = %+v", view)
	}
	if view.DownloadURL != "" {
		t.Errorf("failed job has download url %q", view.DownloadURL)
	}
}

func TestPollQueue_EnqueuePublishesHint(t *testing.T) {
	local := notify.NewLocal()
	q := newQueue(kvstore.NewMemoryStore(), local)

	if _, err := q.Enqueue(context.Background(), "u1", genInput()); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	select {
	case <-local.Wakeups():
	default:
		t.Error("expected a wake-up hint after Enqueue")
	}
}

func TestPollQueue_EnqueueRejectsInvalidInput(t *testing.T) {
	q := newQueue(kvstore.NewMemoryStore(), nil)
	_, err := q.Enqueue(context.Background(), "u1", &domain.GenerationInput{Subject: "Algebra I"})
	if err == nil {
		t.Fatal("expected validation error")
	}
}
