package kvstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/timmy/coursegen/internal/config"
)

type storeFactory func(t *testing.T) Store

func backends() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(t *testing.T) Store {
			return NewMemoryStore()
		},
		"sqlite": func(t *testing.T) Store {
			db, err := OpenSQL(&config.SQLConfig{Driver: "sqlite", DSN: ":memory:", MaxOpenConns: 1, LogLevel: "silent"})
			if err != nil {
				t.Fatalf("OpenSQL: %v", err)
			}
			s, err := NewSQLStore(db, true)
			if err != nil {
				t.Fatalf("NewSQLStore: %v", err)
			}
			t.Cleanup(func() { s.Close() })
			return s
		},
		"redis": func(t *testing.T) Store {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			s := NewRedisStoreWithClient(client, "test")
			t.Cleanup(func() { s.Close() })
			return s
		},
	}
}

func forEachBackend(t *testing.T, fn func(t *testing.T, s Store)) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			fn(t, factory(t))
		})
	}
}

func pendingItem(owner, id, sk string) *Item {
	return &Item{
		Key: Key{Owner: owner, Entity: "curriculumJob#" + id},
		Attrs: map[string]string{
			"status":    "pending",
			AttrIndexPK: "JOB#PENDING",
			AttrIndexSK: sk,
		},
	}
}

func TestStore_GetPut(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		if _, err := s.Get(ctx, Key{Owner: "u1", Entity: "curriculumJob#missing"}); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Get(missing) error = %v, want ErrNotFound", err)
		}

		item := pendingItem("u1", "a", "gen#2024-01-01#a")
		item.Attrs["input"] = `{"subject":"Algebra I"}`
		if err := s.Put(ctx, item); err != nil {
			t.Fatalf("Put: %v", err)
		}

		got, err := s.Get(ctx, item.Key)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.Attr("input") != `{"subject":"Algebra I"}` {
			t.Errorf("input = %q", got.Attr("input"))
		}
		if got.Owner != "u1" || got.Entity != "curriculumJob#a" {
			t.Errorf("key = %+v", got.Key)
		}

		// Put replaces attributes wholesale.
		replaced := pendingItem("u1", "a", "gen#2024-01-01#a")
		if err := s.Put(ctx, replaced); err != nil {
			t.Fatalf("Put replace: %v", err)
		}
		got, _ = s.Get(ctx, item.Key)
		if got.Attr("input") != "" {
			t.Errorf("input survived replace: %q", got.Attr("input"))
		}
	})
}

func TestStore_ConditionalUpdate(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		item := pendingItem("u1", "a", "gen#2024-01-01#a")
		if err := s.Put(ctx, item); err != nil {
			t.Fatalf("Put: %v", err)
		}

		claim := map[string]string{"status": "running", AttrIndexPK: "JOB#RUNNING"}
		guard := map[string]string{"status": "pending", AttrIndexPK: "JOB#PENDING"}

		if err := s.ConditionalUpdate(ctx, item.Key, claim, guard); err != nil {
			t.Fatalf("first update: %v", err)
		}
		if err := s.ConditionalUpdate(ctx, item.Key, claim, guard); !errors.Is(err, ErrConditionFailed) {
			t.Fatalf("second update error = %v, want ErrConditionFailed", err)
		}

		missing := Key{Owner: "u1", Entity: "curriculumJob#none"}
		if err := s.ConditionalUpdate(ctx, missing, claim, guard); !errors.Is(err, ErrConditionFailed) {
			t.Fatalf("update on missing item error = %v, want ErrConditionFailed", err)
		}

		// Empty value removes the attribute.
		err := s.ConditionalUpdate(ctx, item.Key,
			map[string]string{"status": "failed", "errorMessage": "boom"},
			map[string]string{"status": "running"})
		if err != nil {
			t.Fatalf("fail update: %v", err)
		}
		err = s.ConditionalUpdate(ctx, item.Key,
			map[string]string{"errorMessage": ""},
			map[string]string{"status": "failed"})
		if err != nil {
			t.Fatalf("remove update: %v", err)
		}
		got, _ := s.Get(ctx, item.Key)
		if _, ok := got.Attrs["errorMessage"]; ok {
			t.Errorf("errorMessage not removed: %+v", got.Attrs)
		}
	})
}

func TestStore_QueryOrderAndPartitionMove(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		items := []*Item{
			pendingItem("u1", "c", "gen#2024-01-03#c"),
			pendingItem("u2", "a", "gen#2024-01-01#a"),
			pendingItem("u1", "b", "gen#2024-01-02#b"),
			pendingItem("u1", "x", "export#2024-01-01#x"),
		}
		for _, it := range items {
			if err := s.Put(ctx, it); err != nil {
				t.Fatalf("Put: %v", err)
			}
		}

		got, err := s.Query(ctx, QueryInput{Partition: "JOB#PENDING", SortPrefix: "gen#", Limit: 10, Ascending: true})
		if err != nil {
			t.Fatalf("Query: %v", err)
		}
		want := []string{"curriculumJob#a", "curriculumJob#b", "curriculumJob#c"}
		if len(got) != len(want) {
			t.Fatalf("got %d items, want %d", len(got), len(want))
		}
		for i, w := range want {
			if got[i].Entity != w {
				t.Errorf("item %d = %s, want %s", i, got[i].Entity, w)
			}
		}

		desc, err := s.Query(ctx, QueryInput{Partition: "JOB#PENDING", SortPrefix: "gen#", Limit: 1})
		if err != nil {
			t.Fatalf("Query desc: %v", err)
		}
		if len(desc) != 1 || desc[0].Entity != "curriculumJob#c" {
			t.Errorf("descending first = %+v, want job#c", desc)
		}

		// Moving an item out of the partition removes it from the scan.
		err = s.ConditionalUpdate(ctx, items[1].Key,
			map[string]string{"status": "running", AttrIndexPK: "JOB#RUNNING"},
			map[string]string{"status": "pending"})
		if err != nil {
			t.Fatalf("ConditionalUpdate: %v", err)
		}
		got, _ = s.Query(ctx, QueryInput{Partition: "JOB#PENDING", SortPrefix: "gen#", Limit: 1, Ascending: true})
		if len(got) != 1 || got[0].Entity != "curriculumJob#b" {
			t.Errorf("after move first = %+v, want job#b", got)
		}
		running, _ := s.Query(ctx, QueryInput{Partition: "JOB#RUNNING", Ascending: true})
		if len(running) != 1 || running[0].Entity != "curriculumJob#a" {
			t.Errorf("running partition = %+v, want job#a", running)
		}
	})
}

func TestStore_ConcurrentConditionalUpdate(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		item := pendingItem("u1", "race", "gen#2024-01-01#race")
		if err := s.Put(ctx, item); err != nil {
			t.Fatalf("Put: %v", err)
		}

		const workers = 16
		var (
			wins   int32
			losses int32
			wg     sync.WaitGroup
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				err := s.ConditionalUpdate(ctx, item.Key,
					map[string]string{"status": "running", AttrIndexPK: "JOB#RUNNING", "worker": fmt.Sprint(i)},
					map[string]string{"status": "pending", AttrIndexPK: "JOB#PENDING"})
				switch {
				case err == nil:
					atomic.AddInt32(&wins, 1)
				case errors.Is(err, ErrConditionFailed):
					atomic.AddInt32(&losses, 1)
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}(i)
		}
		wg.Wait()

		if wins != 1 {
			t.Errorf("wins = %d, want 1", wins)
		}
		if losses != workers-1 {
			t.Errorf("losses = %d, want %d", losses, workers-1)
		}
	})
}
