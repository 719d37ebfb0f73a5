package attempt

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-mock/internal/kv"
	"github.com/stemsi/exstem-mock/internal/model"
)

// flakyKV wraps a MemoryStore and fails Set for keys containing failOn.
type flakyKV struct {
	*kv.MemoryStore
	mu     sync.Mutex
	failOn string
}

func (f *flakyKV) Set(ctx context.Context, key, value string) error {
	f.mu.Lock()
	failOn := f.failOn
	f.mu.Unlock()
	if failOn != "" && strings.Contains(key, failOn) {
		return kv.ErrQuotaExceeded
	}
	return f.MemoryStore.Set(ctx, key, value)
}

func (f *flakyKV) fail(substr string) {
	f.mu.Lock()
	f.failOn = substr
	f.mu.Unlock()
}

func intp(v int) *int { return &v }

func draft(examType string, pct float64) model.AttemptDraft {
	return model.AttemptDraft{
		ExamType: examType,
		Variant:  "full",
		QuestionSet: model.QuestionSet{Sections: []model.Section{{
			ID:               "s1",
			DisplayName:      "Section 1",
			TimeLimitSeconds: 60,
			Questions: []model.Question{
				{ID: "q1", SectionID: "s1", Prompt: "1+1", Options: []string{"2", "3"}},
			},
		}}},
		Answers: model.AnswerVector{intp(0)},
		Result:  model.ScoreResult{Correct: 1, Percentage: pct},
	}
}

func newTestStore(t *testing.T, max int) (*Store, *flakyKV) {
	t.Helper()
	backing := &flakyKV{MemoryStore: kv.NewMemoryStore(0)}
	s := NewStore(backing, "test", max, zerolog.Nop())
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	n := 0
	s.now = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Minute)
	}
	return s, backing
}

func TestSaveAndList(t *testing.T) {
	s, _ := newTestStore(t, 10)
	ctx := context.Background()

	first, err := s.Save(ctx, draft("jee-main", 10))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	second, err := s.Save(ctx, draft("neet", 20))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if first.ID == "" || first.ID == second.ID {
		t.Fatalf("ids not unique: %q %q", first.ID, second.ID)
	}

	all, err := s.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(all) != 2 || all[0].ID != second.ID || all[1].ID != first.ID {
		t.Fatalf("ListAll order = %v, want most recent first", ids(all))
	}
	if !all[0].CreatedAt.After(all[1].CreatedAt) {
		t.Fatal("createdAt not descending")
	}
}

func TestSaveTrimsOldest(t *testing.T) {
	s, backing := newTestStore(t, 3)
	ctx := context.Background()

	var saved []string
	for i := 0; i < 5; i++ {
		a, err := s.Save(ctx, draft("cat", float64(i)))
		if err != nil {
			t.Fatalf("Save %d: %v", i, err)
		}
		saved = append(saved, a.ID)
	}

	all, _ := s.ListAll(ctx)
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3", len(all))
	}
	want := []string{saved[4], saved[3], saved[2]}
	for i, a := range all {
		if a.ID != want[i] {
			t.Fatalf("ListAll = %v, want %v", ids(all), want)
		}
	}
	if _, err := s.Get(ctx, saved[0]); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(trimmed) err = %v, want ErrNotFound", err)
	}
	// index + three bodies
	if backing.Len() != 4 {
		t.Fatalf("backing keys = %d, want 4", backing.Len())
	}
}

func TestFailedSaveKeepsPriorAttempts(t *testing.T) {
	tests := []struct {
		name   string
		failOn string
	}{
		{"body write fails", ":attempt:"},
		{"index write fails", ":attempts:index"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, backing := newTestStore(t, 10)
			ctx := context.Background()

			prior, err := s.Save(ctx, draft("neet", 50))
			if err != nil {
				t.Fatalf("Save: %v", err)
			}
			keysBefore := backing.Len()

			backing.fail(tt.failOn)
			_, err = s.Save(ctx, draft("neet", 60))
			if !errors.Is(err, ErrPersistence) {
				t.Fatalf("Save err = %v, want ErrPersistence", err)
			}
			if !errors.Is(err, kv.ErrQuotaExceeded) {
				t.Fatalf("Save err = %v, want wrapped ErrQuotaExceeded", err)
			}

			all, err := s.ListAll(ctx)
			if err != nil {
				t.Fatalf("ListAll: %v", err)
			}
			if len(all) != 1 || all[0].ID != prior.ID {
				t.Fatalf("ListAll = %v, want only %s", ids(all), prior.ID)
			}
			if backing.Len() != keysBefore {
				t.Fatalf("backing keys = %d, want %d (orphan left behind)", backing.Len(), keysBefore)
			}

			backing.fail("")
			if _, err := s.Save(ctx, draft("neet", 60)); err != nil {
				t.Fatalf("retry Save: %v", err)
			}
		})
	}
}

func TestGetAndDelete(t *testing.T) {
	s, _ := newTestStore(t, 10)
	ctx := context.Background()

	a, _ := s.Save(ctx, draft("jee-main", 30))
	b, _ := s.Save(ctx, draft("jee-main", 40))

	got, err := s.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Answers[0] == nil || *got.Answers[0] != 0 {
		t.Fatalf("answers not round-tripped: %v", got.Answers)
	}

	if err := s.Delete(ctx, a.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, a.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after delete err = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, a.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Delete err = %v, want ErrNotFound", err)
	}
	all, _ := s.ListAll(ctx)
	if len(all) != 1 || all[0].ID != b.ID {
		t.Fatalf("ListAll = %v, want [%s]", ids(all), b.ID)
	}
}

func TestEmptyStore(t *testing.T) {
	s, _ := newTestStore(t, 10)
	all, err := s.ListAll(context.Background())
	if err != nil || len(all) != 0 {
		t.Fatalf("ListAll = %v, %v; want empty", all, err)
	}
	if _, err := s.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get err = %v, want ErrNotFound", err)
	}
}

func TestConcurrentSaves(t *testing.T) {
	s, _ := newTestStore(t, 100)
	ctx := context.Background()
	s.now = time.Now

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Save(ctx, draft("cat", 1)); err != nil {
				t.Errorf("Save: %v", err)
			}
		}()
	}
	wg.Wait()

	all, _ := s.ListAll(ctx)
	if len(all) != 20 {
		t.Fatalf("len = %d, want 20 (lost update)", len(all))
	}
}

func TestStats(t *testing.T) {
	s, _ := newTestStore(t, 10)
	ctx := context.Background()
	for _, p := range []float64{10, 20, 45} {
		d := draft("neet", p)
		d.Result.EstimatedPercentile = p + 50
		s.Save(ctx, d)
	}
	s.Save(ctx, draft("cat", -5))

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if len(stats) != 2 || stats[0].ExamType != "cat" || stats[1].ExamType != "neet" {
		t.Fatalf("stats = %+v", stats)
	}
	neet := stats[1]
	if neet.Attempts != 3 || neet.BestPercentage != 45 || neet.AveragePercentage != 25 || neet.BestPercentile != 95 {
		t.Fatalf("neet stats = %+v", neet)
	}
	if stats[0].BestPercentage != -5 {
		t.Fatalf("cat best = %v, want -5", stats[0].BestPercentage)
	}
}

func ids(all []model.Attempt) []string {
	out := make([]string, len(all))
	for i, a := range all {
		out[i] = a.ID
	}
	return out
}
