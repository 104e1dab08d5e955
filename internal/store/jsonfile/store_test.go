package jsonfile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/djlord-it/easy-etl/internal/domain"
	"github.com/djlord-it/easy-etl/internal/store"
	"github.com/djlord-it/easy-etl/internal/testutil"
)

func testJob(name string) domain.Job {
	return domain.Job{
		Name:           name,
		CronExpression: "0 9 * * *",
		Source: domain.Source{
			Type:     domain.SourceTypeFile,
			Location: "/data/in.csv",
			Format:   domain.FileFormatCSV,
		},
		Transform:  "output = input",
		Recipients: []string{"ops@example.com"},
		CreatedAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "jobs.json"))
}

func TestCreateGet_RoundTrip(t *testing.T) {
	ctx := testutil.TestContext(t)
	s := newTestStore(t)

	want := testJob("daily-report")
	if err := s.Create(ctx, want); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.Get(ctx, "daily-report")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != want.Name || got.CronExpression != want.CronExpression {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	if got.Source != want.Source {
		t.Fatalf("source: got %+v, want %+v", got.Source, want.Source)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) {
		t.Fatalf("created_at: got %v, want %v", got.CreatedAt, want.CreatedAt)
	}
	if got.LastRun != nil {
		t.Fatalf("last_run: got %v, want nil", got.LastRun)
	}
}

func TestCreate_Duplicate_ErrExists(t *testing.T) {
	ctx := testutil.TestContext(t)
	s := newTestStore(t)

	if err := s.Create(ctx, testJob("dup")); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := s.Create(ctx, testJob("dup"))
	if !errors.Is(err, store.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
}

func TestGet_Missing_ErrNotFound(t *testing.T) {
	ctx := testutil.TestContext(t)
	s := newTestStore(t)

	_, err := s.Get(ctx, "ghost")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdate_ReplacesDefinition(t *testing.T) {
	ctx := testutil.TestContext(t)
	s := newTestStore(t)

	job := testJob("mutable")
	if err := s.Create(ctx, job); err != nil {
		t.Fatalf("create: %v", err)
	}

	job.CronExpression = "*/10 * * * *"
	job.Recipients = []string{"new@example.com"}
	if err := s.Update(ctx, job); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := s.Get(ctx, "mutable")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.CronExpression != "*/10 * * * *" {
		t.Fatalf("cron: got %q", got.CronExpression)
	}
	if len(got.Recipients) != 1 || got.Recipients[0] != "new@example.com" {
		t.Fatalf("recipients: got %v", got.Recipients)
	}
}

func TestUpdate_Missing_ErrNotFound(t *testing.T) {
	ctx := testutil.TestContext(t)
	s := newTestStore(t)

	err := s.Update(ctx, testJob("ghost"))
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSetLastRun_Persisted(t *testing.T) {
	ctx := testutil.TestContext(t)
	s := newTestStore(t)

	if err := s.Create(ctx, testJob("tracked")); err != nil {
		t.Fatalf("create: %v", err)
	}

	ts := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	if err := s.SetLastRun(ctx, "tracked", ts); err != nil {
		t.Fatalf("set last run: %v", err)
	}

	got, err := s.Get(ctx, "tracked")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.LastRun == nil || !got.LastRun.Equal(ts) {
		t.Fatalf("last_run: got %v, want %v", got.LastRun, ts)
	}
}

func TestSetLastRun_Missing_ErrNotFound(t *testing.T) {
	ctx := testutil.TestContext(t)
	s := newTestStore(t)

	err := s.SetLastRun(ctx, "ghost", time.Now())
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestList_SortedByName(t *testing.T) {
	ctx := testutil.TestContext(t)
	s := newTestStore(t)

	for _, name := range []string{"zulu", "alpha", "mike"} {
		if err := s.Create(ctx, testJob(name)); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}

	jobs, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"alpha", "mike", "zulu"}
	if len(jobs) != len(want) {
		t.Fatalf("len: got %d, want %d", len(jobs), len(want))
	}
	for i, name := range want {
		if jobs[i].Name != name {
			t.Fatalf("jobs[%d]: got %q, want %q", i, jobs[i].Name, name)
		}
	}
}

func TestList_MissingFile_Empty(t *testing.T) {
	ctx := testutil.TestContext(t)
	s := newTestStore(t)

	jobs, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("expected empty, got %d jobs", len(jobs))
	}
}

func TestDelete_RemovesJob(t *testing.T) {
	ctx := testutil.TestContext(t)
	s := newTestStore(t)

	if err := s.Create(ctx, testJob("doomed")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Delete(ctx, "doomed"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, "doomed"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestDelete_Missing_ErrNotFound(t *testing.T) {
	ctx := testutil.TestContext(t)
	s := newTestStore(t)

	err := s.Delete(ctx, "ghost")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestWrite_NoTempFileLeftBehind(t *testing.T) {
	ctx := testutil.TestContext(t)
	dir := t.TempDir()
	s := New(filepath.Join(dir, "jobs.json"))

	if err := s.Create(ctx, testJob("tidy")); err != nil {
		t.Fatalf("create: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "jobs.json" {
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name()
		}
		t.Fatalf("expected only jobs.json, got %v", names)
	}
}
