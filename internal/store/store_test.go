package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"wavedaq/internal/store"
	"wavedaq/internal/testsupport"
)

func newSession(id string) store.Session {
	return store.Session{
		ID:         id,
		Label:      "bench",
		State:      "starting",
		SerialPort: "/dev/ttyUSB0",
		SampleRate: 7812,
		Channels:   3,
		OutputDir:  "/tmp/recordings",
		StartedAt:  time.Now(),
	}
}

func TestSessionRoundTrip(t *testing.T) {
	st := testsupport.MustOpenStore(t)
	ctx := context.Background()

	if err := st.CreateSession(ctx, newSession("s1")); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	finished := store.Session{
		ID:         "s1",
		State:      "stopped",
		StoppedAt:  time.Now(),
		Produced:   1000,
		Recorded:   990,
		Dropped:    10,
		ReadErrors: 2,
		Degraded:   true,
	}
	if err := st.FinishSession(ctx, finished); err != nil {
		t.Fatalf("FinishSession failed: %v", err)
	}

	got, err := st.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.State != "stopped" || got.Recorded != 990 || got.Dropped != 10 || !got.Degraded {
		t.Fatalf("unexpected session: %+v", got)
	}
	if got.Label != "bench" || got.SampleRate != 7812 {
		t.Fatalf("creation fields lost on finish: %+v", got)
	}
	if got.StoppedAt.IsZero() {
		t.Fatal("expected stopped timestamp")
	}
}

func TestFinishMissingSession(t *testing.T) {
	st := testsupport.MustOpenStore(t)
	err := st.FinishSession(context.Background(), store.Session{ID: "absent", State: "stopped", StoppedAt: time.Now()})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFileLifecycle(t *testing.T) {
	st := testsupport.MustOpenStore(t)
	ctx := context.Background()

	if err := st.CreateSession(ctx, newSession("s2")); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	id1, err := st.AddFile(ctx, "s2", 1, "/tmp/recordings/a_001.csv")
	if err != nil {
		t.Fatalf("AddFile failed: %v", err)
	}
	if _, err := st.AddFile(ctx, "s2", 2, "/tmp/recordings/a_002.csv"); err != nil {
		t.Fatalf("AddFile seq 2 failed: %v", err)
	}
	if err := st.CloseFile(ctx, "s2", 1, 117180); err != nil {
		t.Fatalf("CloseFile failed: %v", err)
	}

	files, err := st.ListFiles(ctx, "s2")
	if err != nil {
		t.Fatalf("ListFiles failed: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(files))
	}
	if files[0].Seq != 1 || files[0].RowCount != 117180 || files[0].ClosedAt.IsZero() {
		t.Fatalf("unexpected sealed file: %+v", files[0])
	}
	if files[1].Seq != 2 || !files[1].ClosedAt.IsZero() {
		t.Fatalf("expected open second file: %+v", files[1])
	}

	got, err := st.GetFile(ctx, id1)
	if err != nil {
		t.Fatalf("GetFile failed: %v", err)
	}
	if got.SessionID != "s2" || got.Path != "/tmp/recordings/a_001.csv" {
		t.Fatalf("unexpected file: %+v", got)
	}

	if _, err := st.GetFile(ctx, 9999); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListSessionsNewestFirst(t *testing.T) {
	st := testsupport.MustOpenStore(t)
	ctx := context.Background()

	older := newSession("old")
	older.StartedAt = time.Now().Add(-time.Hour)
	newer := newSession("new")

	if err := st.CreateSession(ctx, older); err != nil {
		t.Fatalf("create older: %v", err)
	}
	if err := st.CreateSession(ctx, newer); err != nil {
		t.Fatalf("create newer: %v", err)
	}

	sessions, err := st.ListSessions(ctx, 0)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 2 || sessions[0].ID != "new" || sessions[1].ID != "old" {
		t.Fatalf("unexpected ordering: %+v", sessions)
	}

	limited, err := st.ListSessions(ctx, 1)
	if err != nil {
		t.Fatalf("ListSessions limited failed: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != "new" {
		t.Fatalf("unexpected limited result: %+v", limited)
	}
}

func TestDuplicateSequenceRejected(t *testing.T) {
	st := testsupport.MustOpenStore(t)
	ctx := context.Background()

	if err := st.CreateSession(ctx, newSession("s3")); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if _, err := st.AddFile(ctx, "s3", 1, "/tmp/a.csv"); err != nil {
		t.Fatalf("AddFile failed: %v", err)
	}
	if _, err := st.AddFile(ctx, "s3", 1, "/tmp/b.csv"); err == nil {
		t.Fatal("expected unique constraint violation")
	}
}
