package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestFSStoreRoundTrip(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}
	ctx := context.Background()
	key := "owner-1/ticket-1/1700000000000_0_abc.png"

	if err := store.Put(ctx, key, strings.NewReader("payload"), "image/png"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	rc, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "payload" {
		t.Errorf("got %q, want payload", data)
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, key); !errors.Is(err, ErrBlobNotFound) {
		t.Errorf("Get after delete: got %v, want ErrBlobNotFound", err)
	}
	if err := store.Delete(ctx, key); !errors.Is(err, ErrBlobNotFound) {
		t.Errorf("second Delete: got %v, want ErrBlobNotFound", err)
	}
}

func TestFSStoreRejectsTraversal(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}
	for _, key := range []string{"../escape", "a/../../escape", ".."} {
		if err := store.Put(context.Background(), key, strings.NewReader("x"), ""); err == nil {
			t.Errorf("Put(%q) succeeded, want error", key)
		}
	}
}

func TestMemoryStoreFailures(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	boom := errors.New("boom")

	store.FailPutsNamed("_1_x.pdf", boom)
	if err := store.Put(ctx, "a/b/1_0_x.pdf", strings.NewReader("ok"), ""); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Put(ctx, "a/b/1_1_x.pdf", strings.NewReader("no"), ""); !errors.Is(err, boom) {
		t.Fatalf("Put named failure: got %v", err)
	}

	store.FailDeletes(boom)
	if err := store.Delete(ctx, "a/b/1_0_x.pdf"); !errors.Is(err, boom) {
		t.Fatalf("Delete: got %v, want boom", err)
	}
	if !store.Has("a/b/1_0_x.pdf") {
		t.Fatal("blob removed despite failure")
	}
}
