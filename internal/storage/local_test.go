package storage

import (
	"context"
	"strings"
	"testing"
)

func TestLocalStorage_RoundTrip(t *testing.T) {
	ls, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}
	ctx := context.Background()

	path, err := ls.Put(ctx, "abc_规程.txt", strings.NewReader("内容"), "text/plain")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := ls.ReadFile(ctx, path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "内容" {
		t.Fatalf("ReadFile = %q", got)
	}

	if err := ls.Delete(ctx, path); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := ls.ReadFile(ctx, path); err == nil {
		t.Fatal("file still readable after delete")
	}
	if err := ls.Delete(ctx, path); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
}

func TestLocalStorage_RejectsEscapingPaths(t *testing.T) {
	ls, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}
	for _, p := range []string{"../secret", "a/../../secret", ""} {
		if _, err := ls.ReadFile(context.Background(), p); err == nil {
			t.Fatalf("ReadFile(%q) accepted", p)
		}
	}
}
