package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFileContract(t *testing.T) {
	kv, err := NewFile(t.TempDir())
	if err != nil {
		t.Fatalf("NewFile() error = %v", err)
	}
	runContractTests(t, kv)
}

func TestNewFileCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	if _, err := NewFile(dir); err != nil {
		t.Fatalf("NewFile() error = %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if !info.IsDir() {
		t.Errorf("%q is not a directory", dir)
	}
}

func TestFileSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	kv, err := NewFile(dir)
	if err != nil {
		t.Fatalf("NewFile() error = %v", err)
	}
	want := []byte(`{"persisted":true}`)
	if err := kv.Set(ctx, "durable_key", want); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	// A fresh store over the same directory sees the value.
	reopened, err := NewFile(dir)
	if err != nil {
		t.Fatalf("NewFile() error = %v", err)
	}
	got, err := reopened.Get(ctx, "durable_key")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("Get() = %q, want %q", got, want)
	}
}

func TestFileLeavesNoTempFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	kv, err := NewFile(dir)
	if err != nil {
		t.Fatalf("NewFile() error = %v", err)
	}
	for i := 0; i < 10; i++ {
		if err := kv.Set(ctx, "key", []byte("value")); err != nil {
			t.Fatalf("Set() #%d error = %v", i, err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	for _, e := range entries {
		switch e.Name() {
		case "key", lockFileName:
		default:
			t.Errorf("unexpected leftover file %q", e.Name())
		}
	}
}
