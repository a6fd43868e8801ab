package archive

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func TestLocalFS_ImplementsStorage(t *testing.T) {
	var _ Storage = (*LocalFS)(nil)
}

func TestLocalFS_WriteRead(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewLocalFS(dir)
	if err != nil {
		t.Fatalf("NewLocalFS: %v", err)
	}

	ctx := context.Background()
	data := []byte("Date,Price\n2024-01-01,10\n")

	if err := fs.Write(ctx, "manual/INFY.csv", data); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := fs.Read(ctx, "manual/INFY.csv")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	if string(got) != string(data) {
		t.Errorf("got %q, want %q", got, data)
	}
}

func TestLocalFS_ReadMissing(t *testing.T) {
	fs, _ := NewLocalFS(t.TempDir())
	_, err := fs.Read(context.Background(), "missing.csv")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLocalFS_AbsolutePath(t *testing.T) {
	outside := t.TempDir()
	fs, _ := NewLocalFS(t.TempDir())
	ctx := context.Background()

	abs := filepath.Join(outside, "tx.csv")
	if err := fs.Write(ctx, abs, []byte("x")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := fs.Read(ctx, abs)
	if err != nil || string(got) != "x" {
		t.Errorf("Read(%s) = %q, %v", abs, got, err)
	}
}

func TestLocalFS_RejectsEscape(t *testing.T) {
	fs, _ := NewLocalFS(t.TempDir())
	if err := fs.Write(context.Background(), "../escape.csv", []byte("x")); err == nil {
		t.Error("expected error for path outside base")
	}
}

func TestLocalFS_Exists(t *testing.T) {
	dir := t.TempDir()
	fs, _ := NewLocalFS(dir)
	ctx := context.Background()

	exists, _ := fs.Exists(ctx, "nonexistent.txt")
	if exists {
		t.Error("expected false for nonexistent file")
	}

	fs.Write(ctx, "exists.txt", []byte("data"))
	exists, _ = fs.Exists(ctx, "exists.txt")
	if !exists {
		t.Error("expected true for existing file")
	}
}

func TestOpen(t *testing.T) {
	s, err := Open(Config{Type: "localfs", Path: t.TempDir()})
	if err != nil {
		t.Fatalf("Open localfs: %v", err)
	}
	if _, ok := s.(*LocalFS); !ok {
		t.Errorf("expected *LocalFS, got %T", s)
	}

	s, err = Open(Config{Type: "s3", S3: S3Config{Bucket: "reports", Region: "us-east-1"}})
	if err != nil {
		t.Fatalf("Open s3: %v", err)
	}
	if _, ok := s.(*S3Storage); !ok {
		t.Errorf("expected *S3Storage, got %T", s)
	}

	if _, err := Open(Config{Type: "s3"}); err == nil {
		t.Error("expected error for s3 without bucket")
	}
	if _, err := Open(Config{Type: "ftp"}); err == nil {
		t.Error("expected error for unknown type")
	}
}
