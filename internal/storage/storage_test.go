package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/timmy/coursegen/internal/config"
	"github.com/timmy/coursegen/internal/domain"
)

func TestDetectStorageType(t *testing.T) {
	tests := []struct {
		endpoint string
		want     StorageType
	}{
		{endpoint: "", want: StorageTypeMemory},
		{endpoint: "https://abc.r2.cloudflarestorage.com", want: StorageTypeR2},
		{endpoint: "s3.us-west-2.amazonaws.com", want: StorageTypeS3},
		{endpoint: "localhost:9000", want: StorageTypeS3Compatible},
	}
	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			if got := detectStorageType(tt.endpoint); got != tt.want {
				t.Errorf("detectStorageType(%q) = %q, want %q", tt.endpoint, got, tt.want)
			}
		})
	}
}

func TestNormalizeEndpoint(t *testing.T) {
	tests := map[string]string{
		"https://minio.local:9000/":       "minio.local:9000",
		"http://localhost:9000/bucket/x": "localhost:9000",
		"s3.amazonaws.com":               "s3.amazonaws.com",
	}
	for in, want := range tests {
		if got := normalizeEndpoint(in); got != want {
			t.Errorf("normalizeEndpoint(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewUnknownType(t *testing.T) {
	if _, err := New(&config.StorageConfig{Type: "ftp"}); err == nil {
		t.Fatal("New(ftp) expected error")
	}
}

func TestMemoryStorage(t *testing.T) {
	ctx := context.Background()
	s, err := New(&config.StorageConfig{Type: "memory", PublicURL: "https://cdn.example.com/"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	data := []byte("# Week 1")
	if err := s.Upload(ctx, "textbook/a/b.md", bytes.NewReader(data), int64(len(data)), "text/markdown"); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	ok, err := s.Exists(ctx, "textbook/a/b.md")
	if err != nil || !ok {
		t.Fatalf("Exists() = %v, %v; want true", ok, err)
	}

	rc, err := s.Download(ctx, "textbook/a/b.md")
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	got, _ := io.ReadAll(rc)
	rc.Close()
	if !bytes.Equal(got, data) {
		t.Errorf("Download() = %q, want %q", got, data)
	}

	if url := s.GetURL("textbook/a/b.md"); url != "https://cdn.example.com/textbook/a/b.md" {
		t.Errorf("GetURL() = %q", url)
	}
	if url := NewMemoryStorage("").GetURL("textbook/a/b.md"); url != "" {
		t.Errorf("GetURL() without public prefix = %q, want empty", url)
	}

	if _, err := s.Download(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Download(missing) error = %v, want ErrNotFound", err)
	}

	if err := s.Upload(ctx, "short", bytes.NewReader(data), 99, "text/plain"); !errors.Is(err, domain.ErrStorageFailure) {
		t.Errorf("Upload(size mismatch) error = %v, want ErrStorageFailure", err)
	}
}

func TestS3GetURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  S3Config
		want string
	}{
		{
			name: "aws without public url",
			cfg:  S3Config{Type: StorageTypeS3, Bucket: "b", Region: "us-east-1", AccessKey: "k", SecretKey: "s"},
			want: "",
		},
		{
			name: "endpoint derives public url",
			cfg:  S3Config{Type: StorageTypeS3Compatible, Endpoint: "https://s3.example.com", UseSSL: true, Bucket: "b", Region: "auto", AccessKey: "k", SecretKey: "s"},
			want: "https://s3.example.com/b/textbook/x.md",
		},
		{
			name: "explicit public url",
			cfg:  S3Config{Type: StorageTypeR2, Endpoint: "acct.r2.cloudflarestorage.com", Bucket: "b", Region: "auto", AccessKey: "k", SecretKey: "s", PublicURL: "https://cdn.example.com/"},
			want: "https://cdn.example.com/textbook/x.md",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewS3Storage(&tt.cfg)
			if err != nil {
				t.Fatalf("NewS3Storage() error = %v", err)
			}
			if got := s.GetURL("textbook/x.md"); got != tt.want {
				t.Errorf("GetURL() = %q, want %q", got, tt.want)
			}
		})
	}
}
