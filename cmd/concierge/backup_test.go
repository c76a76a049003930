package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFormatSize(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 bytes"},
		{512, "512 bytes"},
		{1023, "1023 bytes"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1048576, "1.0 MB"},
		{1073741824, "1.0 GB"},
		{1610612736, "1.5 GB"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got := formatSize(tt.bytes)
			if got != tt.want {
				t.Errorf("formatSize(%d) = %q, want %q", tt.bytes, got, tt.want)
			}
		})
	}
}

func TestSafeJoin(t *testing.T) {
	dir := filepath.Join(string(os.PathSeparator), "restore", "data")

	tests := []struct {
		name    string
		entry   string
		wantErr bool
	}{
		{"plain file", "concierge.db", false},
		{"nested file", "nats/jetstream/stream.dat", false},
		{"directory entry", "nats/", false},
		{"leading dot-slash", "./concierge.db", false},
		{"leading parent trimmed", "../concierge.db", false},
		{"nested escape", "nats/../../outside.txt", true},
		{"empty name", "", true},
		{"dots only", "..", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := safeJoin(dir, tt.entry)
			if tt.wantErr {
				if err == nil {
					t.Errorf("safeJoin(%q, %q) = %q, want error", dir, tt.entry, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("safeJoin(%q, %q): %v", dir, tt.entry, err)
			}
			if !filepath.IsAbs(got) {
				t.Errorf("expected absolute target, got %q", got)
			}
		})
	}
}

func TestBackupRestoreRoundTrip(t *testing.T) {
	src := t.TempDir()
	files := map[string]string{
		"concierge.db":                "sqlite-bytes",
		"nats/jetstream/stream.dat":   "stream-bytes",
		"nats/jetstream/metadata.dat": "meta",
	}
	for name, content := range files {
		path := filepath.Join(src, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write file: %v", err)
		}
	}

	archive := filepath.Join(t.TempDir(), "backup.tar.zst")
	if err := runBackup([]string{"-f", archive, "-data", src}); err != nil {
		t.Fatalf("backup: %v", err)
	}
	if info, err := os.Stat(archive); err != nil || info.Size() == 0 {
		t.Fatalf("archive not written: %v", err)
	}

	dst := t.TempDir()
	if err := runRestore([]string{"-f", archive, "-data", dst}); err != nil {
		t.Fatalf("restore: %v", err)
	}

	for name, content := range files {
		got, err := os.ReadFile(filepath.Join(dst, filepath.FromSlash(name)))
		if err != nil {
			t.Fatalf("restored file missing: %v", err)
		}
		if string(got) != content {
			t.Errorf("restored %s = %q, want %q", name, got, content)
		}
	}
}

func TestRestoreRefusesNonEmptyDir(t *testing.T) {
	src := t.TempDir()
	if err := os.WriteFile(filepath.Join(src, "db"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	archive := filepath.Join(t.TempDir(), "backup.tar.zst")
	if err := runBackup([]string{"-f", archive, "-data", src}); err != nil {
		t.Fatalf("backup: %v", err)
	}

	dst := t.TempDir()
	if err := os.WriteFile(filepath.Join(dst, "existing"), []byte("keep"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	if err := runRestore([]string{"-f", archive, "-data", dst}); err == nil {
		t.Fatal("expected refusal without -overwrite")
	}
	if err := runRestore([]string{"-f", archive, "-data", dst, "-overwrite"}); err != nil {
		t.Fatalf("restore with -overwrite: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dst, "db")); err != nil {
		t.Errorf("restored file missing after overwrite: %v", err)
	}
}

func TestBackupMissingFlags(t *testing.T) {
	if err := runBackup([]string{}); err == nil {
		t.Error("expected error without -f")
	}
	if err := runBackup([]string{"-f", filepath.Join(t.TempDir(), "out.tar.zst"), "-data", "/no/such/dir"}); err == nil {
		t.Error("expected error for missing data dir")
	}
	if err := runRestore([]string{}); err == nil {
		t.Error("expected error without -f")
	}
}
