package scan

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/termfx/chasm/internal/langc"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestScanDiscoversDefaultExtensions(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.c", "int main(){}")
	writeFile(t, dir, "b.txt", "not source")

	files, err := Scan(context.Background(), dir, langc.C, Config{}, nil)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(files) != 1 || !strings.HasSuffix(files[0], "a.c") {
		t.Fatalf("files = %v, want only a.c", files)
	}
}

func TestScanHonorsExcludeGlob(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "keep.c", "")
	writeFile(t, dir, "vendor_copy.c", "")

	files, err := Scan(context.Background(), dir, langc.C, Config{Exclude: []string{"vendor_copy.c"}}, nil)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(files) != 1 || !strings.HasSuffix(files[0], "keep.c") {
		t.Fatalf("files = %v, want only keep.c", files)
	}
}

func TestScanSkipsGitignoredFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".gitignore", "ignored.c\n")
	writeFile(t, dir, "ignored.c", "")
	writeFile(t, dir, "tracked.c", "")

	files, err := Scan(context.Background(), dir, langc.C, Config{}, nil)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(files) != 1 || !strings.HasSuffix(files[0], "tracked.c") {
		t.Fatalf("files = %v, want only tracked.c", files)
	}
}

func TestScanStdinPathList(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "one.c", "")

	files, err := Scan(context.Background(), "-", langc.C, Config{}, strings.NewReader(p+"\n"))
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(files) != 1 || files[0] != p {
		t.Fatalf("files = %v, want [%s]", files, p)
	}
}

func TestScanCustomExtensions(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.inc", "")
	writeFile(t, dir, "b.c", "")

	files, err := Scan(context.Background(), dir, langc.C, Config{Extensions: []string{"inc"}}, nil)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(files) != 1 || !strings.HasSuffix(files[0], "a.inc") {
		t.Fatalf("files = %v, want only a.inc", files)
	}
}
