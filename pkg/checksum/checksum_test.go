package checksum

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestSumDeterministic(t *testing.T) {
	data := []byte("the same bytes hash the same way")

	first := Sum(data)
	second := Sum(data)

	if first != second {
		t.Errorf("Sum not deterministic: %s != %s", first, second)
	}
	if len(first) != 64 {
		t.Errorf("Sum length = %d, want 64 hex chars", len(first))
	}
}

func TestSumKnownValue(t *testing.T) {
	// SHA-256 of the empty input
	want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := Sum(nil); got != want {
		t.Errorf("Sum(nil) = %s, want %s", got, want)
	}
}

func TestSumReaderMatchesSum(t *testing.T) {
	data := bytes.Repeat([]byte("abcdefgh"), 20000) // larger than one buffer

	got, err := SumReader(context.Background(), bytes.NewReader(data))
	if err != nil {
		t.Fatalf("SumReader() error = %v", err)
	}
	if want := Sum(data); got != want {
		t.Errorf("SumReader = %s, want %s", got, want)
	}
}

func TestSumReaderCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := SumReader(ctx, bytes.NewReader([]byte("data")))
	if err == nil {
		t.Error("SumReader() should fail with cancelled context")
	}
}

func TestSumFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.bin")
	data := []byte("file contents for hashing")

	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	got, err := SumFile(context.Background(), path)
	if err != nil {
		t.Fatalf("SumFile() error = %v", err)
	}
	if want := Sum(data); got != want {
		t.Errorf("SumFile = %s, want %s", got, want)
	}
}

func TestSumFileMissing(t *testing.T) {
	_, err := SumFile(context.Background(), filepath.Join(t.TempDir(), "missing"))
	if err == nil {
		t.Error("SumFile() should fail for missing file")
	}
}

func TestKey(t *testing.T) {
	a := Key("app/resources/data.js")
	b := Key("app/resources/data.js")
	c := Key("app/resources/other.js")

	if a != b {
		t.Errorf("Key not deterministic: %s != %s", a, b)
	}
	if a == c {
		t.Error("Key should differ for different inputs")
	}
	if len(a) != 16 {
		t.Errorf("Key length = %d, want 16", len(a))
	}
}
