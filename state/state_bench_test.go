package state

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// writeInputs creates n distinct .eml files of roughly size bytes each.
func writeInputs(b *testing.B, dir string, n, size int) []string {
	b.Helper()

	paths := make([]string, n)
	for i := range paths {
		header := fmt.Sprintf("Subject: message %d\r\nFrom: a@example.com\r\n\r\n", i)
		body := bytes.Repeat([]byte("line of body text\r\n"), size/19+1)
		paths[i] = filepath.Join(dir, fmt.Sprintf("mail-%03d.eml", i))
		if err := os.WriteFile(paths[i], append([]byte(header), body...), 0o600); err != nil {
			b.Fatal(err)
		}
	}
	return paths
}

// markNew hashes every input and records the ones not seen before, the
// same sequence a run performs per file.
func markNew(b *testing.B, tracker *FileTracker, paths []string) int {
	b.Helper()

	added := 0
	for _, path := range paths {
		hash, err := HashFile(path)
		if err != nil {
			b.Fatal(err)
		}
		if tracker.AlreadyProcessed(hash) {
			continue
		}
		if err := tracker.MarkProcessed(hash, path); err != nil {
			b.Fatal(err)
		}
		added++
	}
	return added
}

func BenchmarkHashFile(b *testing.B) {
	paths := writeInputs(b, b.TempDir(), 1, 1<<20)
	info, err := os.Stat(paths[0])
	if err != nil {
		b.Fatal(err)
	}

	b.SetBytes(info.Size())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := HashFile(paths[0]); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkFileTracker_FirstRun measures a run over a folder with an empty
// state file: every input is hashed, looked up and recorded.
func BenchmarkFileTracker_FirstRun(b *testing.B) {
	paths := writeInputs(b, b.TempDir(), 64, 8<<10)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		tracker, err := NewFileTracker(b.TempDir(), true)
		if err != nil {
			b.Fatal(err)
		}
		b.StartTimer()

		if added := markNew(b, tracker, paths); added != len(paths) {
			b.Fatalf("recorded %d of %d inputs", added, len(paths))
		}
		if err := tracker.Close(); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkFileTracker_Rerun measures a repeated run where the state file
// already lists every input, so each one is skipped as a duplicate.
func BenchmarkFileTracker_Rerun(b *testing.B) {
	paths := writeInputs(b, b.TempDir(), 64, 8<<10)
	stateDir := b.TempDir()

	tracker, err := NewFileTracker(stateDir, true)
	if err != nil {
		b.Fatal(err)
	}
	markNew(b, tracker, paths)
	if err := tracker.Close(); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tracker, err := NewFileTracker(stateDir, true)
		if err != nil {
			b.Fatal(err)
		}
		if added := markNew(b, tracker, paths); added != 0 {
			b.Fatalf("recorded %d inputs on rerun", added)
		}
		if err := tracker.Close(); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkFileTracker_DryRun measures a dry run, which loads the state
// without writing and only checks each input.
func BenchmarkFileTracker_DryRun(b *testing.B) {
	paths := writeInputs(b, b.TempDir(), 64, 8<<10)
	tracker, err := NewFileTracker(b.TempDir(), false)
	if err != nil {
		b.Fatal(err)
	}
	defer tracker.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, path := range paths {
			hash, err := HashFile(path)
			if err != nil {
				b.Fatal(err)
			}
			if tracker.AlreadyProcessed(hash) {
				b.Fatalf("%s reported as extracted", path)
			}
		}
	}
}
