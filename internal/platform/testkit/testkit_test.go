package testkit

import (
	"path/filepath"
	"sync/atomic"
	"testing"
)

func TestMustPanic(t *testing.T) {
	t.Parallel()
	MustPanic(t, func() { panic("boom") })
}

func TestMustContain(t *testing.T) {
	t.Parallel()
	MustContain(t, "unit 2/5 fetched=100 added=40", "added=40")
}

func TestWriteReadFile(t *testing.T) {
	t.Parallel()
	p := WriteFile(t, "commits.csv", "sha\nabc\n")
	if filepath.Base(p) != "commits.csv" {
		t.Fatalf("WriteFile path = %q", p)
	}
	if got := ReadFile(t, p); got != "sha\nabc\n" {
		t.Fatalf("ReadFile = %q", got)
	}
}

var renameFn = func(from, to string) string { return from + "->" + to }

func TestSwap_RestoresAfterSubtest(t *testing.T) {
	t.Run("swapped", func(t *testing.T) {
		Swap(t, &renameFn, func(string, string) string { return "stub" })
		if got := renameFn("a", "b"); got != "stub" {
			t.Fatalf("swap did not take effect, got %q", got)
		}
	})
	if got := renameFn("a", "b"); got != "a->b" {
		t.Fatalf("swap did not restore original, got %q", got)
	}
}

func TestSerial_ExcludesConcurrentHolders(t *testing.T) {
	var inside atomic.Int32
	for _, name := range []string{"a", "b", "c"} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			Serial(t)
			if n := inside.Add(1); n != 1 {
				t.Fatalf("%d holders inside Serial section", n)
			}
			inside.Add(-1)
		})
	}
}
