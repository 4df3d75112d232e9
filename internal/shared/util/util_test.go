package util

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNormalizePath(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "Empty", input: "", expected: ""},
		{name: "Dot", input: ".", expected: ""},
		{name: "Trim", input: "  ./foo/bar.py  ", expected: "foo/bar.py"},
		{name: "Relative", input: "foo/../bar.py", expected: "bar.py"},
		{name: "Windows", input: `eurika\analysis\graph.py`, expected: "eurika/analysis/graph.py"},
		{name: "DoubleSlash", input: "a//b.py", expected: "a/b.py"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := NormalizePath(tc.input); got != tc.expected {
				t.Fatalf("expected %q, got %q", tc.expected, got)
			}
		})
	}
}

func TestStem(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"pkg/project_graph.py": "project_graph",
		"a.py":                 "a",
		`cli\handlers.py`:      "handlers",
		"Makefile":             "Makefile",
		"pkg/.hidden":          ".hidden",
		"":                     "",
	}
	for input, want := range cases {
		if got := Stem(input); got != want {
			t.Errorf("Stem(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestHasPathPrefix(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		path     string
		prefix   string
		expected bool
	}{
		{name: "Exact", path: "foo/bar", prefix: "foo/bar", expected: true},
		{name: "Nested", path: "foo/bar/baz", prefix: "foo/bar", expected: true},
		{name: "Neighbor", path: "foo/barista", prefix: "foo/bar", expected: false},
		{name: "Shorter", path: "foo", prefix: "foo/bar", expected: false},
		{name: "MixedSeparators", path: `foo\bar\baz`, prefix: "foo/bar", expected: true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := HasPathPrefix(tc.path, tc.prefix); got != tc.expected {
				t.Fatalf("expected %v, got %v", tc.expected, got)
			}
		})
	}
}

func TestSortedStringKeys(t *testing.T) {
	keys := SortedStringKeys(map[string]int{"b": 1, "a": 2, "c": 3})
	if len(keys) != 3 || keys[0] != "a" || keys[1] != "b" || keys[2] != "c" {
		t.Fatalf("unexpected keys: %v", keys)
	}
}

func TestWriteFileWithDirs(t *testing.T) {
	target := filepath.Join(t.TempDir(), "nested", "dir", "out.json")
	if err := WriteFileWithDirs(target, []byte("{}"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "{}" {
		t.Fatalf("unexpected content %q", data)
	}
}
