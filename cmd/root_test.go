package cmd

import (
	"io"
	"testing"
)

func TestCommandTree(t *testing.T) {
	root := NewRootCmd()

	for _, path := range [][]string{
		{"dataset", "export"},
		{"dataset", "inspect"},
		{"dataset", "report"},
		{"dataset", "pairs"},
		{"dataset", "regrade"},
	} {
		found, _, err := root.Find(path)
		if err != nil {
			t.Errorf("Expected command %v: %v", path, err)
			continue
		}
		if found.Name() != path[len(path)-1] {
			t.Errorf("Expected %s, got %s", path[len(path)-1], found.Name())
		}
	}

	for _, flag := range []string{"config", "log-level", "log-format"} {
		if root.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("Expected persistent flag --%s", flag)
		}
	}
}

func TestRegradeRequiresArgs(t *testing.T) {
	root := NewRootCmd()
	root.SetArgs([]string{"dataset", "regrade", "only-dir"})
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	if err := root.Execute(); err == nil {
		t.Error("Expected argument error, got nil")
	}
}
