package process

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDetectionsBest(t *testing.T) {
	if _, ok := Detections(nil).Best(); ok {
		t.Error("Best on empty detections reported ok")
	}

	d := Detections{
		{Class: "person", Confidence: 0.5},
		{Class: "car", Confidence: 0.9},
		{Class: "dog", Confidence: 0.7},
	}
	best, ok := d.Best()
	if !ok || best.Class != "car" {
		t.Errorf("Best = (%+v, %v), want car", best, ok)
	}
}

func TestClassScoresObserve(t *testing.T) {
	s := make(ClassScores)
	s.Observe(Detections{{Class: "person", Confidence: 0.5}})
	s.Observe(Detections{
		{Class: "person", Confidence: 0.8},
		{Class: "car", Confidence: 0.6},
	})
	s.Observe(Detections{{Class: "person", Confidence: 0.3}})

	if s["person"] != 0.8 {
		t.Errorf("person score = %v, want 0.8 (max wins)", s["person"])
	}
	if s["car"] != 0.6 {
		t.Errorf("car score = %v, want 0.6", s["car"])
	}

	sorted := s.Sorted()
	if len(sorted) != 2 || sorted[0].Class != "person" {
		t.Errorf("Sorted = %v, want person first", sorted)
	}
	if ds := s.DebugString(); !strings.HasPrefix(ds, "person: 0.80") {
		t.Errorf("DebugString = %q", ds)
	}
}

func TestLoadLabels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.names")
	if err := os.WriteFile(path, []byte("person\nbicycle\ncar\n"), 0644); err != nil {
		t.Fatal(err)
	}

	labels, err := LoadLabels(path)
	if err != nil {
		t.Fatalf("LoadLabels failed: %v", err)
	}
	want := []string{"person", "bicycle", "car"}
	if len(labels) != len(want) {
		t.Fatalf("got %d labels, want %d", len(labels), len(want))
	}
	for i := range want {
		if labels[i] != want[i] {
			t.Errorf("labels[%d] = %q, want %q", i, labels[i], want[i])
		}
	}
}

func TestLoadLabelsEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.names")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadLabels(path); err == nil {
		t.Error("LoadLabels accepted an empty file")
	}
}

func TestLoadLabelsMissingFile(t *testing.T) {
	if _, err := LoadLabels(filepath.Join(t.TempDir(), "nope.names")); err == nil {
		t.Error("LoadLabels accepted a missing file")
	}
}
