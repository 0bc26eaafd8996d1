package strategy

import (
	"testing"
	"time"
)

func TestForDay(t *testing.T) {
	// 2024-06-02 is a Sunday.
	sunday := time.Date(2024, 6, 2, 9, 0, 0, 0, time.UTC)

	if got := ForDay(sunday, time.Sunday); got != VariantSpecial {
		t.Fatalf("expected special variant on the designated weekday, got %s", got)
	}
	if got := ForDay(sunday, time.Friday); got != VariantDaily {
		t.Fatalf("expected daily variant off the designated weekday, got %s", got)
	}
	if got := ForDay(sunday.AddDate(0, 0, 1), time.Sunday); got != VariantDaily {
		t.Fatalf("expected daily variant on Monday, got %s", got)
	}
}

func TestTopicIndexRotates(t *testing.T) {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	seen := make(map[int]bool)
	for day := 0; day < 6; day++ {
		idx := TopicIndex(base.AddDate(0, 0, day), 3)
		if idx < 0 || idx >= 3 {
			t.Fatalf("index out of range: %d", idx)
		}
		seen[idx] = true
	}
	if len(seen) != 3 {
		t.Fatalf("rotation should visit every topic, visited %d", len(seen))
	}

	// Deterministic for a fixed date.
	fixed := time.Date(2024, 6, 17, 12, 0, 0, 0, time.UTC)
	if TopicIndex(fixed, 5) != 17%5 {
		t.Fatal("index should be day-of-month modulo topic count")
	}
}

func TestTopicIndexDegenerateCount(t *testing.T) {
	now := time.Date(2024, 6, 17, 0, 0, 0, 0, time.UTC)
	if TopicIndex(now, 0) != 0 {
		t.Fatal("zero topics should map to index 0")
	}
	if TopicIndex(now, -2) != 0 {
		t.Fatal("negative topic count should map to index 0")
	}
}

func TestParseWeekday(t *testing.T) {
	d, ok := ParseWeekday("Tuesday")
	if !ok || d != time.Tuesday {
		t.Fatalf("expected Tuesday, got %v (ok=%v)", d, ok)
	}
	if _, ok := ParseWeekday("Someday"); ok {
		t.Fatal("unknown weekday name should not parse")
	}
}
