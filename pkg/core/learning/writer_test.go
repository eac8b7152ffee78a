package learning

import "testing"

func TestNullableStringRespectsHasFlag(t *testing.T) {
	if got := nullableString(false, "ignored"); got != nil {
		t.Errorf("expected nil when has=false, got %q", *got)
	}
	got := nullableString(true, "601.48")
	if got == nil || *got != "601.48" {
		t.Fatalf("expected a pointer to %q, got %v", "601.48", got)
	}
}

func TestNullableFloatRespectsHasFlag(t *testing.T) {
	if got := nullableFloat(false, 0.9); got != nil {
		t.Errorf("expected nil when has=false, got %v", *got)
	}
	got := nullableFloat(true, 0.9)
	if got == nil || *got != 0.9 {
		t.Fatalf("expected a pointer to 0.9, got %v", got)
	}
}
