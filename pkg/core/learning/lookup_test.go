package learning

import "testing"

func TestThresholdOrdering(t *testing.T) {
	if !(DisplayThreshold < AutoApplyThreshold) {
		t.Fatalf("expected DisplayThreshold (%v) < AutoApplyThreshold (%v)", DisplayThreshold, AutoApplyThreshold)
	}
	if AutoApplyThreshold > 1.0 || DisplayThreshold < 0 {
		t.Errorf("expected both thresholds within [0,1], got display=%v auto=%v", DisplayThreshold, AutoApplyThreshold)
	}
}
