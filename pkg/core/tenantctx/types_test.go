package tenantctx

import "testing"

func TestDescribeIndustryKnownKey(t *testing.T) {
	got := DescribeIndustry("software_consultancy")
	want := "Consultoría y desarrollo de software"
	if got != want {
		t.Errorf("DescribeIndustry(%q) = %q, want %q", "software_consultancy", got, want)
	}
}

func TestDescribeIndustryUnknownKeyFallsBackToRawValue(t *testing.T) {
	got := DescribeIndustry("some_unmapped_industry")
	if got != "some_unmapped_industry" {
		t.Errorf("expected an unknown key to pass through unchanged, got %q", got)
	}
}
