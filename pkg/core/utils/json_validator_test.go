package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type satResult struct {
	SATAccountCode string  `json:"sat_account_code"`
	Confidence     float64 `json:"confidence"`
}

func TestSmartParseStandardJSON(t *testing.T) {
	var out satResult
	raw, err := SmartParse(`{"sat_account_code": "601.48", "confidence": 0.91}`, &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.SATAccountCode != "601.48" || out.Confidence != 0.91 {
		t.Errorf("unexpected result: %+v", out)
	}
	if raw == "" {
		t.Errorf("expected SmartParse to return the parsed JSON string")
	}
}

func TestSmartParseRepairsTrailingComma(t *testing.T) {
	var out satResult
	// A trailing comma is invalid strict JSON but a common LLM slip.
	_, err := SmartParse(`{"sat_account_code": "601.48", "confidence": 0.91,}`, &out)
	if err != nil {
		t.Fatalf("expected the repair pass to recover a trailing comma, got %v", err)
	}
	if out.SATAccountCode != "601.48" {
		t.Errorf("unexpected result: %+v", out)
	}
}

func TestSmartParseRecoversUnquotedKeys(t *testing.T) {
	var out satResult
	_, err := SmartParse(`{sat_account_code: "601.48", confidence: 0.91}`, &out)
	if err != nil {
		t.Fatalf("expected SmartParse to recover unquoted keys, got %v", err)
	}
	if out.SATAccountCode != "601.48" {
		t.Errorf("unexpected result: %+v", out)
	}
}

func TestSmartParseStripsMarkdownFenceBeforeParsing(t *testing.T) {
	var out satResult
	raw, err := SmartParse("```json\n{\"sat_account_code\": \"601.48\", \"confidence\": 0.91}\n```", &out)
	require.NoError(t, err)
	require.Equal(t, "601.48", out.SATAccountCode)
	require.Equal(t, 0.91, out.Confidence)
	require.NotContains(t, raw, "```")
}

func TestSmartParseFailsOnGarbage(t *testing.T) {
	var out satResult
	if _, err := SmartParse("this is not json at all, just prose", &out); err == nil {
		t.Errorf("expected an error for unparseable input")
	}
}

func TestValidateJSONRejectsMissingRequiredField(t *testing.T) {
	type strict struct {
		Code       string  `json:"code"`
		Confidence float64 `json:"confidence"`
	}
	var out strict
	err := ValidateJSON(`{"code": "", "confidence": 0.9}`, &out)
	if err == nil {
		t.Errorf("expected a zero-value required field to be rejected")
	}
}

func TestValidateJSONAcceptsFullyPopulatedStruct(t *testing.T) {
	type strict struct {
		Code       string  `json:"code"`
		Confidence float64 `json:"confidence"`
	}
	var out strict
	if err := ValidateJSON(`{"code": "601.48", "confidence": 0.9}`, &out); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestMustRepairJSONNeverReturnsEmptyString(t *testing.T) {
	got := MustRepairJSON("")
	if got == "" {
		t.Errorf("MustRepairJSON(\"\") returned an empty string; callers rely on a guaranteed JSON value")
	}
}
