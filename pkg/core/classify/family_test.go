package classify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/contaflow/classifier-core/pkg/core/tenantctx"
)

func TestIsValidFamilyCode(t *testing.T) {
	for code := range familyNames {
		if !isValidFamilyCode(code) {
			t.Errorf("expected %q to be a valid family code", code)
		}
	}
	if isValidFamilyCode("999") {
		t.Errorf("expected 999 to be invalid")
	}
	if isValidFamilyCode("") {
		t.Errorf("expected empty string to be invalid")
	}
}

func TestNeedsReviewFamily(t *testing.T) {
	r := needsReviewFamily()
	if r.FamilyCode != "600" {
		t.Errorf("expected fallback family 600, got %q", r.FamilyCode)
	}
	if r.Confidence != 0 {
		t.Errorf("expected zero confidence, got %f", r.Confidence)
	}
	if !r.RequiresHumanReview {
		t.Errorf("expected RequiresHumanReview to be true")
	}
}

func TestRoundTo2DP(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{0.8333333, 0.83},
		{0.125, 0.13},
		{1.0, 1.0},
		{0.0, 0.0},
	}
	for _, tc := range cases {
		if got := roundTo2DP(tc.in); got != tc.want {
			t.Errorf("roundTo2DP(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestBuildFamilyUserPromptDirection(t *testing.T) {
	inv := validInvoice()
	company := &tenantctx.CompanyContext{TenantRFC: inv.ReceptorRFC}
	prompt := buildFamilyUserPrompt(inv, company, nil, nil)
	if !strings.Contains(prompt, "RECIBIDA") {
		t.Errorf("expected prompt to describe the invoice as RECIBIDA, got:\n%s", prompt)
	}
	if !strings.Contains(prompt, inv.EmisorRFC) {
		t.Errorf("expected prompt to include the emisor RFC")
	}
}

func TestBuildFamilyUserPromptDirectionEmitida(t *testing.T) {
	inv := validInvoice()
	company := &tenantctx.CompanyContext{TenantRFC: inv.EmisorRFC}
	prompt := buildFamilyUserPrompt(inv, company, nil, nil)
	if !strings.Contains(prompt, "EMITIDA") {
		t.Errorf("expected prompt to describe the invoice as EMITIDA, got:\n%s", prompt)
	}
}

func TestBuildFamilyUserPromptDirectionIndeterminateWithoutTenantRFC(t *testing.T) {
	inv := validInvoice()
	prompt := buildFamilyUserPrompt(inv, nil, nil, nil)
	if !strings.Contains(prompt, "indeterminada") {
		t.Errorf("expected prompt to describe the invoice as indeterminada without a tenant RFC, got:\n%s", prompt)
	}
}

func TestBuildFamilyUserPromptResolvesProductServiceName(t *testing.T) {
	inv := validInvoice()
	inv.Conceptos[0].ClaveProdServ = "81111500"
	names := map[string]string{"81111500": "Servicios de soporte de sistemas"}
	prompt := buildFamilyUserPrompt(inv, nil, nil, names)
	if !strings.Contains(prompt, "Servicios de soporte de sistemas") {
		t.Errorf("expected prompt to include the resolved product/service name, got:\n%s", prompt)
	}
}

func TestFamilyClassifierClassifySuccess(t *testing.T) {
	provider := &scriptedProvider{response: `{
		"family_code": "600",
		"family_name": "GASTOS DE OPERACION",
		"confidence": 0.97,
		"reasoning": "Servicio administrativo recurrente clasico de gastos de operacion.",
		"requires_human_review": false
	}`}
	fc := NewFamilyClassifier(newTestManager(provider), NewModelSelector(), nil, nil)

	result, err := fc.Classify(context.Background(), validInvoice(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.FamilyCode != "600" {
		t.Errorf("FamilyCode = %q, want 600", result.FamilyCode)
	}
	if result.Confidence != 0.97 {
		t.Errorf("Confidence = %v, want 0.97", result.Confidence)
	}
	if provider.calls != 1 {
		t.Errorf("expected exactly one provider call, got %d", provider.calls)
	}
}

func TestFamilyClassifierClassifyInvalidCodeFallsBackToReview(t *testing.T) {
	provider := &scriptedProvider{response: `{
		"family_code": "999",
		"family_name": "INVALIDA",
		"confidence": 0.9,
		"reasoning": "Codigo de familia inventado por el modelo."
	}`}
	fc := NewFamilyClassifier(newTestManager(provider), NewModelSelector(), nil, nil)

	result, err := fc.Classify(context.Background(), validInvoice(), nil)
	if err != nil {
		t.Fatalf("Classify should never return an error on schema violation, got %v", err)
	}
	if result.FamilyCode != "600" || result.Confidence != 0 || !result.RequiresHumanReview {
		t.Errorf("expected needsReviewFamily() fallback, got %+v", result)
	}
}

func TestFamilyClassifierClassifyProviderError(t *testing.T) {
	provider := &scriptedProvider{err: errors.New("network down")}
	fc := NewFamilyClassifier(newTestManager(provider), NewModelSelector(), nil, nil)

	result, err := fc.Classify(context.Background(), validInvoice(), nil)
	if err != nil {
		t.Fatalf("Classify should degrade to needsReviewFamily rather than error, got %v", err)
	}
	if !result.RequiresHumanReview {
		t.Errorf("expected a needs-review result on provider failure")
	}
}

func TestFamilyClassifierRequiresHumanReviewBelowConfidenceFloor(t *testing.T) {
	provider := &scriptedProvider{response: `{
		"family_code": "100",
		"family_name": "ACTIVO",
		"confidence": 0.88,
		"reasoning": "Compra de equipo de computo para la oficina central."
	}`}
	fc := NewFamilyClassifier(newTestManager(provider), NewModelSelector(), nil, nil)

	result, err := fc.Classify(context.Background(), validInvoice(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.RequiresHumanReview {
		t.Errorf("expected confidence 0.88 (< 0.95) to require human review")
	}
}
