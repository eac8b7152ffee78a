package classify

import (
	"errors"
	"testing"

	"github.com/contaflow/classifier-core/pkg/core/tenant"
)

func validInvoice() InvoiceSnapshot {
	return InvoiceSnapshot{
		TenantID:    tenant.ID(1),
		EmisorRFC:   "ABC010203XYZ",
		EmisorName:  "Proveedor de Prueba SA de CV",
		ReceptorRFC: "XYZ987654ABC",
		Total:       1000.0,
		Currency:    "MXN",
		MetodoPago:  PaymentPUE,
		UsoCFDI:     "G03",
		Conceptos: []ConceptLine{
			{Description: "Servicio de prueba", Amount: 1000.0, SharePct: 1.0},
		},
	}
}

func TestInvoiceSnapshotValidate(t *testing.T) {
	if err := validInvoice().Validate(); err != nil {
		t.Fatalf("expected valid invoice to pass, got %v", err)
	}

	cases := []struct {
		name    string
		mutate  func(inv InvoiceSnapshot) InvoiceSnapshot
		wantErr error
	}{
		{
			name:    "missing emisor",
			mutate:  func(inv InvoiceSnapshot) InvoiceSnapshot { inv.EmisorRFC = ""; return inv },
			wantErr: errMissingEmisor,
		},
		{
			name:    "no conceptos",
			mutate:  func(inv InvoiceSnapshot) InvoiceSnapshot { inv.Conceptos = nil; return inv },
			wantErr: errMissingConceptos,
		},
		{
			name:    "zero total",
			mutate:  func(inv InvoiceSnapshot) InvoiceSnapshot { inv.Total = 0; return inv },
			wantErr: errMissingTotal,
		},
		{
			name:    "negative total",
			mutate:  func(inv InvoiceSnapshot) InvoiceSnapshot { inv.Total = -5; return inv },
			wantErr: errMissingTotal,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.mutate(validInvoice()).Validate()
			var pe *PipelineError
			if !errors.As(err, &pe) {
				t.Fatalf("expected a *PipelineError, got %v", err)
			}
			if pe.Kind != ErrInvalidInput {
				t.Errorf("expected Kind %q, got %q", ErrInvalidInput, pe.Kind)
			}
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("expected wrapped error %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestInvoiceSnapshotIsReceived(t *testing.T) {
	inv := validInvoice()
	if !inv.IsReceived("XYZ987654ABC") {
		t.Errorf("expected invoice to be received for matching receptor RFC")
	}
	if inv.IsReceived("SOMETHINGELSE") {
		t.Errorf("expected invoice not to be received for non-matching RFC")
	}
}

func TestConstraintModeFor(t *testing.T) {
	cases := []struct {
		confidence float64
		want       ConstraintMode
	}{
		{0.99, ConstraintSilent},
		{0.95, ConstraintSilent},
		{0.94, ConstraintFlagged},
		{0.80, ConstraintFlagged},
		{0.79, ConstraintSkipped},
		{0.0, ConstraintSkipped},
	}
	for _, tc := range cases {
		if got := ConstraintModeFor(tc.confidence); got != tc.want {
			t.Errorf("ConstraintModeFor(%.2f) = %q, want %q", tc.confidence, got, tc.want)
		}
	}
}

func TestPipelineErrorUnwrapAndMessage(t *testing.T) {
	inner := errors.New("boom")
	pe := &PipelineError{Kind: ErrProviderError, Stage: "family", Err: inner}

	if !errors.Is(pe, inner) {
		t.Errorf("expected PipelineError to unwrap to inner error")
	}
	want := "provider_error at family: boom"
	if pe.Error() != want {
		t.Errorf("Error() = %q, want %q", pe.Error(), want)
	}

	bare := &PipelineError{Kind: ErrNoCandidates, Stage: "retrieval"}
	if bare.Error() != "no_candidates at retrieval" {
		t.Errorf("Error() with nil Err = %q", bare.Error())
	}
}
