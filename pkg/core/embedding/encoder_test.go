package embedding

import (
	"context"
	"testing"
)

func TestOfflineEncoderIsDeterministic(t *testing.T) {
	e := &OfflineEncoder{}
	a, err := e.Embed(context.Background(), "Servicio de flete terrestre")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := e.Embed(context.Background(), "Servicio de flete terrestre")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != b {
		t.Errorf("expected embedding the same text twice to produce identical vectors")
	}
}

func TestOfflineEncoderDistinguishesDifferentText(t *testing.T) {
	e := &OfflineEncoder{}
	a, _ := e.Embed(context.Background(), "Servicio de flete terrestre")
	b, _ := e.Embed(context.Background(), "Renta de oficina mensual")
	if a == b {
		t.Errorf("expected distinct text to produce distinct embeddings")
	}
}

func TestOfflineEncoderReturnsNormalizedVector(t *testing.T) {
	e := &OfflineEncoder{}
	v, err := e.Embed(context.Background(), "Papeleria y utiles de oficina")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v.IsNormalized() {
		t.Errorf("expected the offline encoder to return a unit-normalized vector")
	}
}

func TestSetForTestingOverridesAndRestores(t *testing.T) {
	original := Get()
	fake := &OfflineEncoder{}
	restore := SetForTesting(fake)
	if Get() != fake {
		t.Errorf("expected Get() to return the overridden encoder")
	}
	restore()
	if Get() != original {
		t.Errorf("expected restore() to put back the original encoder")
	}
}
