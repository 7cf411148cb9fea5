package ident

import (
	"testing"

	"github.com/google/uuid"
)

func TestDeriveIsStable(t *testing.T) {
	a := Derive("acct:item-1:ext-9")
	b := Derive("acct:item-1:ext-9")
	if a != b {
		t.Errorf("expected identical ids for identical seeds, got %s and %s", a, b)
	}
}

func TestDeriveDistinguishesSeeds(t *testing.T) {
	tests := []struct {
		name string
		a, b string
	}{
		{name: "different external ids", a: "txn:item-1:ext-1", b: "txn:item-1:ext-2"},
		{name: "different items", a: "txn:item-1:ext-1", b: "txn:item-2:ext-1"},
		{name: "different kinds", a: "acct:item-1:ext-1", b: "txn:item-1:ext-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if Derive(tt.a) == Derive(tt.b) {
				t.Errorf("expected %q and %q to derive different ids", tt.a, tt.b)
			}
		})
	}
}

func TestDeriveProducesWellFormedUUID(t *testing.T) {
	id := Derive("merch:coffee shop")

	if v := id.Version(); v != 4 {
		t.Errorf("expected version 4, got %d", v)
	}
	if id.Variant() != uuid.RFC4122 {
		t.Errorf("expected RFC 4122 variant, got %s", id.Variant())
	}
	if _, err := uuid.Parse(id.String()); err != nil {
		t.Errorf("derived id did not round-trip through Parse: %v", err)
	}
}

func TestForMerchantNormalizesName(t *testing.T) {
	tests := []struct {
		name string
		a, b string
	}{
		{name: "case insensitive", a: "Blue Bottle", b: "blue bottle"},
		{name: "inner whitespace collapsed", a: "Blue  Bottle", b: "Blue Bottle"},
		{name: "surrounding whitespace trimmed", a: "  Blue Bottle\t", b: "Blue Bottle"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if ForMerchant(tt.a) != ForMerchant(tt.b) {
				t.Errorf("expected %q and %q to derive the same merchant id", tt.a, tt.b)
			}
		})
	}
}

func TestNormalizeMerchant(t *testing.T) {
	got := NormalizeMerchant("  STARBUCKS   Store\t#123 ")
	want := "starbucks store #123"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
