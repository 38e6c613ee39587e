package typesystem

import "testing"

func TestNormalizeBoolean(t *testing.T) {
	d, err := Parse("boolean")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got, err := d.Normalize("TRUE")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if got != "true" {
		t.Errorf("got %q, want %q", got, "true")
	}
	if _, err := d.Normalize("maybe"); err == nil {
		t.Error("expected error for invalid boolean")
	}
}

func TestNormalizeIP(t *testing.T) {
	d, err := Parse("ip")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got, err := d.Normalize("192.168.001.001")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if got != "192.168.1.1" {
		t.Errorf("got %q, want %q", got, "192.168.1.1")
	}
	if _, err := d.Normalize("300.1.1.1"); err == nil {
		t.Error("expected error for octet out of range")
	}
}

func TestNormalizeDecimal(t *testing.T) {
	d, err := Parse("number:decimal:10:4")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got, err := d.Normalize("1.5")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if got != "1.5000" {
		t.Errorf("got %q, want %q", got, "1.5000")
	}
}

func TestNormalizeDecimalExceedsTotal(t *testing.T) {
	d, err := Parse("number:decimal:3:2")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := d.Normalize("123.45"); err == nil {
		t.Error("expected error for exceeding TOTAL digits")
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	cases := []struct {
		descriptor string
		value      string
	}{
		{"boolean", "TRUE"},
		{"ip", "10.0.000.1"},
		{"number:int", "42"},
		{"number:int:signed", "-42"},
		{"number:decimal:10:4", "1.5"},
		{"string:10:ci", "HeLLo"},
		{"number:hex:8:4:-", "ab-cd-ef-12"},
	}
	for _, c := range cases {
		d, err := Parse(c.descriptor)
		if err != nil {
			t.Fatalf("Parse(%q): %v", c.descriptor, err)
		}
		n1, err := d.Normalize(c.value)
		if err != nil {
			t.Fatalf("Normalize(%q): %v", c.value, err)
		}
		n2, err := d.Normalize(n1)
		if err != nil {
			t.Fatalf("Normalize(normalize(%q)): %v", c.value, err)
		}
		if n1 != n2 {
			t.Errorf("not idempotent: normalize(%q)=%q, normalize(that)=%q", c.value, n1, n2)
		}
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"bogus",
		"number:decimal:4:4",
		"number:hex:7:3",
		"string",
		"enum",
	}
	for _, c := range cases {
		if _, err := Parse(c); err == nil {
			t.Errorf("Parse(%q): expected error", c)
		}
	}
}

func TestUnsignedRejectsNegative(t *testing.T) {
	d, err := Parse("number:int")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := d.Normalize("-1"); err == nil {
		t.Error("expected error for negative value on unsigned type")
	}
}

func TestFloatExcludedFromHashing(t *testing.T) {
	d, err := Parse("number:float")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !d.ExcludedFromHashing() {
		t.Error("number:float should be excluded from hashing")
	}
	d2, err := Parse("number:int")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if d2.ExcludedFromHashing() {
		t.Error("number:int should not be excluded from hashing")
	}
}
