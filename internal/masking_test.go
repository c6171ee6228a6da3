package internal

import "testing"

func TestMaskEmail(t *testing.T) {
	cases := map[string]string{
		"john@example.com": "j***@example.com",
		"a@example.com":    "***@example.com",
		"not-an-email":     "***",
	}
	for in, want := range cases {
		if got := MaskEmail(in); got != want {
			t.Fatalf("MaskEmail(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMaskPhone(t *testing.T) {
	if got := MaskPhone("+971501235678"); got != "+971****5678" {
		t.Fatalf("MaskPhone = %q", got)
	}
	if got := MaskPhone("123"); got != "***" {
		t.Fatalf("short phone: %q", got)
	}
}

func TestMaskNationalID(t *testing.T) {
	if got := MaskNationalID("784-1990-1234567-0"); got != "784-****-*******-0" {
		t.Fatalf("MaskNationalID = %q", got)
	}
	if got := MaskNationalID("784"); got != "***" {
		t.Fatalf("short id: %q", got)
	}
}

func TestMaskUUID(t *testing.T) {
	if got := MaskUUID("6f1c2d3e-4a5b-6c7d-8e9f-0a1b2c3d4e5f"); got != "6f1c2d3e-****" {
		t.Fatalf("MaskUUID = %q", got)
	}
}

func TestMaskIP(t *testing.T) {
	if got := MaskIP("192.168.14.77"); got != "192.168.*.*" {
		t.Fatalf("MaskIP = %q", got)
	}
	if got := MaskIP("2001:db8::1"); got != "***" {
		t.Fatalf("IPv6 must be fully masked, got %q", got)
	}
	if got := MaskIP("10.0.0"); got != "***" {
		t.Fatalf("partial dotted quad: %q", got)
	}
	if got := MaskIP(""); got != "***" {
		t.Fatalf("empty ip: %q", got)
	}
}

func TestMaskName(t *testing.T) {
	if got := MaskName("Fatima Al Mansoori"); got != "Fatima A***" {
		t.Fatalf("MaskName = %q", got)
	}
	if got := MaskName("Omar"); got != "O***" {
		t.Fatalf("single name: %q", got)
	}
}

func TestMaskGeneric(t *testing.T) {
	if got := Mask("correlation-id-1234", 4); got != "corr***" {
		t.Fatalf("Mask = %q", got)
	}
	if got := Mask("ab", 4); got != "ab" {
		t.Fatalf("short value must pass through, got %q", got)
	}
}
