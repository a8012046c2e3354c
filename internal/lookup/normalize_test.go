package lookup

import (
	"strings"
	"testing"
)

func TestNormalize_Phone(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"+91 98765 43210", "919876543210", true},
		{"(212) 555-1212", "2125551212", true},
		{"98765.43210", "9876543210", true},
		{"+1234", "", false},      // too short
		{"98a7654321", "", false}, // letters
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := Normalize(TypePhone, tc.in)
		if ok != tc.ok {
			t.Fatalf("Normalize(phone, %q) ok = %v; want %v", tc.in, ok, tc.ok)
		}
		if ok && got != tc.want {
			t.Fatalf("Normalize(phone, %q) = %q; want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalize_CaseFolding(t *testing.T) {
	if got, ok := Normalize(TypeEmail, "  Alice@Example.COM "); !ok || got != "alice@example.com" {
		t.Fatalf("email = %q, %v", got, ok)
	}
	if got, ok := Normalize(TypePAN, "abcde1234f"); !ok || got != "ABCDE1234F" {
		t.Fatalf("pan = %q, %v", got, ok)
	}
	if got, ok := Normalize(TypeIFSC, "hdfc0001234"); !ok || got != "HDFC0001234" {
		t.Fatalf("ifsc = %q, %v", got, ok)
	}
	if got, ok := Normalize(TypeUsername, "@Some_User"); !ok || got != "some_user" {
		t.Fatalf("username = %q, %v", got, ok)
	}
}

func TestNormalize_CompatibilityForms(t *testing.T) {
	// Full-width digits fold to ASCII under NFKC.
	got, ok := Normalize(TypePhone, "９876543210")
	if !ok || got != "9876543210" {
		t.Fatalf("full-width digit: got %q, ok=%v", got, ok)
	}
	// Control characters are stripped, not rejected.
	if got, ok := Normalize(TypeEmail, "a​lice@example.com"); !ok || got != "alice@example.com" {
		t.Fatalf("zero-width removal: got %q, ok=%v", got, ok)
	}
}

func TestNormalize_Oversized(t *testing.T) {
	long := strings.Repeat("a", 300) + "@example.com"
	if _, ok := Normalize(TypeEmail, long); ok {
		t.Fatal("oversized input accepted")
	}
}

func TestNormalize_ShapeChecks(t *testing.T) {
	bad := map[string]string{
		TypeEmail:   "not-an-email",
		TypeUPI:     "@@bank",
		TypePAN:     "ABC123",
		TypeVehicle: "x",
		TypeIFSC:    "HDFC123",
		TypeIP:      "hello world",
	}
	for qtype, in := range bad {
		if _, ok := Normalize(qtype, in); ok {
			t.Fatalf("Normalize(%s, %q) accepted malformed input", qtype, in)
		}
	}

	good := map[string]string{
		TypeUPI:     "alice-01@okbank",
		TypeIP:      "192.168.1.10",
		TypeVehicle: "MH12AB1234",
	}
	for qtype, in := range good {
		if _, ok := Normalize(qtype, in); !ok {
			t.Fatalf("Normalize(%s, %q) rejected valid input", qtype, in)
		}
	}
}

func TestKey_NamespacedByType(t *testing.T) {
	phone, _ := Normalize(TypePhone, "98765 43210")
	vehicle, _ := Normalize(TypeVehicle, "9876543210")
	if Key(TypePhone, phone) == Key(TypeVehicle, vehicle) {
		t.Fatal("cache keys for different types collided")
	}
	if got := Key(TypePhone, "9876543210"); got != "phone:9876543210" {
		t.Fatalf("Key = %q", got)
	}
}
