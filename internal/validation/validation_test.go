package validation

import "testing"

func TestIsValidEmail(t *testing.T) {
	valid := []string{
		"user@example.com",
		"first.last@example.co.uk",
		"user+tag@sub.example.com",
		"u@e.io",
	}
	invalid := []string{
		"",
		"plainaddress",
		"@example.com",
		"user@",
		"user@.com",
		"user@example",
		"user @example.com",
	}

	for _, s := range valid {
		if !IsValidEmail(s) {
			t.Errorf("IsValidEmail(%q) = false, want true", s)
		}
	}
	for _, s := range invalid {
		if IsValidEmail(s) {
			t.Errorf("IsValidEmail(%q) = true, want false", s)
		}
	}
}

func TestIsValidPhone(t *testing.T) {
	cases := []struct {
		phone   string
		country string
		want    bool
	}{
		{"4155551234", "US", true},
		{"(415) 555-1234", "US", true},
		{"+1 415 555 1234", "US", true},
		{"555-1234", "US", false},
		{"41555512345", "US", false},
		{"030 12345678", "DE", true},
		{"0612345678", "NL", false},
		{"612345678", "NL", true},
		{"12345678", "ZZ", true},
		{"12345", "ZZ", false},
		{"call-me-maybe", "US", false},
		{"", "US", false},
	}

	for _, c := range cases {
		if got := IsValidPhone(c.phone, c.country); got != c.want {
			t.Errorf("IsValidPhone(%q, %q) = %v, want %v", c.phone, c.country, got, c.want)
		}
	}
}

func TestIsValidPostalCode(t *testing.T) {
	cases := []struct {
		code    string
		country string
		want    bool
	}{
		{"94105", "US", true},
		{"94105-1234", "US", true},
		{"9410", "US", false},
		{"K1A 0B1", "CA", true},
		{"K1A0B1", "CA", true},
		{"12345", "CA", false},
		{"SW1A 1AA", "GB", true},
		{"10115", "DE", true},
		{"1011 AB", "NL", true},
		{"100-0001", "JP", true},
		{"2000", "AU", true},
		{"ABC 123", "ZZ", true},
		{"", "ZZ", false},
	}

	for _, c := range cases {
		if got := IsValidPostalCode(c.code, c.country); got != c.want {
			t.Errorf("IsValidPostalCode(%q, %q) = %v, want %v", c.code, c.country, got, c.want)
		}
	}
}

func TestIsValidName(t *testing.T) {
	if !IsValidName("Ada") {
		t.Error("short name rejected")
	}
	if IsValidName("") {
		t.Error("empty name accepted")
	}
	long := make([]byte, 101)
	for i := range long {
		long[i] = 'a'
	}
	if IsValidName(string(long)) {
		t.Error("overlong name accepted")
	}
}
