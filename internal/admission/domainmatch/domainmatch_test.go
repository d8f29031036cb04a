package domainmatch

import "testing"

func TestMatches(t *testing.T) {
	cityDomains := []string{"city.gov.sa"}

	tests := []struct {
		name    string
		address string
		domains []string
		want    bool
	}{
		{"exact match", "staff@city.gov.sa", cityDomains, true},
		{"subdomain dot-suffix match", "staff@mail.city.gov.sa", cityDomains, true},
		{"different domain", "staff@othercity.gov.sa", cityDomains, false},
		{"suffix without dot boundary", "staff@notcity.gov.sa", []string{"city.gov.sa"}, false},
		{"empty allow-list", "staff@city.gov.sa", nil, false},
		{"case-insensitive both sides", "Staff@CITY.gov.SA", []string{"City.Gov.Sa"}, true},
		{"university exact match", "jane@ksu.edu.sa", []string{"ksu.edu.sa"}, true},
		{"malformed, no at sign", "not-an-email", cityDomains, false},
		{"malformed, trailing at", "jane@", cityDomains, false},
		{"malformed, leading at", "@city.gov.sa", cityDomains, false},
		{"blank allow-list entries skipped", "jane@ksu.edu.sa", []string{"", "  ", "ksu.edu.sa"}, true},
		{"second domain in list matches", "jane@lab.example.org", []string{"city.gov.sa", "example.org"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Matches(tt.address, tt.domains); got != tt.want {
				t.Fatalf("Matches(%q, %v) = %v, want %v", tt.address, tt.domains, got, tt.want)
			}
		})
	}
}

func TestMatchedDomain(t *testing.T) {
	domain, ok := MatchedDomain("staff@mail.city.gov.sa", []string{"ksu.edu.sa", "city.gov.sa"})
	if !ok || domain != "city.gov.sa" {
		t.Fatalf("expected city.gov.sa, got %q ok=%v", domain, ok)
	}

	if _, ok := MatchedDomain("staff@elsewhere.sa", []string{"city.gov.sa"}); ok {
		t.Fatalf("expected no match")
	}
}
