package server

import "testing"

func TestNormalizeAddr(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", ":10010"},
		{"8080", ":8080"},
		{":9090", ":9090"},
		{"localhost:8080", "localhost:8080"},
		{"0.0.0.0:10010", "0.0.0.0:10010"},
	}
	for _, c := range cases {
		if got := normalizeAddr(c.in); got != c.want {
			t.Fatalf("normalizeAddr(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
