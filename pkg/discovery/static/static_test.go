package static

import (
	"context"
	"testing"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"10.0.0.1", []string{"10.0.0.1"}},
		{" 10.0.0.1 , 10.0.0.2 ", []string{"10.0.0.1", "10.0.0.2"}},
		{",,10.0.0.1, ,10.0.0.2,", []string{"10.0.0.1", "10.0.0.2"}},
	}
	for _, c := range cases {
		got := Parse(c.in)
		if len(got) != len(c.want) {
			t.Fatalf("len mismatch for %q: got %d want %d", c.in, len(got), len(c.want))
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Fatalf("[%q] item %d: got %q want %q", c.in, i, got[i], c.want[i])
			}
		}
	}
}

func TestNew(t *testing.T) {
	s := New(" 10.0.0.2 ", "", "10.0.0.1", "10.0.0.2")
	got, err := s.ResolveIPv4(context.Background(), "ignored.example.com")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(got) != 2 || got[0] != "10.0.0.1" || got[1] != "10.0.0.2" {
		t.Fatalf("unexpected addrs: %#v", got)
	}
	// returned slice must not alias internal state
	got[0] = "x"
	got2, _ := s.ListIPv4()
	if got2[0] != "10.0.0.1" {
		t.Fatalf("expected copy, got %#v", got2)
	}
}
