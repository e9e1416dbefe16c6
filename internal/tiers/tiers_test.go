package tiers

import "testing"

func TestSelect_Boundaries(t *testing.T) {
	table := Default()
	cases := []struct {
		tokens int
		want   string
	}{
		{0, "gpt-35-turbo"},
		{799, "gpt-35-turbo"},
		{800, "gpt-4o-mini"},
		{1799, "gpt-4o-mini"},
		{1800, "gpt-4o"},
		{100000, "gpt-4o"},
	}
	for _, tc := range cases {
		if got := table.Select(tc.tokens); got != tc.want {
			t.Errorf("Select(%d) = %q, want %q", tc.tokens, got, tc.want)
		}
	}
}

func TestSelect_Monotonic(t *testing.T) {
	table := Default()
	rank := map[string]int{}
	for i, m := range table.Models() {
		rank[m] = i
	}

	prev := -1
	for tokens := 0; tokens <= 3000; tokens += 50 {
		r := rank[table.Select(tokens)]
		if r < prev {
			t.Fatalf("tier rank decreased at %d tokens", tokens)
		}
		prev = r
	}
}

func TestNew_RejectsNonMonotonic(t *testing.T) {
	_, err := New([]Threshold{
		{Below: 1800, Model: "a"},
		{Below: 800, Model: "b"},
	}, "c")
	if err == nil {
		t.Fatal("New accepted decreasing bounds")
	}

	_, err = New([]Threshold{
		{Below: 800, Model: "a"},
		{Below: 800, Model: "b"},
	}, "c")
	if err == nil {
		t.Fatal("New accepted duplicate bounds")
	}

	_, err = New(nil, "")
	if err == nil {
		t.Fatal("New accepted empty fallback")
	}
}

func TestParse(t *testing.T) {
	table, err := Parse("800:low,1800:mid,high")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := table.Select(799); got != "low" {
		t.Errorf("Select(799) = %q", got)
	}
	if got := table.Select(1800); got != "high" {
		t.Errorf("Select(1800) = %q", got)
	}

	if _, err := Parse("800:low,mid:oops:"); err == nil {
		t.Error("Parse accepted malformed entry")
	}
	if _, err := Parse("800:low,900:mid"); err == nil {
		t.Error("Parse accepted trailing threshold without fallback")
	}
}
