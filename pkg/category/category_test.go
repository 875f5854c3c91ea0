package category

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"
)

func TestNewThresholds(t *testing.T) {
	tests := []struct {
		name    string
		entries []Entry
		want    []float64
	}{
		{
			name:    "single",
			entries: []Entry{{Name: "cars", Prevalence: 3}},
			want:    []float64{1},
		},
		{
			name: "even split",
			entries: []Entry{
				{Name: "a", Prevalence: 1},
				{Name: "b", Prevalence: 1},
				{Name: "c", Role: Target, Prevalence: 2},
			},
			want: []float64{0.25, 0.5, 1},
		},
		{
			name: "unused weighs nothing",
			entries: []Entry{
				{Name: "a", Prevalence: 1},
				{Name: "b", Role: Unused, Prevalence: 5},
				{Name: "c", Prevalence: 1},
			},
			want: []float64{0.5, 0.5, 1},
		},
		{
			name: "trailing zero",
			entries: []Entry{
				{Name: "a", Prevalence: 1},
				{Name: "b", Prevalence: 0},
			},
			want: []float64{1, 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tab, err := New(tt.entries)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			got := tab.Thresholds()
			for i := range tt.want {
				if math.Abs(got[i]-tt.want[i]) > 1e-12 {
					t.Errorf("threshold[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestNewErrors(t *testing.T) {
	tests := []struct {
		name    string
		entries []Entry
		want    error
	}{
		{"empty", nil, ErrNoCategories},
		{"all zero", []Entry{{Name: "a"}, {Name: "b"}}, ErrNoActiveCategories},
		{"all unused", []Entry{{Name: "a", Role: Unused, Prevalence: 1}}, ErrNoActiveCategories},
		{"negative", []Entry{{Name: "a", Prevalence: -1}}, ErrInvalidPrevalence},
		{"nan", []Entry{{Name: "a", Prevalence: math.NaN()}}, ErrInvalidPrevalence},
		{"no name", []Entry{{Prevalence: 1}}, ErrEmptyName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.entries)
			if !errors.Is(err, tt.want) {
				t.Errorf("New() error = %v, want %v", err, tt.want)
			}
		})
	}
}

// Thresholds stay monotone and end at 1 for arbitrary weights.
func TestThresholdsProperty(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for trial := 0; trial < 500; trial++ {
		n := 1 + r.IntN(12)
		entries := make([]Entry, n)
		for i := range entries {
			entries[i] = Entry{Name: "c", Prevalence: r.Float64() * 10}
		}
		entries[r.IntN(n)].Prevalence += 0.01

		tab, err := New(entries)
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		th := tab.Thresholds()
		for i := 1; i < len(th); i++ {
			if th[i] < th[i-1] {
				t.Fatalf("thresholds not monotone: %v", th)
			}
		}
		if math.Abs(th[len(th)-1]-1) > 1e-12 {
			t.Fatalf("last threshold = %v, want 1", th[len(th)-1])
		}
		var sum float64
		for i := 0; i < tab.Len(); i++ {
			sum += tab.Weight(i)
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Fatalf("weights sum to %v", sum)
		}
	}
}

func TestSelect(t *testing.T) {
	tab, err := New([]Entry{
		{Name: "a", Prevalence: 1},
		{Name: "skip", Prevalence: 0},
		{Name: "b", Prevalence: 1},
		{Name: "c", Prevalence: 2},
	})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		u    float64
		want int
	}{
		{0, 0},
		{0.2499, 0},
		{0.25, 2},
		{0.49, 2},
		{0.5, 3},
		{0.999, 3},
		{1, 3},
	}
	for _, tt := range tests {
		if got := tab.Select(tt.u); got != tt.want {
			t.Errorf("Select(%v) = %d, want %d", tt.u, got, tt.want)
		}
	}
}

func TestRoleText(t *testing.T) {
	for _, r := range []Role{Distractor, Target, Unused} {
		b, _ := r.MarshalText()
		var back Role
		if err := back.UnmarshalText(b); err != nil || back != r {
			t.Errorf("role %v round trip = %v, %v", r, back, err)
		}
	}
	if _, err := ParseRole("bogus"); !errors.Is(err, ErrUnknownRole) {
		t.Errorf("ParseRole(bogus) error = %v", err)
	}
	if Target.Tag() != "TargetObject" || Unused.Tag() != "DistractorObject" {
		t.Error("Tag() mismatch")
	}
	if RoleFromTag("TargetObject") != Target || RoleFromTag("DistractorObject") != Distractor {
		t.Error("RoleFromTag() mismatch")
	}
}
