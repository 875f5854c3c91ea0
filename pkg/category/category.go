// Package category holds the category table used to draw objects for a trial.
package category

import (
	"fmt"
	"math"
	"strings"
)

// Role is the part a category plays in a session.
type Role int

const (
	Distractor Role = iota
	Target
	Unused
)

// String returns the role name as written in session headers.
func (r Role) String() string {
	switch r {
	case Distractor:
		return "Distractor"
	case Target:
		return "Target"
	case Unused:
		return "Unused"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// Tag returns the object tag for the role: TargetObject or DistractorObject.
func (r Role) Tag() string {
	if r == Target {
		return "TargetObject"
	}
	return "DistractorObject"
}

// ParseRole parses a role name. Matching ignores case.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "distractor":
		return Distractor, nil
	case "target":
		return Target, nil
	case "unused":
		return Unused, nil
	}
	return Distractor, fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(b []byte) error {
	role, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = role
	return nil
}

// RoleFromTag maps an object tag back to its role.
func RoleFromTag(tag string) Role {
	if tag == "TargetObject" {
		return Target
	}
	return Distractor
}

// Entry is one category as declared for a session.
type Entry struct {
	Name       string  `yaml:"name" json:"name"`
	Role       Role    `yaml:"role" json:"role"`
	Prevalence float64 `yaml:"prevalence" json:"prevalence"`
}

// Table is an immutable set of categories with normalized prevalences and
// cumulative selection thresholds. Build it with New.
type Table struct {
	entries    []Entry
	weights    []float64
	thresholds []float64
}

// New validates entries and builds a table.
//
// Unused categories keep their declared prevalence in Entries but weigh
// nothing in selection. The remaining weights are normalized to sum to 1 and
// the last threshold is pinned to exactly 1.
func New(entries []Entry) (*Table, error) {
	if len(entries) == 0 {
		return nil, ErrNoCategories
	}

	t := &Table{
		entries:    append([]Entry(nil), entries...),
		weights:    make([]float64, len(entries)),
		thresholds: make([]float64, len(entries)),
	}

	var total float64
	for i, e := range entries {
		if e.Name == "" {
			return nil, fmt.Errorf("%w: entry %d", ErrEmptyName, i)
		}
		if math.IsNaN(e.Prevalence) || math.IsInf(e.Prevalence, 0) || e.Prevalence < 0 {
			return nil, fmt.Errorf("%w: %s=%v", ErrInvalidPrevalence, e.Name, e.Prevalence)
		}
		if e.Role == Unused {
			continue
		}
		t.weights[i] = e.Prevalence
		total += e.Prevalence
	}
	if total == 0 {
		return nil, ErrNoActiveCategories
	}

	last := -1
	var sum float64
	for i := range t.weights {
		t.weights[i] /= total
		sum += t.weights[i]
		t.thresholds[i] = sum
		if t.weights[i] > 0 {
			last = i
		}
	}
	// Rounding can leave the running sum a hair under 1.
	for i := last; i < len(t.thresholds); i++ {
		t.thresholds[i] = 1
	}
	return t, nil
}

// Len returns the number of categories.
func (t *Table) Len() int { return len(t.entries) }

// Entries returns a copy of the declared entries in order.
func (t *Table) Entries() []Entry { return append([]Entry(nil), t.entries...) }

// Entry returns entry i.
func (t *Table) Entry(i int) Entry { return t.entries[i] }

// Names returns the category names in order.
func (t *Table) Names() []string {
	names := make([]string, len(t.entries))
	for i, e := range t.entries {
		names[i] = e.Name
	}
	return names
}

// Weight returns the normalized selection weight of entry i.
func (t *Table) Weight(i int) float64 { return t.weights[i] }

// Thresholds returns a copy of the cumulative thresholds.
func (t *Table) Thresholds() []float64 { return append([]float64(nil), t.thresholds...) }

// Select returns the index of the first category whose threshold exceeds u.
// u is expected in [0, 1); values at or above 1 select the last category
// with a non-zero weight.
func (t *Table) Select(u float64) int {
	for i, th := range t.thresholds {
		if u < th && t.weights[i] > 0 {
			return i
		}
	}
	for i := len(t.weights) - 1; i >= 0; i-- {
		if t.weights[i] > 0 {
			return i
		}
	}
	return 0
}

// Index returns the position of the named category, or -1.
func (t *Table) Index(name string) int {
	for i, e := range t.entries {
		if e.Name == name {
			return i
		}
	}
	return -1
}
