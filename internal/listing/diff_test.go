package listing

import (
	"fmt"
	"math/rand"
	"testing"
	"time"
)

func item(id string) Snapshot {
	return Snapshot{ID: id, Name: "product " + id, Price: "9.99", CapturedAt: time.Unix(1700000000, 0)}
}

func ids(items []Snapshot) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func TestDiffScenarios(t *testing.T) {
	tests := []struct {
		name     string
		current  *Set
		previous *Set
		want     []string
	}{
		{name: "one new item", current: SetOf(item("1"), item("2")), previous: SetOf(item("1")), want: []string{"2"}},
		{name: "first run reports everything", current: SetOf(item("1")), previous: SetOf(), want: []string{"1"}},
		{name: "nil previous is empty", current: SetOf(item("a"), item("b")), previous: nil, want: []string{"a", "b"}},
		{name: "empty current", current: SetOf(), previous: SetOf(item("1")), want: nil},
		{name: "removed items are not reported", current: SetOf(item("2")), previous: SetOf(item("1"), item("2")), want: nil},
		{name: "order follows current", current: SetOf(item("z"), item("a"), item("m")), previous: SetOf(item("a")), want: []string{"z", "m"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(Diff(tt.current, tt.previous))
			if fmt.Sprint(got) != fmt.Sprint(tt.want) && !(len(got) == 0 && len(tt.want) == 0) {
				t.Fatalf("Diff = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDiffIgnoresFieldChanges(t *testing.T) {
	prev := SetOf(item("1"))
	changed := item("1")
	changed.Price = "19.99"
	changed.Description = "restocked"
	if got := Diff(SetOf(changed), prev); len(got) != 0 {
		t.Fatalf("changed product reported as new: %v", ids(got))
	}
}

func TestDiffIsSetDifference(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 200; round++ {
		a, b := NewSet(0), NewSet(0)
		na, nb := rng.Intn(30), rng.Intn(30)
		for i := 0; i < na; i++ {
			a.Put(item(fmt.Sprint(rng.Intn(40))))
		}
		for i := 0; i < nb; i++ {
			b.Put(item(fmt.Sprint(rng.Intn(40))))
		}

		got := Diff(a, b)
		seen := map[string]bool{}
		for _, it := range got {
			if seen[it.ID] {
				t.Fatalf("round %d: duplicate id %s", round, it.ID)
			}
			seen[it.ID] = true
			if !a.Has(it.ID) || b.Has(it.ID) {
				t.Fatalf("round %d: %s not in A\\B", round, it.ID)
			}
		}
		for _, k := range a.Keys() {
			if !b.Has(k) && !seen[k] {
				t.Fatalf("round %d: missing %s", round, k)
			}
		}
		if len(Diff(a, a)) != 0 {
			t.Fatalf("round %d: Diff(A, A) not empty", round)
		}
		if len(Diff(a, NewSet(0))) != a.Len() {
			t.Fatalf("round %d: Diff(A, {}) != A", round)
		}
	}
}
