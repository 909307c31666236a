package listing

// Diff returns the snapshots of current whose id is not in previous, in
// current's order. Only id membership is compared: a known product whose
// price or description changed is not new. An empty previous set makes every
// current item new.
func Diff(current, previous *Set) []Snapshot {
	if current.Len() == 0 {
		return nil
	}
	var out []Snapshot
	for _, k := range current.keys {
		if !previous.Has(k) {
			out = append(out, current.items[k])
		}
	}
	return out
}
