package plans

// Discounts maps a promotional code to a fixed charge amount in minor units.
// Codes match exactly (case-sensitive).
type Discounts map[string]int64

// Apply returns the overriding amount for code, or base when the code is empty
// or unknown.
func (d Discounts) Apply(code string, base int64) (amount int64, applied bool) {
	if code == "" {
		return base, false
	}
	if v, ok := d[code]; ok {
		return v, true
	}
	return base, false
}
