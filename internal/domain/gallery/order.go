package gallery

// Violation kinds reported by ValidateOrder.
const (
	ViolationMissing   = "missing"   // present in the gallery, absent from the proposal
	ViolationUnknown   = "unknown"   // present in the proposal, absent from the gallery
	ViolationDuplicate = "duplicate" // repeated in the proposal beyond its gallery count
)

// Violation is one way a proposed order diverges from gallery membership.
type Violation struct {
	Kind    string `json:"kind"`
	ImageID string `json:"image_id"`
}

// ValidateOrder checks that proposed is a permutation of current and returns
// every violation found, not just the first. An empty result means the
// proposal is a valid reordering.
func ValidateOrder(current, proposed []string) []Violation {
	remaining := make(map[string]int, len(current))
	for _, id := range current {
		remaining[id]++
	}

	var violations []Violation
	for _, id := range proposed {
		switch {
		case remaining[id] > 0:
			remaining[id]--
		case containsID(current, id):
			violations = append(violations, Violation{Kind: ViolationDuplicate, ImageID: id})
		default:
			violations = append(violations, Violation{Kind: ViolationUnknown, ImageID: id})
		}
	}

	for _, id := range current {
		if remaining[id] > 0 {
			violations = append(violations, Violation{Kind: ViolationMissing, ImageID: id})
			remaining[id] = 0
		}
	}

	return violations
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
