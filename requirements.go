package cfgprobe

// Requirement describes a gate condition consumable by [Check].
//
// Built-in implementations include:
//   - [Feature]
//   - [FeatureGroup]
type Requirement interface {
	isRequirement()
}

// FeatureGroup is a reusable set of [Requirement] items.
type FeatureGroup []Requirement

func (Feature) isRequirement()      {}
func (FeatureGroup) isRequirement() {}

type requirementSet struct {
	features     []Feature
	seenFeatures map[Feature]struct{}
}

func normalizeRequirements(required []Requirement) requirementSet {
	rs := requirementSet{
		seenFeatures: map[Feature]struct{}{},
	}
	for _, req := range required {
		rs.add(req)
	}
	return rs
}

func (rs *requirementSet) add(req Requirement) {
	switch r := req.(type) {
	case Feature:
		if _, ok := rs.seenFeatures[r]; ok {
			return
		}
		rs.seenFeatures[r] = struct{}{}
		rs.features = append(rs.features, r)
	case FeatureGroup:
		for _, nested := range r {
			if nested == nil {
				continue
			}
			rs.add(nested)
		}
	}
}
