package analyses

import "strings"

// MergeExtractions combines per-chunk extraction payloads into one. Duplicate
// feature IDs keep the most complete version (longest quote, then longest
// value); policyInfo fields keep the first non-empty occurrence. Feature
// order follows first appearance so output is stable across runs.
func MergeExtractions(payloads []ExtractionPayload) ExtractionPayload {
	var merged ExtractionPayload
	byID := make(map[string]int)

	for _, p := range payloads {
		mergePolicyInfo(&merged.PolicyInfo, p.PolicyInfo)
		for _, f := range p.Features {
			id := normalizeFeatureID(f.ID)
			if id == "" {
				continue
			}
			f.ID = id
			idx, seen := byID[id]
			if !seen {
				byID[id] = len(merged.Features)
				merged.Features = append(merged.Features, f)
				continue
			}
			if preferFeature(f, merged.Features[idx]) {
				merged.Features[idx] = f
			}
		}
	}
	return merged
}

func mergePolicyInfo(dst *PolicyInfo, src PolicyInfo) {
	if dst.Name == "" {
		dst.Name = strings.TrimSpace(src.Name)
	}
	if dst.Insurer == "" {
		dst.Insurer = strings.TrimSpace(src.Insurer)
	}
	if dst.SumInsured == "" {
		dst.SumInsured = strings.TrimSpace(src.SumInsured)
	}
	if dst.PolicyType == "" {
		dst.PolicyType = strings.TrimSpace(src.PolicyType)
	}
}

// preferFeature reports whether candidate should replace current. A concrete
// value beats "not mentioned"; otherwise the longer quote wins, then the
// longer value.
func preferFeature(candidate, current ExtractFeature) bool {
	if isMentioned(candidate.Value) && !isMentioned(current.Value) {
		return true
	}
	if !isMentioned(candidate.Value) && isMentioned(current.Value) {
		return false
	}
	if len(candidate.Quote) != len(current.Quote) {
		return len(candidate.Quote) > len(current.Quote)
	}
	return len(candidate.Value) > len(current.Value)
}

func isMentioned(value string) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	return v != "" && v != "not mentioned" && v != "n/a" && v != "unknown"
}

func normalizeFeatureID(id string) string {
	id = strings.ToLower(strings.TrimSpace(id))
	id = strings.ReplaceAll(id, " ", "_")
	id = strings.ReplaceAll(id, "-", "_")
	return id
}
