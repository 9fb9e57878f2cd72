package analyses

const resultDisclaimer = "This analysis is an automated reading of the policy wording and is not financial or legal advice. Verify critical terms against the official policy document and consult your insurer or advisor before making decisions."

// FormatResult buckets classified features into the four output arrays and
// fills in summary counts, the disclaimer, and result metadata. Features with
// an unknown category land in needsClarification so the arrays always
// partition the input.
func FormatResult(info PolicyInfo, features []Feature, meta Meta) AnalysisResult {
	result := AnalysisResult{
		PolicyInfo:         info,
		GreatFeatures:      []Feature{},
		GoodFeatures:       []Feature{},
		RedFlags:           []Feature{},
		NeedsClarification: []Feature{},
		Disclaimer:         resultDisclaimer,
		Meta:               meta,
	}

	for _, f := range features {
		switch f.Category {
		case CategoryGreat:
			result.GreatFeatures = append(result.GreatFeatures, f)
		case CategoryGood:
			result.GoodFeatures = append(result.GoodFeatures, f)
		case CategoryRedFlag:
			result.RedFlags = append(result.RedFlags, f)
		default:
			f.Category = CategoryUnclear
			result.NeedsClarification = append(result.NeedsClarification, f)
		}
	}

	result.Summary = Summary{
		TotalFeatures:      len(features),
		GreatCount:         len(result.GreatFeatures),
		GoodCount:          len(result.GoodFeatures),
		RedFlagCount:       len(result.RedFlags),
		ClarificationCount: len(result.NeedsClarification),
	}
	return result
}
