// Package rules classifies extracted policy features with deterministic
// threshold tables. Features the tables cannot decide are left to the LLM
// fallback classifier.
package rules

import (
	"regexp"
	"strconv"
	"strings"
)

// Categories mirror the analysis output buckets.
const (
	CategoryGreat   = "GREAT"
	CategoryGood    = "GOOD"
	CategoryRedFlag = "RED_FLAG"
	CategoryUnclear = "UNCLEAR"
)

// Decision is the outcome of running the tables against one feature.
type Decision struct {
	Category    string
	Explanation string
	// Decided is false when no table matched and the LLM fallback should
	// classify the feature.
	Decided bool
}

// Input is one feature as extracted from the policy text.
type Input struct {
	ID    string
	Value string
}

// Engine evaluates features against one versioned ruleset.
type Engine struct {
	version string
	ruleset ruleset
}

// NewEngine returns an engine for the given ruleset version. Unknown versions
// fall back to v1.
func NewEngine(version string) *Engine {
	rs, ok := rulesets[strings.ToLower(strings.TrimSpace(version))]
	if !ok {
		version = "v1"
		rs = rulesets["v1"]
	}
	return &Engine{version: version, ruleset: rs}
}

// Version reports the active ruleset version.
func (e *Engine) Version() string {
	return e.version
}

// Classify runs the threshold tables against one feature.
func (e *Engine) Classify(in Input) Decision {
	if !valueIsConcrete(in.Value) {
		return Decision{
			Category:    CategoryUnclear,
			Explanation: "The policy document does not state this term clearly.",
			Decided:     true,
		}
	}

	switch normalizeID(in.ID) {
	case "ped_waiting_period":
		return classifyMonths(in.Value, e.ruleset.pedWaiting, "pre-existing disease waiting period")
	case "initial_waiting_period":
		return classifyMonths(in.Value, e.ruleset.initialWaiting, "initial waiting period")
	case "specific_disease_waiting", "specific_disease_waiting_period":
		return classifyMonths(in.Value, e.ruleset.specificWaiting, "specific disease waiting period")
	case "co_pay", "copay", "co_payment":
		return classifyCoPay(in.Value)
	case "room_rent", "room_rent_limit":
		return classifyRoomRent(in.Value)
	case "restore_benefit", "restoration_benefit":
		return classifyRestore(in.Value)
	case "ncb", "no_claim_bonus", "cumulative_bonus":
		return classifyNCB(in.Value)
	case "pre_post_hospitalization", "pre_post_hospitalisation":
		return classifyPrePost(in.Value)
	case "daycare", "daycare_procedures", "day_care":
		return classifyDaycare(in.Value)
	}

	return Decision{}
}

// monthBands maps waiting-period month counts to categories.
type monthBands struct {
	greatMax   int // months <= greatMax -> GREAT
	goodMax    int // months <= goodMax -> GOOD
	redFlagMin int // months >= redFlagMin -> RED_FLAG
}

type ruleset struct {
	pedWaiting      monthBands
	initialWaiting  monthBands
	specificWaiting monthBands
}

// Two ruleset versions exist because product guidance on where the PED
// waiting period turns into a red flag differs (37 vs 49 months). Both are
// kept selectable rather than silently picking one.
var rulesets = map[string]ruleset{
	"v1": {
		pedWaiting:      monthBands{greatMax: 23, goodMax: 36, redFlagMin: 37},
		initialWaiting:  monthBands{greatMax: 0, goodMax: 1, redFlagMin: 2},
		specificWaiting: monthBands{greatMax: 12, goodMax: 24, redFlagMin: 25},
	},
	"v2": {
		pedWaiting:      monthBands{greatMax: 23, goodMax: 48, redFlagMin: 49},
		initialWaiting:  monthBands{greatMax: 0, goodMax: 1, redFlagMin: 2},
		specificWaiting: monthBands{greatMax: 12, goodMax: 24, redFlagMin: 25},
	},
}

var (
	monthsRe  = regexp.MustCompile(`(\d+)\s*(?:months?|mos?\b)`)
	yearsRe   = regexp.MustCompile(`(\d+)\s*(?:years?|yrs?\b)`)
	daysRe    = regexp.MustCompile(`(\d+)\s*days?`)
	percentRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`)
)

func classifyMonths(value string, bands monthBands, label string) Decision {
	months, ok := parseMonths(value)
	if !ok {
		return Decision{}
	}
	switch {
	case months <= bands.greatMax:
		return decided(CategoryGreat, label+" of "+formatMonths(months)+" is shorter than most policies offer.")
	case months <= bands.goodMax:
		return decided(CategoryGood, label+" of "+formatMonths(months)+" is in the standard range.")
	case months >= bands.redFlagMin:
		return decided(CategoryRedFlag, label+" of "+formatMonths(months)+" is longer than the market norm.")
	}
	return Decision{}
}

func classifyCoPay(value string) Decision {
	v := strings.ToLower(value)
	if strings.Contains(v, "no co-pay") || strings.Contains(v, "no copay") || strings.Contains(v, "nil") || v == "0%" || strings.Contains(v, "zero") {
		return decided(CategoryGreat, "No co-payment means the insurer pays the full admissible claim.")
	}
	pct, ok := parsePercent(value)
	if !ok {
		return Decision{}
	}
	switch {
	case pct == 0:
		return decided(CategoryGreat, "No co-payment means the insurer pays the full admissible claim.")
	case pct <= 10:
		return decided(CategoryGood, "A co-payment of "+formatPercent(pct)+" is modest but still your share of every claim.")
	default:
		return decided(CategoryRedFlag, "A co-payment of "+formatPercent(pct)+" shifts a large share of every claim to you.")
	}
}

func classifyRoomRent(value string) Decision {
	v := strings.ToLower(value)
	if strings.Contains(v, "no limit") || strings.Contains(v, "no cap") || strings.Contains(v, "any room") || strings.Contains(v, "actuals") || strings.Contains(v, "single private") {
		return decided(CategoryGreat, "No room-rent cap avoids proportional deductions on the whole claim.")
	}
	if pct, ok := parsePercent(value); ok {
		if pct >= 2 {
			return decided(CategoryGood, "A room-rent cap of "+formatPercent(pct)+" of sum insured per day is workable in most cities.")
		}
		return decided(CategoryRedFlag, "A room-rent cap of "+formatPercent(pct)+" of sum insured per day triggers proportional deductions in most hospitals.")
	}
	if strings.Contains(v, "shared") || strings.Contains(v, "general ward") {
		return decided(CategoryRedFlag, "Restricting cover to shared rooms triggers proportional deductions for any upgrade.")
	}
	return Decision{}
}

func classifyRestore(value string) Decision {
	v := strings.ToLower(value)
	switch {
	case strings.Contains(v, "unlimited"):
		return decided(CategoryGreat, "Unlimited restoration refills the sum insured however often it is exhausted.")
	case strings.Contains(v, "100%") || strings.Contains(v, "once"):
		return decided(CategoryGood, "The sum insured restores once per policy year after exhaustion.")
	case strings.Contains(v, "not available") || strings.Contains(v, "no restore") || strings.Contains(v, "none"):
		return decided(CategoryRedFlag, "No restoration benefit leaves you uncovered once the sum insured is exhausted.")
	}
	return Decision{}
}

func classifyNCB(value string) Decision {
	pct, ok := parsePercent(value)
	if !ok {
		return Decision{}
	}
	switch {
	case pct >= 50:
		return decided(CategoryGreat, "A no-claim bonus of "+formatPercent(pct)+" per year grows cover quickly.")
	case pct >= 10:
		return decided(CategoryGood, "A no-claim bonus of "+formatPercent(pct)+" per year is standard.")
	default:
		return decided(CategoryRedFlag, "A no-claim bonus below 10% per year lags the market.")
	}
}

func classifyPrePost(value string) Decision {
	v := strings.ToLower(value)
	preDays, postDays := 0, 0
	if m := daysRe.FindAllStringSubmatch(v, -1); len(m) >= 1 {
		preDays, _ = strconv.Atoi(m[0][1])
		if len(m) >= 2 {
			postDays, _ = strconv.Atoi(m[1][1])
		}
	}
	if preDays == 0 && postDays == 0 {
		return Decision{}
	}
	switch {
	case preDays >= 60 && postDays >= 180:
		return decided(CategoryGreat, "Pre and post hospitalization cover well beyond the usual 30/60 days.")
	case preDays >= 30 && (postDays >= 60 || postDays == 0):
		return decided(CategoryGood, "Pre and post hospitalization cover matches the common 30/60-day window.")
	default:
		return decided(CategoryRedFlag, "Pre and post hospitalization cover is below the common 30/60-day window.")
	}
}

func classifyDaycare(value string) Decision {
	v := strings.ToLower(value)
	if strings.Contains(v, "all day") || strings.Contains(v, "all procedures") || strings.Contains(v, "covered") && !strings.Contains(v, "not covered") {
		return decided(CategoryGood, "Daycare procedures are covered without a hospital stay requirement.")
	}
	if strings.Contains(v, "not covered") || strings.Contains(v, "excluded") {
		return decided(CategoryRedFlag, "Daycare procedures are excluded despite being standard cover.")
	}
	return Decision{}
}

// parseMonths extracts a duration in months from values like "36 months",
// "3 years", or "24-36 months" (worst case wins for ranges).
func parseMonths(value string) (int, bool) {
	v := strings.ToLower(value)
	best := 0
	found := false
	for _, m := range monthsRe.FindAllStringSubmatch(v, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil {
			found = true
			if n > best {
				best = n
			}
		}
	}
	for _, m := range yearsRe.FindAllStringSubmatch(v, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil {
			found = true
			if n*12 > best {
				best = n * 12
			}
		}
	}
	return best, found
}

func parsePercent(value string) (float64, bool) {
	m := percentRe.FindStringSubmatch(strings.ToLower(value))
	if m == nil {
		return 0, false
	}
	pct, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return pct, true
}

func valueIsConcrete(value string) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	return v != "" && v != "not mentioned" && v != "n/a" && v != "unknown" && v != "-"
}

func normalizeID(id string) string {
	id = strings.ToLower(strings.TrimSpace(id))
	id = strings.ReplaceAll(id, " ", "_")
	id = strings.ReplaceAll(id, "-", "_")
	return id
}

func decided(category, explanation string) Decision {
	return Decision{Category: category, Explanation: explanation, Decided: true}
}

func formatMonths(months int) string {
	return strconv.Itoa(months) + " months"
}

func formatPercent(pct float64) string {
	return strconv.FormatFloat(pct, 'f', -1, 64) + "%"
}
