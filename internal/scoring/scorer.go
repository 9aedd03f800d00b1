package scoring

import (
	"fmt"
	"strings"
	"time"

	"github.com/checkfox/go_crm/internal/models"
)

// MaxScore is the total of all category maximums
const MaxScore = 100

// budgetBonusThreshold is the budget above which the clarity bonus applies.
// The threshold is currency-unit-agnostic; budgets are not normalized before
// scoring.
const budgetBonusThreshold = 100000

// recentWindow bounds which communications count as recent engagement
const recentWindow = 30 * 24 * time.Hour

// Detail is one human-readable line of a category's breakdown
type Detail struct {
	Label string `json:"label"`
	Met   bool   `json:"met"`
}

// Category is the scored outcome of one rule group
type Category struct {
	Name    string   `json:"name"`
	Score   int      `json:"score"`
	Max     int      `json:"max"`
	Details []Detail `json:"details"`
}

// Result is the full outcome of scoring a lead
type Result struct {
	Score     int                        `json:"score"`
	MaxScore  int                        `json:"max_score"`
	Grade     string                     `json:"grade"`
	Status    models.QualificationStatus `json:"status"`
	Breakdown []Category                 `json:"breakdown"`
}

// Input bundles everything the scorer reads. Now is injected so recency
// calculations are deterministic under test.
type Input struct {
	Lead           *models.Lead
	Communications []models.CommunicationEvent
	PropertyViews  []models.PropertyViewEvent
	Now            time.Time
}

// rule is one (predicate, points) entry of a category's scoring table
type rule struct {
	label  string
	points int
	met    func(in *Input) bool
}

// category groups the rules that make up one scoring dimension
type category struct {
	name  string
	max   int
	rules []rule
}

// categories is the declarative scoring model. Category maximums sum to
// MaxScore. Engagement and recency depend on quantities rather than
// predicates and are evaluated separately.
var categories = []category{
	{
		name: "contact_completeness",
		max:  20,
		rules: []rule{
			{"email provided", 8, func(in *Input) bool { return in.Lead.HasEmail() }},
			{"phone provided", 8, func(in *Input) bool { return in.Lead.HasPhone() }},
			{"full name provided", 4, func(in *Input) bool { return in.Lead.HasFullName() }},
		},
	},
	{
		name: "budget_clarity",
		max:  15,
		rules: []rule{
			{"budget specified", 10, func(in *Input) bool {
				return in.Lead.Budget != nil && *in.Lead.Budget > 0
			}},
			{fmt.Sprintf("budget at least %d", budgetBonusThreshold), 5, func(in *Input) bool {
				return in.Lead.Budget != nil && *in.Lead.Budget >= budgetBonusThreshold
			}},
		},
	},
	{
		name: "location_specificity",
		max:  10,
		rules: []rule{
			{"location provided", 7, func(in *Input) bool {
				return in.Lead.Location != nil && *in.Lead.Location != ""
			}},
			{"location is specific", 3, func(in *Input) bool {
				if in.Lead.Location == nil {
					return false
				}
				loc := *in.Lead.Location
				return strings.Contains(loc, ",") || len(loc) > 10
			}},
		},
	},
	{
		name: "intent_signals",
		max:  15,
		rules: []rule{
			{"property type interest set", 5, func(in *Input) bool {
				return in.Lead.PropertyTypeInterest != nil && *in.Lead.PropertyTypeInterest != ""
			}},
			{"detailed message", 5, func(in *Input) bool {
				return in.Lead.Message != nil && len(*in.Lead.Message) > 50
			}},
			{"advanced pipeline status", 5, func(in *Input) bool {
				switch in.Lead.Status {
				case models.LeadStatusQualified, models.LeadStatusProposal, models.LeadStatusNegotiation:
					return true
				default:
					return false
				}
			}},
		},
	},
}

// recencyBands is the days-since-last-contact ladder. Bands are checked in
// order; a touch older than every band scores zero.
var recencyBands = []struct {
	maxDays int
	points  int
}{
	{3, 15},
	{7, 12},
	{14, 8},
	{30, 4},
}

// Score computes the qualification score, grade, and hot/warm/cold status for
// a lead. Pure and deterministic for a fixed now; absent optional fields
// contribute zero to their category and never cause an error.
func Score(lead *models.Lead, communications []models.CommunicationEvent, propertyViews []models.PropertyViewEvent, now time.Time) *Result {
	in := &Input{
		Lead:           lead,
		Communications: communications,
		PropertyViews:  propertyViews,
		Now:            now,
	}

	breakdown := make([]Category, 0, len(categories)+2)
	total := 0

	for _, cat := range categories {
		scored := evalRules(cat, in)
		total += scored.Score
		breakdown = append(breakdown, scored)
	}

	engagement := evalEngagement(in)
	total += engagement.Score

	recency := evalRecency(in)
	total += recency.Score

	// Keep the category order stable: contact, budget, location, engagement,
	// recency, intent.
	ordered := []Category{
		breakdown[0], breakdown[1], breakdown[2],
		engagement, recency,
		breakdown[3],
	}

	return &Result{
		Score:     total,
		MaxScore:  MaxScore,
		Grade:     GradeForScore(total),
		Status:    models.QualificationStatusForScore(total),
		Breakdown: ordered,
	}
}

// GradeForScore maps a total score to a letter grade
func GradeForScore(score int) string {
	switch {
	case score >= 80:
		return "A"
	case score >= 60:
		return "B"
	case score >= 40:
		return "C"
	case score >= 20:
		return "D"
	default:
		return "F"
	}
}

// evalRules scores a predicate-table category
func evalRules(cat category, in *Input) Category {
	result := Category{
		Name:    cat.name,
		Max:     cat.max,
		Details: make([]Detail, 0, len(cat.rules)),
	}

	for _, r := range cat.rules {
		met := r.met(in)
		if met {
			result.Score += r.points
		}
		result.Details = append(result.Details, Detail{Label: r.label, Met: met})
	}

	return result
}

// evalEngagement scores recent communications and property views:
// min(recentCommunications*5, 15) + min(propertyViews*2, 10)
func evalEngagement(in *Input) Category {
	cutoff := in.Now.Add(-recentWindow)

	recentComms := 0
	for _, c := range in.Communications {
		if !c.OccurredAt.Before(cutoff) && !c.OccurredAt.After(in.Now) {
			recentComms++
		}
	}

	commScore := recentComms * 5
	if commScore > 15 {
		commScore = 15
	}

	viewScore := len(in.PropertyViews) * 2
	if viewScore > 10 {
		viewScore = 10
	}

	return Category{
		Name:  "engagement",
		Score: commScore + viewScore,
		Max:   25,
		Details: []Detail{
			{Label: fmt.Sprintf("%d recent communications (+%d)", recentComms, commScore), Met: commScore > 0},
			{Label: fmt.Sprintf("%d property views (+%d)", len(in.PropertyViews), viewScore), Met: viewScore > 0},
		},
	}
}

// evalRecency scores days since the last touch (last contact date, falling
// back to the creation date) against the band ladder
func evalRecency(in *Input) Category {
	days := daysSince(in.Lead.LastTouch(), in.Now)

	points := 0
	for _, band := range recencyBands {
		if days <= band.maxDays {
			points = band.points
			break
		}
	}

	return Category{
		Name:  "recency",
		Score: points,
		Max:   15,
		Details: []Detail{
			{Label: fmt.Sprintf("last contact %d days ago (+%d)", days, points), Met: points > 0},
		},
	}
}

// daysSince returns whole days elapsed, clamped at zero for future timestamps
func daysSince(t, now time.Time) int {
	if t.After(now) {
		return 0
	}
	return int(now.Sub(t).Hours() / 24)
}
