package nurture

import (
	"time"

	"github.com/checkfox/go_crm/internal/models"
)

// Eligible reports whether a lead matches a sequence's trigger right now.
// The caller is responsible for ruling out leads already actively enrolled in
// the same sequence.
func Eligible(lead *models.Lead, seq *models.NurturingSequence, now time.Time) bool {
	if !seq.IsActive {
		return false
	}
	if lead.Status.IsClosed() && seq.TriggerType != models.TriggerStatusChange {
		return false
	}
	if !matchAllowList(lead.LeadSource, seq.LeadSources) {
		return false
	}
	if !matchAllowList(lead.LeadType, seq.LeadTypes) {
		return false
	}

	switch seq.TriggerType {
	case models.TriggerNewLead:
		return lead.Status == models.LeadStatusNew

	case models.TriggerNoContact:
		if lead.LastContactDate != nil {
			return false
		}
		return daysBetween(lead.CreatedAt, now) >= seq.TriggerConditions.DaysWithoutContact

	case models.TriggerInactivity:
		return daysBetween(lead.LastTouch(), now) >= seq.TriggerConditions.DaysWithoutContact

	case models.TriggerStatusChange:
		return seq.TriggerConditions.TargetStatus != "" &&
			lead.Status == seq.TriggerConditions.TargetStatus

	default:
		return false
	}
}

// matchAllowList returns true when the list is empty (match all) or contains
// the value. A lead without the attribute only matches an empty list.
func matchAllowList(value *string, allowList []string) bool {
	if len(allowList) == 0 {
		return true
	}
	if value == nil {
		return false
	}
	for _, allowed := range allowList {
		if *value == allowed {
			return true
		}
	}
	return false
}

func daysBetween(from, to time.Time) int {
	if from.After(to) {
		return 0
	}
	return int(to.Sub(from).Hours() / 24)
}
