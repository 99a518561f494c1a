package credpool

import (
	"strings"

	"github.com/tbourn/go-timetable-notifier/internal/domain"
)

// Plan is the set of changes that makes the stored credentials match a
// configured list of secrets.
type Plan struct {
	ToAdd        []string `json:"to_add"`
	ToDeactivate []string `json:"to_deactivate"`
	ToReactivate []string `json:"to_reactivate"`
}

// Empty reports whether applying the plan is a no-op.
func (p Plan) Empty() bool {
	return len(p.ToAdd) == 0 && len(p.ToDeactivate) == 0 && len(p.ToReactivate) == 0
}

// Reconcile computes the plan for the configured secrets against stored.
// ToAdd holds secrets; ToDeactivate and ToReactivate hold credential ids.
// Configured secrets are trimmed and deduplicated, blanks are ignored.
func Reconcile(configured []string, stored []domain.Credential) Plan {
	want := make(map[string]struct{}, len(configured))
	ordered := make([]string, 0, len(configured))
	for _, s := range configured {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := want[s]; dup {
			continue
		}
		want[s] = struct{}{}
		ordered = append(ordered, s)
	}

	have := make(map[string]struct{}, len(stored))
	var plan Plan
	for _, c := range stored {
		have[c.Secret] = struct{}{}
		_, configuredNow := want[c.Secret]
		switch {
		case configuredNow && !c.IsActive:
			plan.ToReactivate = append(plan.ToReactivate, c.ID)
		case !configuredNow && c.IsActive:
			plan.ToDeactivate = append(plan.ToDeactivate, c.ID)
		}
	}
	for _, s := range ordered {
		if _, ok := have[s]; !ok {
			plan.ToAdd = append(plan.ToAdd, s)
		}
	}
	return plan
}
