package models

import "strings"

// PlanTier describes what a paid plan is exempt from. BypassClasses is
// a comma-separated list of route classes the tier skips entirely
// (e.g. "general,platform"); rows override the config defaults at
// startup.
type PlanTier struct {
	Name          string `gorm:"primaryKey" json:"name"`
	BypassClasses string `json:"bypass_classes"`
	Description   string `json:"description"`
}

func (PlanTier) TableName() string {
	return "plan_tiers"
}

// Bypasses returns the route classes this tier skips.
func (t *PlanTier) Bypasses() []string {
	if strings.TrimSpace(t.BypassClasses) == "" {
		return nil
	}

	parts := strings.Split(t.BypassClasses, ",")
	classes := make([]string, 0, len(parts))
	for _, part := range parts {
		if class := strings.TrimSpace(part); class != "" {
			classes = append(classes, class)
		}
	}

	return classes
}
