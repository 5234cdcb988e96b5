package dispatch

import "safeclicker/models"

// ResolveTargets returns the departments a campaign is sent to. The
// target_audience set wins when it holds at least one id; otherwise the
// primary target department is used. A stored audience with any bad token
// loads as an empty set and therefore also falls back. An empty result means
// the campaign has no target.
func ResolveTargets(c *models.Campaign) models.DepartmentSet {
	if len(c.TargetAudience) > 0 {
		return c.TargetAudience.IDs()
	}
	if c.TargetDepartmentID != nil && *c.TargetDepartmentID != 0 {
		return models.DepartmentSet{*c.TargetDepartmentID}
	}
	return nil
}
