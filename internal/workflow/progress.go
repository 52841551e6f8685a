package workflow

import "github.com/Kamar-Folarin/brand-sync/internal/models"

// Phase is a slice of a job's 0-100 progress range
type Phase struct {
	Name   string
	Label  string
	Start  int
	Weight int
}

// At returns overall progress after done of total items in the phase. A phase
// with nothing to do counts as finished.
func (p Phase) At(done, total int) int {
	if total <= 0 {
		return models.ClampProgress(p.Start + p.Weight)
	}
	if done > total {
		done = total
	}
	return models.ClampProgress(p.Start + p.Weight*done/total)
}

// End is the progress value once the phase is complete
func (p Phase) End() int {
	return models.ClampProgress(p.Start + p.Weight)
}

var (
	phaseBrands    = Phase{Name: "brands", Label: "Syncing brand directory", Start: 0, Weight: 10}
	phasePrompts   = Phase{Name: "prompts", Label: "Syncing prompts", Start: 10, Weight: 30}
	phaseResponses = Phase{Name: "responses", Label: "Syncing responses", Start: 40, Weight: 25}
	phaseTraffic   = Phase{Name: "ga4", Label: "Syncing GA4 traffic", Start: 65, Weight: 20}
	phaseRankings  = Phase{Name: "agency_analytics", Label: "Syncing keyword rankings", Start: 85, Weight: 15}

	phaseProperties = Phase{Name: "properties", Label: "Syncing GA4 properties", Start: 0, Weight: 100}

	phaseCampaigns       = Phase{Name: "campaigns", Label: "Syncing campaigns", Start: 0, Weight: 15}
	phaseCampaignRanking = Phase{Name: "rankings", Label: "Syncing keyword rankings", Start: 15, Weight: 85}
)
