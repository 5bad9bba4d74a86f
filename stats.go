package leadtrack

import "fmt"

// Stats is the dashboard aggregate over all leads.
type Stats struct {
	TotalLeads            int    `json:"totalLeads"`
	DealsClosed           int    `json:"dealsClosed"`
	PropertiesContacted   int    `json:"propertiesContacted"`
	OffersMade            int    `json:"offersMade"`
	ActiveListings        int    `json:"activeListings"`
	PercentageDealsClosed string `json:"percentageDealsClosed"`
}

// ComputeStats folds per-status counts into Stats. Unknown statuses still
// count towards the total.
func ComputeStats(counts map[Status]int) Stats {
	var s Stats
	for st, n := range counts {
		s.TotalLeads += n
		switch st {
		case StatusSale:
			s.DealsClosed += n
		case StatusContact:
			s.PropertiesContacted += n
		case StatusOffer:
			s.OffersMade += n
		case StatusLead:
			s.ActiveListings += n
		}
	}

	pct := 0.0
	if s.TotalLeads > 0 {
		pct = float64(s.DealsClosed) / float64(s.TotalLeads) * 100
	}
	s.PercentageDealsClosed = fmt.Sprintf("%.2f%%", pct)
	return s
}
