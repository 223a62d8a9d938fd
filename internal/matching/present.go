package matching

import (
	"math"
	"strings"
)

// NoDescription stands in for a blank description.
const NoDescription = "No description"

type RankedItem struct {
	Rank          int      `json:"rank"`
	OpportunityID int64    `json:"opportunityId"`
	Title         string   `json:"title"`
	Type          string   `json:"type"`
	Description   string   `json:"description"`
	Score         float64  `json:"score"`
	Percent       int      `json:"percent"`
	Band          Band     `json:"band"`
	Reasons       []string `json:"reasons"`
}

// View is a rendered match response. Empty means "no results", which is
// a successful outcome.
type View struct {
	StudentUserID int64        `json:"studentUserId"`
	Total         int          `json:"totalOpportunities"`
	Empty         bool         `json:"empty"`
	Items         []RankedItem `json:"items"`
}

// Present ranks results in the order the service returned them.
func Present(resp *MatchResponse) View {
	if resp == nil {
		return View{Empty: true, Items: []RankedItem{}}
	}

	items := make([]RankedItem, 0, len(resp.Results))
	for i, r := range resp.Results {
		desc := r.Description
		if strings.TrimSpace(desc) == "" {
			desc = NoDescription
		}
		items = append(items, RankedItem{
			Rank:          i + 1,
			OpportunityID: r.OpportunityID,
			Title:         r.Title,
			Type:          r.Type,
			Description:   desc,
			Score:         r.Score,
			Percent:       int(math.Round(r.Score * 100)),
			Band:          ClassifyScore(r.Score),
			Reasons:       append([]string{}, r.MatchReasons...),
		})
	}

	return View{
		StudentUserID: resp.StudentUserID,
		Total:         resp.TotalOpportunities,
		Empty:         len(items) == 0,
		Items:         items,
	}
}

// ByBand returns the items in band, keeping rank order.
func (v View) ByBand(band Band) []RankedItem {
	var out []RankedItem
	for _, item := range v.Items {
		if item.Band == band {
			out = append(out, item)
		}
	}
	return out
}

func (v View) clone() View {
	items := make([]RankedItem, len(v.Items))
	for i, item := range v.Items {
		item.Reasons = append([]string{}, item.Reasons...)
		items[i] = item
	}
	v.Items = items
	return v
}
