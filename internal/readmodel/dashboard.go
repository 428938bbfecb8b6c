// Package readmodel derives dashboards and exports from persisted tickets.
// Everything here is a pure function of its inputs.
package readmodel

import (
	"math"
	"sort"

	"github.com/spec-kit/warranty-portal/internal/domain"
)

const topModelsLimit = 5

const unknownModel = "unknown"

// CountEntry is one bucket of a distribution.
type CountEntry struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Dashboard aggregates ticket counts and trends.
type Dashboard struct {
	Total    int `json:"total"`
	New      int `json:"new"`
	InReview int `json:"in_review"`
	// Open counts every ticket outside approved, denied and completed.
	Open int `json:"open"`
	// AverageResolutionDays is rounded to whole days over tickets with closed_at.
	AverageResolutionDays int          `json:"average_resolution_days"`
	ResolvedCount         int          `json:"resolved_count"`
	TopModels             []CountEntry `json:"top_models"`
	StatusDistribution    []CountEntry `json:"status_distribution"`
}

// BuildDashboard computes the dashboard over tickets.
func BuildDashboard(tickets []domain.Ticket) Dashboard {
	d := Dashboard{
		Total:              len(tickets),
		TopModels:          []CountEntry{},
		StatusDistribution: []CountEntry{},
	}

	statusCounts := map[domain.TicketStatus]int{}
	modelCounts := map[string]int{}
	var totalHours float64

	for _, ticket := range tickets {
		statusCounts[ticket.Status]++
		switch ticket.Status {
		case domain.TicketStatusNew:
			d.New++
		case domain.TicketStatusInReview:
			d.InReview++
		}
		if !ticket.Status.Terminal() {
			d.Open++
		}
		if ticket.ClosedAt != nil {
			d.ResolvedCount++
			totalHours += ticket.ClosedAt.Sub(ticket.CreatedAt).Hours()
		}
		modelCounts[modelKey(ticket)]++
	}

	if d.ResolvedCount > 0 {
		d.AverageResolutionDays = int(math.Round(totalHours / 24 / float64(d.ResolvedCount)))
	}

	for _, status := range domain.TicketStatuses {
		if n := statusCounts[status]; n > 0 {
			d.StatusDistribution = append(d.StatusDistribution, CountEntry{Name: string(status), Count: n})
		}
	}

	for name, count := range modelCounts {
		d.TopModels = append(d.TopModels, CountEntry{Name: name, Count: count})
	}
	sort.Slice(d.TopModels, func(i, j int) bool {
		if d.TopModels[i].Count != d.TopModels[j].Count {
			return d.TopModels[i].Count > d.TopModels[j].Count
		}
		return d.TopModels[i].Name < d.TopModels[j].Name
	})
	if len(d.TopModels) > topModelsLimit {
		d.TopModels = d.TopModels[:topModelsLimit]
	}
	return d
}

func modelKey(ticket domain.Ticket) string {
	if ticket.Model != "" {
		return ticket.Model
	}
	if ticket.ProductName != "" {
		return ticket.ProductName
	}
	return unknownModel
}
