package readmodel

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/spec-kit/warranty-portal/internal/domain"
)

func ticketAt(status domain.TicketStatus, model string, created time.Time, closedAfter time.Duration) domain.Ticket {
	t := domain.Ticket{Status: status, CreatedAt: created}
	t.Model = model
	if closedAfter > 0 {
		closed := created.Add(closedAfter)
		t.ClosedAt = &closed
	}
	return t
}

func TestBuildDashboard(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	day := 24 * time.Hour
	tickets := []domain.Ticket{
		ticketAt(domain.TicketStatusNew, "X", base, 0),
		ticketAt(domain.TicketStatusNew, "X", base, 0),
		ticketAt(domain.TicketStatusInReview, "Y", base, 0),
		ticketAt(domain.TicketStatusAwaitingResponse, "", base, 0),
		ticketAt(domain.TicketStatusApproved, "Z", base, 2*day),
		// reopened: non-terminal but keeps closed_at
		ticketAt(domain.TicketStatusInReview, "Z", base, 5*day),
	}

	d := BuildDashboard(tickets)

	if d.Total != 6 || d.New != 2 || d.InReview != 2 {
		t.Fatalf("counts = %+v", d)
	}
	if d.Open != 5 {
		t.Errorf("Open = %d, want 5", d.Open)
	}
	if d.ResolvedCount != 2 || d.AverageResolutionDays != 4 {
		t.Errorf("resolution = %d tickets / %d days, want 2 / 4", d.ResolvedCount, d.AverageResolutionDays)
	}
	if len(d.TopModels) == 0 || d.TopModels[0].Name != "X" || d.TopModels[0].Count != 2 {
		t.Errorf("TopModels = %+v", d.TopModels)
	}
	wantStatus := []CountEntry{
		{Name: "new", Count: 2},
		{Name: "in_review", Count: 2},
		{Name: "awaiting_response", Count: 1},
		{Name: "approved", Count: 1},
	}
	if len(d.StatusDistribution) != len(wantStatus) {
		t.Fatalf("StatusDistribution = %+v", d.StatusDistribution)
	}
	for i, want := range wantStatus {
		if d.StatusDistribution[i] != want {
			t.Errorf("StatusDistribution[%d] = %+v, want %+v", i, d.StatusDistribution[i], want)
		}
	}
}

func TestBuildDashboardTopModelsLimit(t *testing.T) {
	var tickets []domain.Ticket
	for _, model := range []string{"a", "b", "c", "d", "e", "f", "f"} {
		tickets = append(tickets, ticketAt(domain.TicketStatusNew, model, time.Now(), 0))
	}
	d := BuildDashboard(tickets)
	if len(d.TopModels) != 5 {
		t.Fatalf("len(TopModels) = %d, want 5", len(d.TopModels))
	}
	if d.TopModels[0].Name != "f" {
		t.Errorf("first model = %q, want f", d.TopModels[0].Name)
	}
}

func TestCSVExport(t *testing.T) {
	created := time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)
	solution := domain.SolutionReplacement
	ticket := domain.Ticket{
		ID:           "t-1",
		TicketNumber: 42,
		Status:       domain.TicketStatusApproved,
		Solution:     &solution,
		CreatedAt:    created,
		ClosedAt:     &created,
	}
	ticket.Brand = "Look"
	ticket.Model = `Helmet "X"`
	ticket.ProductName = "Helmet"

	rows := []ExportRow{{
		Ticket: ticket,
		Owner:  &domain.Profile{FullName: "Ana", Email: "ana@example.com", Document: "123"},
		Attachments: []domain.Attachment{
			{Path: "u1/t-1/1_0_a.png"},
			{Path: "u1/t-1/1_1_b.pdf"},
		},
	}}

	var buf bytes.Buffer
	exporter := CSVExporter{PublicBaseURL: "https://files.example.com/warranty/"}
	if err := exporter.Write(&buf, rows); err != nil {
		t.Fatalf("Write: %v", err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, "\ufeff") {
		t.Fatal("missing byte order mark")
	}
	lines := strings.Split(strings.TrimSuffix(strings.TrimPrefix(out, "\ufeff"), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if !strings.HasPrefix(lines[0], `"id";"ticket_number"`) {
		t.Errorf("header = %s", lines[0])
	}
	for _, want := range []string{
		`"42"`,
		`"Helmet ""X"""`,
		`"replacement"`,
		`"2024-05-02T10:00:00Z"`,
		`"https://files.example.com/warranty/u1/t-1/1_0_a.png | https://files.example.com/warranty/u1/t-1/1_1_b.pdf"`,
	} {
		if !strings.Contains(lines[1], want) {
			t.Errorf("row missing %s: %s", want, lines[1])
		}
	}
}
