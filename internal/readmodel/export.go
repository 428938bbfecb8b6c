package readmodel

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spec-kit/warranty-portal/internal/domain"
)

const (
	csvSeparator  = ";"
	byteOrderMark = "\ufeff"
	linkSeparator = " | "
)

// ExportHeader is the first CSV row.
var ExportHeader = []string{
	"id",
	"ticket_number",
	"created_at",
	"customer_name",
	"customer_email",
	"customer_document",
	"brand",
	"model",
	"product_name",
	"batch_number",
	"manufacturing_date",
	"status",
	"solution",
	"closed_at",
	"attachments",
}

// ExportRow is one ticket joined with its owner and attachments.
type ExportRow struct {
	Ticket      domain.Ticket
	Owner       *domain.Profile
	Attachments []domain.Attachment
}

// CSVExporter renders ExportRows as a spreadsheet-friendly CSV: UTF-8 BOM,
// semicolon separated, every cell quoted.
type CSVExporter struct {
	// PublicBaseURL prefixes attachment paths to build links.
	PublicBaseURL string
	Location      *time.Location
}

// Write renders rows to w.
func (e CSVExporter) Write(w io.Writer, rows []ExportRow) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(byteOrderMark); err != nil {
		return err
	}
	if err := writeRecord(bw, ExportHeader); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writeRecord(bw, e.Record(row)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Record converts one row to its cells.
func (e CSVExporter) Record(row ExportRow) []string {
	t := row.Ticket
	name, email, document := "", "", ""
	if row.Owner != nil {
		name, email, document = row.Owner.FullName, row.Owner.Email, row.Owner.Document
	}
	manufacturing := ""
	if t.ManufacturingDate != nil {
		manufacturing = t.ManufacturingDate.Format("2006-01-02")
	}
	solution := ""
	if t.Solution != nil {
		solution = string(*t.Solution)
	}
	closedAt := ""
	if t.ClosedAt != nil {
		closedAt = e.formatTime(*t.ClosedAt)
	}
	return []string{
		t.ID,
		strconv.FormatInt(t.TicketNumber, 10),
		e.formatTime(t.CreatedAt),
		name,
		email,
		document,
		t.Brand,
		t.Model,
		t.ProductName,
		t.BatchNumber,
		manufacturing,
		string(t.Status),
		solution,
		closedAt,
		e.links(row.Attachments),
	}
}

func (e CSVExporter) links(attachments []domain.Attachment) string {
	if len(attachments) == 0 {
		return ""
	}
	base := strings.TrimRight(e.PublicBaseURL, "/")
	links := make([]string, 0, len(attachments))
	for _, a := range attachments {
		if base == "" {
			links = append(links, a.Path)
			continue
		}
		links = append(links, base+"/"+strings.TrimLeft(a.Path, "/"))
	}
	return strings.Join(links, linkSeparator)
}

func (e CSVExporter) formatTime(t time.Time) string {
	loc := e.Location
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(time.RFC3339)
}

func writeRecord(w *bufio.Writer, cells []string) error {
	quoted := make([]string, len(cells))
	for i, cell := range cells {
		quoted[i] = `"` + strings.ReplaceAll(cell, `"`, `""`) + `"`
	}
	_, err := w.WriteString(strings.Join(quoted, csvSeparator) + "\n")
	return err
}
