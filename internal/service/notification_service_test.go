package service

import (
	"testing"
	"time"

	"github.com/spec-kit/warranty-portal/internal/events"
	"github.com/spec-kit/warranty-portal/internal/workflow"
	apperrors "github.com/spec-kit/warranty-portal/pkg/util/errorutil"
)

func TestNotificationInbox(t *testing.T) {
	f := newFixture(t, workflow.Policy{})
	ticket := f.openTicket(t, f.customer)
	for i := 0; i < 3; i++ {
		f.clock.Advance(time.Minute)
		if _, err := f.messages.PostMessage(f.ctx, f.staff, ticket.ID, "update"); err != nil {
			t.Fatalf("post: %v", err)
		}
	}

	page, err := f.notifications.List(f.ctx, f.customer, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Items) != 2 || page.Unread != 3 {
		t.Fatalf("expected 2 items and 3 unread, got %d/%d", len(page.Items), page.Unread)
	}
	if !page.Items[0].CreatedAt.After(page.Items[1].CreatedAt) {
		t.Fatalf("inbox must be newest first")
	}
	first := page.Items[0]
	if first.Link == nil || *first.Link != "/portal/tickets/"+ticket.ID {
		t.Fatalf("customer link should point to the portal, got %v", first.Link)
	}

	_, err = f.notifications.MarkRead(f.ctx, f.staff, first.ID)
	requireKind(t, err, apperrors.CodeForbidden)
	_, err = f.notifications.MarkRead(f.ctx, f.customer, "missing")
	requireKind(t, err, apperrors.CodeNotFound)

	read, err := f.notifications.MarkRead(f.ctx, f.customer, first.ID)
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if !read.Read || f.unread(t, f.customer) != 2 {
		t.Fatalf("one notification should be read")
	}

	changed, err := f.notifications.MarkAllRead(f.ctx, f.customer)
	if err != nil {
		t.Fatalf("mark all: %v", err)
	}
	if changed != 2 || f.unread(t, f.customer) != 0 {
		t.Fatalf("expected 2 changed and none unread, got %d", changed)
	}
}

func TestStaffNotificationsSkipActor(t *testing.T) {
	f := newFixture(t, workflow.Policy{})
	created, err := f.tickets.CreateTicket(f.ctx, f.staff, TicketCreateInput{OwnerID: f.customer.ID, Fields: lookFields()}, []Upload{photo("a.jpg")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.messages.PostMessage(f.ctx, f.customer, created.Ticket.ID, "hello team"); err != nil {
		t.Fatalf("post: %v", err)
	}
	page, err := f.notifications.List(f.ctx, f.staff2, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Items) != 1 || *page.Items[0].Link != "/admin/tickets/"+created.Ticket.ID {
		t.Fatalf("staff link should point to the admin view: %+v", page.Items)
	}

	for _, event := range f.recorder.OfType(events.EventNotificationCreated) {
		if event.UserID == event.Actor.ID {
			t.Fatalf("actor %s notified about their own action", event.Actor.ID)
		}
	}
}
