// Package memory is an in-process repository.Store. It keeps the same
// transaction semantics as the Postgres store (rollback on error, nested
// scopes that roll back on their own) and exposes fault hooks for tests.
package memory

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/spec-kit/warranty-portal/internal/domain"
	"github.com/spec-kit/warranty-portal/internal/repository"
)

type state struct {
	tickets          map[string]domain.Ticket
	messages         []domain.Message
	attachments      map[string]domain.Attachment
	notifications    map[string]domain.Notification
	notificationSeq  map[string]int64
	profiles         map[string]domain.Profile
	history          []domain.TicketHistory
	nextTicketNumber int64
	nextSeq          int64
}

func newState() *state {
	return &state{
		tickets:          map[string]domain.Ticket{},
		attachments:      map[string]domain.Attachment{},
		notifications:    map[string]domain.Notification{},
		notificationSeq:  map[string]int64{},
		profiles:         map[string]domain.Profile{},
		nextTicketNumber: 1,
		nextSeq:          1,
	}
}

func (s *state) clone() *state {
	c := &state{
		tickets:          make(map[string]domain.Ticket, len(s.tickets)),
		messages:         append([]domain.Message(nil), s.messages...),
		attachments:      make(map[string]domain.Attachment, len(s.attachments)),
		notifications:    make(map[string]domain.Notification, len(s.notifications)),
		notificationSeq:  make(map[string]int64, len(s.notificationSeq)),
		profiles:         make(map[string]domain.Profile, len(s.profiles)),
		history:          append([]domain.TicketHistory(nil), s.history...),
		nextTicketNumber: s.nextTicketNumber,
		nextSeq:          s.nextSeq,
	}
	for k, v := range s.tickets {
		c.tickets[k] = v
	}
	for k, v := range s.attachments {
		c.attachments[k] = v
	}
	for k, v := range s.notifications {
		c.notifications[k] = v
	}
	for k, v := range s.notificationSeq {
		c.notificationSeq[k] = v
	}
	for k, v := range s.profiles {
		c.profiles[k] = v
	}
	return c
}

type faults struct {
	mu                sync.Mutex
	staleUpdates      int
	notificationErr   error
	commitErr         error
	ticketUpdateCalls int
}

// Store is the in-memory repository.Store.
type Store struct {
	mu     *sync.Mutex
	data   **state
	inTx   bool
	faults *faults
}

// New returns an empty store.
func New() *Store {
	data := newState()
	return &Store{mu: &sync.Mutex{}, data: &data, faults: &faults{}}
}

// InjectStaleVersion makes the next n ticket updates fail with ErrStaleVersion.
func (s *Store) InjectStaleVersion(n int) {
	s.faults.mu.Lock()
	defer s.faults.mu.Unlock()
	s.faults.staleUpdates = n
}

// FailNotificationInserts makes every notification insert return err until
// called again with nil.
func (s *Store) FailNotificationInserts(err error) {
	s.faults.mu.Lock()
	defer s.faults.mu.Unlock()
	s.faults.notificationErr = err
}

// FailCommits makes every outermost transaction roll back with err after its
// body succeeds, until called again with nil.
func (s *Store) FailCommits(err error) {
	s.faults.mu.Lock()
	defer s.faults.mu.Unlock()
	s.faults.commitErr = err
}

// TicketUpdateCalls reports how many ticket updates were attempted.
func (s *Store) TicketUpdateCalls() int {
	s.faults.mu.Lock()
	defer s.faults.mu.Unlock()
	return s.faults.ticketUpdateCalls
}

func (s *Store) Tickets() repository.TicketRepository { return &ticketRepo{s} }

func (s *Store) Messages() repository.MessageRepository { return &messageRepo{s} }

func (s *Store) Attachments() repository.AttachmentRepository { return &attachmentRepo{s} }

func (s *Store) Notifications() repository.NotificationRepository { return &notificationRepo{s} }

func (s *Store) Profiles() repository.ProfileRepository { return &profileRepo{s} }

func (s *Store) History() repository.TicketHistoryRepository { return &historyRepo{s} }

// InTx serializes transactions behind the store mutex. On error the state is
// restored to the snapshot taken when the scope opened.
func (s *Store) InTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !s.inTx {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	snapshot := (*s.data).clone()
	tx := &Store{mu: s.mu, data: s.data, inTx: true, faults: s.faults}
	if err := fn(tx); err != nil {
		*s.data = snapshot
		return err
	}
	if !s.inTx {
		s.faults.mu.Lock()
		commitErr := s.faults.commitErr
		s.faults.mu.Unlock()
		if commitErr != nil {
			*s.data = snapshot
			return commitErr
		}
	}
	return nil
}

// with runs fn against the current state, locking when outside a transaction.
func (s *Store) with(fn func(st *state) error) error {
	if !s.inTx {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	return fn(*s.data)
}

type ticketRepo struct{ s *Store }

func (r *ticketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	return r.s.with(func(st *state) error {
		if _, ok := st.tickets[ticket.ID]; ok {
			return repository.ErrDuplicate
		}
		ticket.TicketNumber = st.nextTicketNumber
		st.nextTicketNumber++
		ticket.Version = 1
		st.tickets[ticket.ID] = copyTicket(*ticket)
		return nil
	})
}

func (r *ticketRepo) Update(_ context.Context, ticket *domain.Ticket, expectedVersion int64) error {
	r.s.faults.mu.Lock()
	r.s.faults.ticketUpdateCalls++
	if r.s.faults.staleUpdates > 0 {
		r.s.faults.staleUpdates--
		r.s.faults.mu.Unlock()
		return repository.ErrStaleVersion
	}
	r.s.faults.mu.Unlock()

	return r.s.with(func(st *state) error {
		current, ok := st.tickets[ticket.ID]
		if !ok {
			return repository.ErrNotFound
		}
		if current.Version != expectedVersion {
			return repository.ErrStaleVersion
		}
		ticket.Version = expectedVersion + 1
		st.tickets[ticket.ID] = copyTicket(*ticket)
		return nil
	})
}

func (r *ticketRepo) Delete(_ context.Context, id string) error {
	return r.s.with(func(st *state) error {
		if _, ok := st.tickets[id]; !ok {
			return repository.ErrNotFound
		}
		delete(st.tickets, id)
		kept := st.messages[:0:0]
		for _, msg := range st.messages {
			if msg.TicketID != id {
				kept = append(kept, msg)
			}
		}
		st.messages = kept
		for aid, att := range st.attachments {
			if att.TicketID == id {
				delete(st.attachments, aid)
			}
		}
		keptHistory := st.history[:0:0]
		for _, h := range st.history {
			if h.TicketID != id {
				keptHistory = append(keptHistory, h)
			}
		}
		st.history = keptHistory
		return nil
	})
}

func (r *ticketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	var out *domain.Ticket
	err := r.s.with(func(st *state) error {
		ticket, ok := st.tickets[id]
		if !ok {
			return repository.ErrNotFound
		}
		c := copyTicket(ticket)
		out = &c
		return nil
	})
	return out, err
}

func (r *ticketRepo) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	var out []domain.Ticket
	err := r.s.with(func(st *state) error {
		for _, ticket := range st.tickets {
			if matches(ticket, filter) {
				out = append(out, copyTicket(ticket))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].TicketNumber > out[j].TicketNumber
	})
	if filter.Limit > 0 {
		offset := filter.Offset
		if offset < 0 {
			offset = 0
		}
		if offset >= len(out) {
			return nil, err
		}
		end := offset + filter.Limit
		if end > len(out) {
			end = len(out)
		}
		out = out[offset:end]
	}
	return out, err
}

func matches(ticket domain.Ticket, filter repository.TicketFilter) bool {
	if filter.OwnerID != nil && ticket.OwnerID != *filter.OwnerID {
		return false
	}
	if len(filter.Statuses) > 0 {
		found := false
		for _, status := range filter.Statuses {
			if ticket.Status == status {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.Brand != nil && strings.TrimSpace(*filter.Brand) != "" &&
		!strings.EqualFold(ticket.Brand, strings.TrimSpace(*filter.Brand)) {
		return false
	}
	if filter.CreatedFrom != nil && ticket.CreatedAt.Before(*filter.CreatedFrom) {
		return false
	}
	if filter.CreatedTo != nil && ticket.CreatedAt.After(*filter.CreatedTo) {
		return false
	}
	if filter.SearchTerm != nil {
		term := strings.ToLower(strings.TrimSpace(*filter.SearchTerm))
		if term != "" {
			haystack := strings.ToLower(strings.Join([]string{
				ticket.ProductName, ticket.Model, ticket.IssueDescription,
			}, " "))
			if !strings.Contains(haystack, term) && !strings.Contains(strconv.FormatInt(ticket.TicketNumber, 10), term) {
				return false
			}
		}
	}
	return true
}

type messageRepo struct{ s *Store }

func (r *messageRepo) Create(_ context.Context, msg *domain.Message) error {
	return r.s.with(func(st *state) error {
		if _, ok := st.tickets[msg.TicketID]; !ok {
			return repository.ErrNotFound
		}
		msg.Seq = st.nextSeq
		st.nextSeq++
		st.messages = append(st.messages, *msg)
		return nil
	})
}

func (r *messageRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.Message, error) {
	var out []domain.Message
	err := r.s.with(func(st *state) error {
		for _, msg := range st.messages {
			if msg.TicketID == ticketID {
				out = append(out, msg)
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Seq < out[j].Seq
	})
	return out, err
}

type attachmentRepo struct{ s *Store }

func (r *attachmentRepo) Create(_ context.Context, attachment *domain.Attachment) error {
	return r.s.with(func(st *state) error {
		if _, ok := st.tickets[attachment.TicketID]; !ok {
			return repository.ErrNotFound
		}
		for _, existing := range st.attachments {
			if existing.ID == attachment.ID ||
				(existing.TicketID == attachment.TicketID && existing.Path == attachment.Path) {
				return repository.ErrDuplicate
			}
		}
		st.attachments[attachment.ID] = *attachment
		return nil
	})
}

func (r *attachmentRepo) GetByID(_ context.Context, id string) (*domain.Attachment, error) {
	var out *domain.Attachment
	err := r.s.with(func(st *state) error {
		attachment, ok := st.attachments[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &attachment
		return nil
	})
	return out, err
}

func (r *attachmentRepo) ListByTicket(ctx context.Context, ticketID string) ([]domain.Attachment, error) {
	return r.ListByTickets(ctx, []string{ticketID})
}

func (r *attachmentRepo) ListByTickets(_ context.Context, ticketIDs []string) ([]domain.Attachment, error) {
	wanted := make(map[string]struct{}, len(ticketIDs))
	for _, id := range ticketIDs {
		wanted[id] = struct{}{}
	}
	var out []domain.Attachment
	err := r.s.with(func(st *state) error {
		for _, attachment := range st.attachments {
			if _, ok := wanted[attachment.TicketID]; ok {
				out = append(out, attachment)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Path < out[j].Path
	})
	return out, err
}

func (r *attachmentRepo) Delete(_ context.Context, id string) error {
	return r.s.with(func(st *state) error {
		if _, ok := st.attachments[id]; !ok {
			return repository.ErrNotFound
		}
		delete(st.attachments, id)
		return nil
	})
}

type notificationRepo struct{ s *Store }

func (r *notificationRepo) Create(_ context.Context, notification *domain.Notification) error {
	r.s.faults.mu.Lock()
	failure := r.s.faults.notificationErr
	r.s.faults.mu.Unlock()
	if failure != nil {
		return failure
	}
	return r.s.with(func(st *state) error {
		if _, ok := st.notifications[notification.ID]; ok {
			return repository.ErrDuplicate
		}
		st.notifications[notification.ID] = *notification
		st.notificationSeq[notification.ID] = st.nextSeq
		st.nextSeq++
		return nil
	})
}

func (r *notificationRepo) GetByID(_ context.Context, id string) (*domain.Notification, error) {
	var out *domain.Notification
	err := r.s.with(func(st *state) error {
		notification, ok := st.notifications[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &notification
		return nil
	})
	return out, err
}

func (r *notificationRepo) ListByUser(_ context.Context, userID string, limit int) ([]domain.Notification, error) {
	var (
		out []domain.Notification
		seq map[string]int64
	)
	err := r.s.with(func(st *state) error {
		for _, notification := range st.notifications {
			if notification.UserID == userID {
				out = append(out, notification)
			}
		}
		seq = make(map[string]int64, len(out))
		for _, n := range out {
			seq[n.ID] = st.notificationSeq[n.ID]
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return seq[out[i].ID] > seq[out[j].ID]
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

func (r *notificationRepo) CountUnread(_ context.Context, userID string) (int, error) {
	count := 0
	err := r.s.with(func(st *state) error {
		for _, notification := range st.notifications {
			if notification.UserID == userID && !notification.Read {
				count++
			}
		}
		return nil
	})
	return count, err
}

func (r *notificationRepo) MarkRead(_ context.Context, id string) error {
	return r.s.with(func(st *state) error {
		notification, ok := st.notifications[id]
		if !ok {
			return repository.ErrNotFound
		}
		notification.Read = true
		st.notifications[id] = notification
		return nil
	})
}

func (r *notificationRepo) MarkAllRead(_ context.Context, userID string) (int, error) {
	count := 0
	err := r.s.with(func(st *state) error {
		for id, notification := range st.notifications {
			if notification.UserID == userID && !notification.Read {
				notification.Read = true
				st.notifications[id] = notification
				count++
			}
		}
		return nil
	})
	return count, err
}

type profileRepo struct{ s *Store }

func (r *profileRepo) Create(_ context.Context, profile *domain.Profile) error {
	return r.s.with(func(st *state) error {
		email := strings.ToLower(profile.Email)
		for _, existing := range st.profiles {
			if existing.ID == profile.ID || existing.Email == email {
				return repository.ErrDuplicate
			}
		}
		stored := *profile
		stored.Email = email
		st.profiles[profile.ID] = stored
		return nil
	})
}

func (r *profileRepo) Update(_ context.Context, profile *domain.Profile) error {
	return r.s.with(func(st *state) error {
		current, ok := st.profiles[profile.ID]
		if !ok {
			return repository.ErrNotFound
		}
		current.FullName = profile.FullName
		current.Document = profile.Document
		current.Phone = profile.Phone
		current.Role = profile.Role
		current.UpdatedAt = profile.UpdatedAt
		st.profiles[profile.ID] = current
		return nil
	})
}

func (r *profileRepo) GetByID(_ context.Context, id string) (*domain.Profile, error) {
	var out *domain.Profile
	err := r.s.with(func(st *state) error {
		profile, ok := st.profiles[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &profile
		return nil
	})
	return out, err
}

func (r *profileRepo) GetByEmail(_ context.Context, email string) (*domain.Profile, error) {
	needle := strings.ToLower(strings.TrimSpace(email))
	var out *domain.Profile
	err := r.s.with(func(st *state) error {
		for _, profile := range st.profiles {
			if profile.Email == needle {
				p := profile
				out = &p
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (r *profileRepo) ListByRole(_ context.Context, role domain.Role) ([]domain.Profile, error) {
	var out []domain.Profile
	err := r.s.with(func(st *state) error {
		for _, profile := range st.profiles {
			if profile.Role == role {
				out = append(out, profile)
			}
		}
		return nil
	})
	sortProfiles(out)
	return out, err
}

func (r *profileRepo) ListByIDs(_ context.Context, ids []string) ([]domain.Profile, error) {
	var out []domain.Profile
	err := r.s.with(func(st *state) error {
		for _, id := range ids {
			if profile, ok := st.profiles[id]; ok {
				out = append(out, profile)
			}
		}
		return nil
	})
	sortProfiles(out)
	return out, err
}

func sortProfiles(profiles []domain.Profile) {
	sort.Slice(profiles, func(i, j int) bool {
		if profiles[i].FullName != profiles[j].FullName {
			return profiles[i].FullName < profiles[j].FullName
		}
		return profiles[i].ID < profiles[j].ID
	})
}

type historyRepo struct{ s *Store }

func (r *historyRepo) Create(_ context.Context, history *domain.TicketHistory) error {
	return r.s.with(func(st *state) error {
		st.history = append(st.history, *history)
		return nil
	})
}

func (r *historyRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketHistory, error) {
	var out []domain.TicketHistory
	err := r.s.with(func(st *state) error {
		for _, h := range st.history {
			if h.TicketID == ticketID {
				out = append(out, h)
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, err
}

func copyTicket(t domain.Ticket) domain.Ticket {
	if t.Solution != nil {
		s := *t.Solution
		t.Solution = &s
	}
	if t.ClosedAt != nil {
		c := *t.ClosedAt
		t.ClosedAt = &c
	}
	if t.ManufacturingDate != nil {
		d := *t.ManufacturingDate
		t.ManufacturingDate = &d
	}
	return t
}
