package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/confera/attendance/internal/model"
	"github.com/confera/attendance/internal/repository"
)

// Memory is an in-memory Store used by tests and local runs without a
// database.  A single mutex serialises every operation, so the memory
// store is trivially serializable; Within snapshots state on entry and
// restores it when the callback fails, matching transactional rollback.
type Memory struct {
	mu sync.Mutex
	st memState
}

type memState struct {
	events     map[uint64]model.Event
	regs       map[uint64]model.Registration
	waitlist   map[uint64]model.WaitlistEntry
	attendance map[uint64]model.AttendanceRecord
	penalties  []model.NoShowPenalty
	payments   map[uint64]model.PaymentState
	nextID     uint64
	seq        int64
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{st: memState{
		events:     map[uint64]model.Event{},
		regs:       map[uint64]model.Registration{},
		waitlist:   map[uint64]model.WaitlistEntry{},
		attendance: map[uint64]model.AttendanceRecord{},
		payments:   map[uint64]model.PaymentState{},
	}}
}

// PutEvent seeds or replaces an event.
func (m *Memory) PutEvent(ev model.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ev.ID == 0 {
		ev.ID = m.st.id()
	}
	m.st.events[ev.ID] = ev
}

func (s *memState) id() uint64 {
	s.nextID++
	return s.nextID
}

// stamp returns a strictly increasing timestamp so created_at keeps the
// arrival order even when calls land inside the same wall-clock tick.
func (s *memState) stamp() time.Time {
	s.seq++
	return time.Now().UTC().Add(time.Duration(s.seq) * time.Microsecond)
}

func (s *memState) clone() memState {
	c := memState{
		events:     make(map[uint64]model.Event, len(s.events)),
		regs:       make(map[uint64]model.Registration, len(s.regs)),
		waitlist:   make(map[uint64]model.WaitlistEntry, len(s.waitlist)),
		attendance: make(map[uint64]model.AttendanceRecord, len(s.attendance)),
		penalties:  append([]model.NoShowPenalty(nil), s.penalties...),
		payments:   make(map[uint64]model.PaymentState, len(s.payments)),
		nextID:     s.nextID,
		seq:        s.seq,
	}
	for k, v := range s.events {
		c.events[k] = v
	}
	for k, v := range s.regs {
		c.regs[k] = v
	}
	for k, v := range s.waitlist {
		c.waitlist[k] = v
	}
	for k, v := range s.attendance {
		c.attendance[k] = v
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	return c
}

// Within serialises the callback under the store mutex and restores the
// pre-call snapshot when fn fails.
func (m *Memory) Within(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := m.st.clone()
	if err := fn(&memTx{st: &m.st}); err != nil {
		m.st = snapshot
		return err
	}
	return nil
}

func (m *Memory) GetEvent(ctx context.Context, id uint64) (*model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.st.events[id]
	if !ok {
		return nil, repository.ErrEventNotFound
	}
	return &ev, nil
}

func (m *Memory) ListOpenEventIDs(ctx context.Context) ([]uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uint64
	for id, ev := range m.st.events {
		if ev.RegistrationOpen {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *Memory) ListUpcomingOpen(ctx context.Context, from, to time.Time) ([]model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var events []model.Event
	for _, ev := range m.st.events {
		if ev.RegistrationOpen && !ev.EventDate.Before(from) && !ev.EventDate.After(to) {
			events = append(events, ev)
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].EventDate.Before(events[j].EventDate) })
	return events, nil
}

func (m *Memory) ListRegistrations(ctx context.Context, eventID uint64) ([]model.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.listRegistrations(eventID, ""), nil
}

func (m *Memory) ListConfirmed(ctx context.Context, eventID uint64) ([]model.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.listRegistrations(eventID, model.StatusConfirmed), nil
}

func (s *memState) listRegistrations(eventID uint64, status string) []model.Registration {
	regs := make([]model.Registration, 0)
	for _, reg := range s.regs {
		if reg.EventID != eventID {
			continue
		}
		if status != "" && reg.Status != status {
			continue
		}
		regs = append(regs, reg)
	}
	sort.Slice(regs, func(i, j int) bool {
		if regs[i].CreatedAt.Equal(regs[j].CreatedAt) {
			return regs[i].ID < regs[j].ID
		}
		return regs[i].CreatedAt.Before(regs[j].CreatedAt)
	})
	return regs
}

func (m *Memory) ListWaitlist(ctx context.Context, eventID uint64) ([]model.WaitlistEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.listWaitlist(eventID, -1), nil
}

func (s *memState) listWaitlist(eventID uint64, limit int64) []model.WaitlistEntry {
	entries := make([]model.WaitlistEntry, 0)
	for _, e := range s.waitlist {
		if e.EventID == eventID {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].ID < entries[j].ID
		}
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	if limit >= 0 && int64(len(entries)) > limit {
		entries = entries[:limit]
	}
	return entries
}

func (m *Memory) ListAttendance(ctx context.Context, eventID uint64) ([]model.AttendanceView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	views := make([]model.AttendanceView, 0)
	for _, reg := range m.st.listRegistrations(eventID, "") {
		v := model.AttendanceView{
			RegistrationID: reg.ID,
			AttendeeEmail:  reg.AttendeeEmail,
			Status:         reg.Status,
		}
		if rec, ok := m.st.attendance[reg.ID]; ok {
			t := rec.CheckInTime
			method := rec.CheckInMethod
			v.CheckInTime = &t
			v.CheckInMethod = &method
		}
		views = append(views, v)
	}
	return views, nil
}

// memTx mutates the live state directly; Within already holds the lock
// and keeps a snapshot for rollback.
type memTx struct {
	st *memState
}

func (t *memTx) EventForUpdate(ctx context.Context, id uint64) (*model.Event, error) {
	ev, ok := t.st.events[id]
	if !ok {
		return nil, repository.ErrEventNotFound
	}
	return &ev, nil
}

func (t *memTx) SetRegistrationOpen(ctx context.Context, id uint64, open bool) error {
	ev, ok := t.st.events[id]
	if !ok {
		return repository.ErrEventNotFound
	}
	ev.RegistrationOpen = open
	t.st.events[id] = ev
	return nil
}

func (t *memTx) CreateRegistration(ctx context.Context, reg *model.Registration) error {
	reg.ID = t.st.id()
	reg.CreatedAt = t.st.stamp()
	reg.UpdatedAt = reg.CreatedAt
	t.st.regs[reg.ID] = *reg
	return nil
}

func (t *memTx) Registration(ctx context.Context, eventID, id uint64) (*model.Registration, error) {
	reg, ok := t.st.regs[id]
	if !ok || reg.EventID != eventID {
		return nil, repository.ErrRegistrationNotFound
	}
	return &reg, nil
}

func (t *memTx) RegistrationByToken(ctx context.Context, token string) (*model.Registration, error) {
	for _, reg := range t.st.regs {
		if reg.CheckInToken == token {
			r := reg
			return &r, nil
		}
	}
	return nil, repository.ErrRegistrationNotFound
}

func (t *memTx) CountActive(ctx context.Context, eventID uint64) (int64, error) {
	var n int64
	for _, reg := range t.st.regs {
		if reg.EventID == eventID && reg.Active() {
			n++
		}
	}
	return n, nil
}

func (t *memTx) HasActiveRegistration(ctx context.Context, eventID uint64, email string) (bool, error) {
	for _, reg := range t.st.regs {
		if reg.EventID == eventID && reg.AttendeeEmail == email && reg.Status != model.StatusCancelled {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) SetRegistrationStatus(ctx context.Context, id uint64, status string) error {
	reg, ok := t.st.regs[id]
	if !ok {
		return repository.ErrRegistrationNotFound
	}
	reg.Status = status
	reg.UpdatedAt = t.st.stamp()
	t.st.regs[id] = reg
	return nil
}

func (t *memTx) ListAbsentees(ctx context.Context, eventID uint64) ([]model.Registration, error) {
	regs := t.st.listRegistrations(eventID, model.StatusConfirmed)
	absentees := make([]model.Registration, 0)
	for _, reg := range regs {
		if _, ok := t.st.attendance[reg.ID]; !ok {
			absentees = append(absentees, reg)
		}
	}
	return absentees, nil
}

func (t *memTx) CreateWaitlistEntry(ctx context.Context, entry *model.WaitlistEntry) error {
	entry.ID = t.st.id()
	entry.CreatedAt = t.st.stamp()
	t.st.waitlist[entry.ID] = *entry
	return nil
}

func (t *memTx) OnWaitlist(ctx context.Context, eventID uint64, email string) (bool, error) {
	for _, e := range t.st.waitlist {
		if e.EventID == eventID && e.AttendeeEmail == email {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) OldestWaitlist(ctx context.Context, eventID uint64, limit int64) ([]model.WaitlistEntry, error) {
	return t.st.listWaitlist(eventID, limit), nil
}

func (t *memTx) DeleteWaitlistEntry(ctx context.Context, id uint64) error {
	delete(t.st.waitlist, id)
	return nil
}

func (t *memTx) Attendance(ctx context.Context, registrationID uint64) (*model.AttendanceRecord, error) {
	rec, ok := t.st.attendance[registrationID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (t *memTx) SaveAttendance(ctx context.Context, rec *model.AttendanceRecord) error {
	t.st.attendance[rec.RegistrationID] = *rec
	return nil
}

func (t *memTx) HasActivePenalty(ctx context.Context, email string, now time.Time) (bool, error) {
	for i := range t.st.penalties {
		p := &t.st.penalties[i]
		if p.AttendeeEmail == email && p.ActiveAt(now) {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) CreatePenalty(ctx context.Context, p *model.NoShowPenalty) error {
	p.ID = t.st.id()
	p.CreatedAt = t.st.stamp()
	t.st.penalties = append(t.st.penalties, *p)
	return nil
}

func (t *memTx) PaymentState(ctx context.Context, registrationID uint64) (*model.PaymentState, error) {
	p, ok := t.st.payments[registrationID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (t *memTx) CreatePaymentState(ctx context.Context, p *model.PaymentState) error {
	t.st.payments[p.RegistrationID] = *p
	return nil
}

func (t *memTx) RecordRefund(ctx context.Context, registrationID uint64, status string, refund *model.RefundState) error {
	p, ok := t.st.payments[registrationID]
	if !ok {
		return nil
	}
	p.Status = status
	p.Refund = refund
	t.st.payments[registrationID] = p
	return nil
}
