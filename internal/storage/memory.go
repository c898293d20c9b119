package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/MarioYanezUrrutia/chatbot-ai-backend/internal/models"
)

// MemoryStore holds all data in memory for tests and local runs
type MemoryStore struct {
	customers     map[uint]*models.Customer
	conversations map[uint]*models.Conversation
	messages      []models.Message

	faqs      map[uint]*models.FaqEntry
	knowledge map[uint]*models.KnowledgeEntry
	unknown   map[uint]*models.UnknownQuestion

	roomTypes map[uint]*models.RoomType
	rooms     map[uint]*models.Room

	reservations map[uint]*models.Reservation
	processes    map[uint]*models.ReservationProcess

	staff    map[string]*models.Staff
	sessions map[string]*models.StaffSession

	// Mutexes for thread safety
	customerMu    sync.RWMutex
	knowledgeMu   sync.RWMutex
	catalogMu     sync.RWMutex
	reservationMu sync.RWMutex // reservations and processes
	staffMu       sync.RWMutex

	// Counters for ID generation
	customerCounter     uint
	conversationCounter uint
	messageCounter      uint
	faqCounter          uint
	knowledgeCounter    uint
	unknownCounter      uint
	roomTypeCounter     uint
	roomCounter         uint
	reservationCounter  uint
	processCounter      uint
	staffCounter        uint
	sessionCounter      uint
}

// NewMemoryStore creates a new in-memory storage
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		customers:     make(map[uint]*models.Customer),
		conversations: make(map[uint]*models.Conversation),
		faqs:          make(map[uint]*models.FaqEntry),
		knowledge:     make(map[uint]*models.KnowledgeEntry),
		unknown:       make(map[uint]*models.UnknownQuestion),
		roomTypes:     make(map[uint]*models.RoomType),
		rooms:         make(map[uint]*models.Room),
		reservations:  make(map[uint]*models.Reservation),
		processes:     make(map[uint]*models.ReservationProcess),
		staff:         make(map[string]*models.Staff),
		sessions:      make(map[string]*models.StaffSession),
	}
}

// Customer operations

func (m *MemoryStore) TouchCustomer(_ context.Context, identity string, channel models.Channel, name string, now time.Time) (*models.Customer, error) {
	m.customerMu.Lock()
	defer m.customerMu.Unlock()

	for _, c := range m.customers {
		if c.Identity == identity {
			c.LastInteractionAt = now
			if name != "" {
				c.Name = name
			}
			cp := *c
			return &cp, nil
		}
	}

	m.customerCounter++
	c := &models.Customer{
		ID:                m.customerCounter,
		Identity:          identity,
		Name:              name,
		Channel:           channel,
		LastInteractionAt: now,
		CreatedAt:         now,
	}
	m.customers[c.ID] = c
	cp := *c
	return &cp, nil
}

func (m *MemoryStore) GetCustomer(_ context.Context, id uint) (*models.Customer, error) {
	m.customerMu.RLock()
	defer m.customerMu.RUnlock()

	c, ok := m.customers[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MemoryStore) GetCustomerByIdentity(_ context.Context, identity string) (*models.Customer, error) {
	m.customerMu.RLock()
	defer m.customerMu.RUnlock()

	for _, c := range m.customers {
		if c.Identity == identity {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) OpenConversation(_ context.Context, customerID uint, now time.Time, idle time.Duration) (*models.Conversation, error) {
	m.customerMu.Lock()
	defer m.customerMu.Unlock()

	for _, c := range m.conversations {
		if c.CustomerID != customerID || !c.Open {
			continue
		}
		if idle <= 0 || now.Sub(c.LastMessageAt) <= idle {
			cp := *c
			return &cp, nil
		}
		c.Open = false
		closed := now
		c.ClosedAt = &closed
	}

	m.conversationCounter++
	c := &models.Conversation{
		ID:            m.conversationCounter,
		CustomerID:    customerID,
		Open:          true,
		LastMessageAt: now,
		CreatedAt:     now,
	}
	m.conversations[c.ID] = c
	cp := *c
	return &cp, nil
}

func (m *MemoryStore) CloseConversations(_ context.Context, customerID uint, now time.Time) error {
	m.customerMu.Lock()
	defer m.customerMu.Unlock()

	for _, c := range m.conversations {
		if c.CustomerID == customerID && c.Open {
			c.Open = false
			closed := now
			c.ClosedAt = &closed
		}
	}
	return nil
}

func (m *MemoryStore) AppendMessage(_ context.Context, msg *models.Message) error {
	m.customerMu.Lock()
	defer m.customerMu.Unlock()

	conv, ok := m.conversations[msg.ConversationID]
	if !ok {
		return ErrNotFound
	}
	m.messageCounter++
	msg.ID = m.messageCounter
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	m.messages = append(m.messages, *msg)
	conv.LastMessageAt = msg.CreatedAt
	return nil
}

func (m *MemoryStore) CountMessages(_ context.Context, conversationID uint, role string) (int64, error) {
	m.customerMu.RLock()
	defer m.customerMu.RUnlock()

	var n int64
	for _, msg := range m.messages {
		if msg.ConversationID == conversationID && (role == "" || msg.Role == role) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) RecentMessages(_ context.Context, conversationID uint, limit int) ([]models.Message, error) {
	m.customerMu.RLock()
	defer m.customerMu.RUnlock()

	var out []models.Message
	for i := len(m.messages) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if m.messages[i].ConversationID == conversationID {
			out = append(out, m.messages[i])
		}
	}
	// chronological order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Messages returns every stored message of a conversation, oldest first.
func (m *MemoryStore) Messages(conversationID uint) []models.Message {
	msgs, _ := m.RecentMessages(context.Background(), conversationID, 0)
	return msgs
}

// Knowledge operations

func (m *MemoryStore) ListFaqs(_ context.Context) ([]models.FaqEntry, error) {
	m.knowledgeMu.RLock()
	defer m.knowledgeMu.RUnlock()

	var out []models.FaqEntry
	for _, f := range m.faqs {
		if f.Active {
			out = append(out, *f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) GetFaq(_ context.Context, id uint) (*models.FaqEntry, error) {
	m.knowledgeMu.RLock()
	defer m.knowledgeMu.RUnlock()

	f, ok := m.faqs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (m *MemoryStore) GreetingFaq(_ context.Context) (*models.FaqEntry, error) {
	m.knowledgeMu.RLock()
	defer m.knowledgeMu.RUnlock()

	for _, f := range m.faqs {
		if f.Active && f.IsDefaultGreeting {
			cp := *f
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) SaveFaq(_ context.Context, faq *models.FaqEntry) error {
	m.knowledgeMu.Lock()
	defer m.knowledgeMu.Unlock()

	for _, f := range m.faqs {
		if f.ID == faq.ID || !strings.EqualFold(f.Label, faq.Label) {
			continue
		}
		if faq.ID != 0 {
			return ErrDuplicate
		}
		// upsert by label
		faq.ID = f.ID
		faq.CreatedAt = f.CreatedAt
	}
	now := time.Now()
	if faq.ID == 0 {
		m.faqCounter++
		faq.ID = m.faqCounter
		faq.CreatedAt = now
	}
	faq.UpdatedAt = now
	if faq.IsDefaultGreeting && faq.Active {
		m.clearGreetingLocked(faq.ID)
	}
	cp := *faq
	m.faqs[faq.ID] = &cp
	return nil
}

func (m *MemoryStore) SetGreeting(_ context.Context, id uint) error {
	m.knowledgeMu.Lock()
	defer m.knowledgeMu.Unlock()

	f, ok := m.faqs[id]
	if !ok {
		return ErrNotFound
	}
	m.clearGreetingLocked(id)
	f.IsDefaultGreeting = true
	f.Active = true
	f.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) clearGreetingLocked(keep uint) {
	for _, f := range m.faqs {
		if f.ID != keep {
			f.IsDefaultGreeting = false
		}
	}
}

func (m *MemoryStore) ListKnowledge(_ context.Context) ([]models.KnowledgeEntry, error) {
	m.knowledgeMu.RLock()
	defer m.knowledgeMu.RUnlock()

	var out []models.KnowledgeEntry
	for _, k := range m.knowledge {
		if k.Active {
			out = append(out, *k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) SaveKnowledge(_ context.Context, entry *models.KnowledgeEntry) error {
	m.knowledgeMu.Lock()
	defer m.knowledgeMu.Unlock()

	if entry.ID == 0 {
		m.knowledgeCounter++
		entry.ID = m.knowledgeCounter
		entry.CreatedAt = time.Now()
	}
	cp := *entry
	m.knowledge[entry.ID] = &cp
	return nil
}

func (m *MemoryStore) RecordUnknownQuestion(_ context.Context, customerID uint, text string, now time.Time) (bool, error) {
	m.knowledgeMu.Lock()
	defer m.knowledgeMu.Unlock()

	hash := models.QuestionHash(text)
	for _, q := range m.unknown {
		if q.CustomerID == customerID && q.TextHash == hash {
			return false, nil
		}
	}
	m.unknownCounter++
	m.unknown[m.unknownCounter] = &models.UnknownQuestion{
		ID:         m.unknownCounter,
		CustomerID: customerID,
		Text:       text,
		TextHash:   hash,
		CreatedAt:  now,
	}
	return true, nil
}

func (m *MemoryStore) ListUnknownQuestions(_ context.Context, includeReviewed bool) ([]models.UnknownQuestion, error) {
	m.knowledgeMu.RLock()
	defer m.knowledgeMu.RUnlock()

	var out []models.UnknownQuestion
	for _, q := range m.unknown {
		if includeReviewed || !q.Reviewed {
			out = append(out, *q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) MarkUnknownQuestionReviewed(_ context.Context, id uint) error {
	m.knowledgeMu.Lock()
	defer m.knowledgeMu.Unlock()

	q, ok := m.unknown[id]
	if !ok {
		return ErrNotFound
	}
	q.Reviewed = true
	return nil
}

// Catalog operations

func (m *MemoryStore) SaveRoomType(_ context.Context, rt *models.RoomType) error {
	m.catalogMu.Lock()
	defer m.catalogMu.Unlock()

	for _, existing := range m.roomTypes {
		if rt.ID == 0 && strings.EqualFold(existing.Name, rt.Name) {
			rt.ID = existing.ID
		}
	}
	if rt.ID == 0 {
		m.roomTypeCounter++
		rt.ID = m.roomTypeCounter
		rt.CreatedAt = time.Now()
	}
	cp := *rt
	m.roomTypes[rt.ID] = &cp
	return nil
}

func (m *MemoryStore) SaveRoom(_ context.Context, room *models.Room) error {
	m.catalogMu.Lock()
	defer m.catalogMu.Unlock()

	for _, existing := range m.rooms {
		if room.ID == 0 && existing.Number == room.Number {
			room.ID = existing.ID
		}
	}
	if room.ID == 0 {
		m.roomCounter++
		room.ID = m.roomCounter
		room.CreatedAt = time.Now()
	}
	cp := *room
	cp.RoomType = nil
	m.rooms[room.ID] = &cp
	return nil
}

func (m *MemoryStore) ListRooms(_ context.Context) ([]models.Room, error) {
	m.catalogMu.RLock()
	defer m.catalogMu.RUnlock()

	var out []models.Room
	for _, r := range m.rooms {
		if r.Active && r.Available {
			out = append(out, m.withTypeLocked(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) GetRoom(_ context.Context, id uint) (*models.Room, error) {
	m.catalogMu.RLock()
	defer m.catalogMu.RUnlock()

	r, ok := m.rooms[id]
	if !ok {
		return nil, ErrNotFound
	}
	room := m.withTypeLocked(r)
	return &room, nil
}

func (m *MemoryStore) withTypeLocked(r *models.Room) models.Room {
	room := *r
	if rt, ok := m.roomTypes[r.RoomTypeID]; ok {
		cp := *rt
		room.RoomType = &cp
	}
	return room
}

// Reservation operations

func (m *MemoryStore) ListRoomReservations(_ context.Context, roomID uint, date time.Time) ([]models.Reservation, error) {
	m.reservationMu.RLock()
	defer m.reservationMu.RUnlock()

	var out []models.Reservation
	for _, r := range m.reservations {
		if r.RoomID == roomID && sameDay(r.Date, date) && r.Holds() {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out, nil
}

// BookProcess runs the overlap check and the insert under one lock, so two
// bookings of the same interval cannot both succeed.
func (m *MemoryStore) BookProcess(_ context.Context, process *models.ReservationProcess, res *models.Reservation) error {
	m.reservationMu.Lock()
	defer m.reservationMu.Unlock()

	p, ok := m.processes[process.ID]
	if !ok || !p.Active() {
		return ErrProcessClosed
	}
	for _, r := range m.reservations {
		if r.RoomID == res.RoomID && sameDay(r.Date, res.Date) && r.Holds() && r.Overlaps(res.StartAt, res.EndAt) {
			return ErrSlotTaken
		}
	}

	now := time.Now()
	m.reservationCounter++
	res.ID = m.reservationCounter
	res.CreatedAt = now
	res.UpdatedAt = now
	cp := *res
	cp.Room = nil
	m.reservations[res.ID] = &cp

	finished := process.UpdatedAt
	if finished.IsZero() {
		finished = now
	}
	id := res.ID
	process.ReservationID = &id
	process.Completed = true
	process.CurrentStep = models.StepCompleted
	process.FinishedAt = &finished
	stored := *process
	m.processes[process.ID] = &stored
	return nil
}

func (m *MemoryStore) GetReservation(_ context.Context, id uint) (*models.Reservation, error) {
	m.reservationMu.RLock()
	r, ok := m.reservations[id]
	var cp models.Reservation
	if ok {
		cp = *r
	}
	m.reservationMu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	m.attachRoom(&cp)
	return &cp, nil
}

func (m *MemoryStore) ListReservations(_ context.Context, filter ReservationFilter) ([]models.Reservation, error) {
	m.reservationMu.RLock()
	var out []models.Reservation
	for _, r := range m.reservations {
		if len(filter.Statuses) > 0 && !contains(filter.Statuses, r.Status) {
			continue
		}
		if !filter.StartFrom.IsZero() && r.StartAt.Before(filter.StartFrom) {
			continue
		}
		if !filter.EndedBy.IsZero() && r.EndAt.After(filter.EndedBy) {
			continue
		}
		out = append(out, *r)
	}
	m.reservationMu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartAt.Equal(out[j].StartAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartAt.Before(out[j].StartAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	for i := range out {
		m.attachRoom(&out[i])
	}
	return out, nil
}

// UpdateReservation re-reads the reservation under lock and lets fn validate
// and mutate it. An error from fn leaves the record untouched.
func (m *MemoryStore) UpdateReservation(_ context.Context, id uint, fn func(*models.Reservation) error) (*models.Reservation, error) {
	m.reservationMu.Lock()
	r, ok := m.reservations[id]
	if !ok {
		m.reservationMu.Unlock()
		return nil, ErrNotFound
	}
	cp := *r
	if err := fn(&cp); err != nil {
		m.reservationMu.Unlock()
		return nil, err
	}
	cp.UpdatedAt = time.Now()
	cp.Room = nil
	stored := cp
	m.reservations[id] = &stored
	m.reservationMu.Unlock()

	m.attachRoom(&cp)
	return &cp, nil
}

func (m *MemoryStore) attachRoom(r *models.Reservation) {
	if room, err := m.GetRoom(context.Background(), r.RoomID); err == nil {
		r.Room = room
	}
}

// Reservation process operations

func (m *MemoryStore) ActiveProcess(_ context.Context, customerID uint) (*models.ReservationProcess, error) {
	m.reservationMu.RLock()
	defer m.reservationMu.RUnlock()

	if p := m.activeProcessLocked(customerID); p != nil {
		cp := *p
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) StartProcess(_ context.Context, customerID uint, now time.Time) (*models.ReservationProcess, bool, error) {
	m.reservationMu.Lock()
	defer m.reservationMu.Unlock()

	if p := m.activeProcessLocked(customerID); p != nil {
		cp := *p
		return &cp, false, nil
	}
	m.processCounter++
	p := &models.ReservationProcess{
		ID:          m.processCounter,
		CustomerID:  customerID,
		CurrentStep: models.StepStart,
		StartedAt:   now,
		UpdatedAt:   now,
	}
	m.processes[p.ID] = p
	cp := *p
	return &cp, true, nil
}

func (m *MemoryStore) SaveProcess(_ context.Context, process *models.ReservationProcess) error {
	m.reservationMu.Lock()
	defer m.reservationMu.Unlock()

	stored, ok := m.processes[process.ID]
	if !ok {
		return ErrNotFound
	}
	if !stored.Active() {
		return ErrProcessClosed
	}
	cp := *process
	m.processes[process.ID] = &cp
	return nil
}

func (m *MemoryStore) CancelActiveProcess(_ context.Context, customerID uint, now time.Time) (bool, error) {
	m.reservationMu.Lock()
	defer m.reservationMu.Unlock()

	p := m.activeProcessLocked(customerID)
	if p == nil {
		return false, nil
	}
	p.Cancel(now)
	return true, nil
}

// ProcessesFor returns every process of a customer, active or not.
func (m *MemoryStore) ProcessesFor(customerID uint) []models.ReservationProcess {
	m.reservationMu.RLock()
	defer m.reservationMu.RUnlock()

	var out []models.ReservationProcess
	for _, p := range m.processes {
		if p.CustomerID == customerID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *MemoryStore) activeProcessLocked(customerID uint) *models.ReservationProcess {
	for _, p := range m.processes {
		if p.CustomerID == customerID && p.Active() {
			return p
		}
	}
	return nil
}

// Staff operations

func (m *MemoryStore) GetStaffByPhone(_ context.Context, phone string) (*models.Staff, error) {
	m.staffMu.RLock()
	defer m.staffMu.RUnlock()

	s, ok := m.staff[phone]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MemoryStore) SaveStaff(_ context.Context, staff *models.Staff) error {
	m.staffMu.Lock()
	defer m.staffMu.Unlock()

	if existing, ok := m.staff[staff.Phone]; ok {
		staff.ID = existing.ID
	} else if staff.ID == 0 {
		m.staffCounter++
		staff.ID = m.staffCounter
		staff.CreatedAt = time.Now()
	}
	cp := *staff
	m.staff[staff.Phone] = &cp
	return nil
}

func (m *MemoryStore) GetStaffSession(_ context.Context, phone string) (*models.StaffSession, error) {
	m.staffMu.RLock()
	defer m.staffMu.RUnlock()

	s, ok := m.sessions[phone]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MemoryStore) SetStaffSession(_ context.Context, phone string, active bool, now time.Time) error {
	m.staffMu.Lock()
	defer m.staffMu.Unlock()

	s, ok := m.sessions[phone]
	if !ok {
		m.sessionCounter++
		s = &models.StaffSession{ID: m.sessionCounter, Phone: phone}
		m.sessions[phone] = s
	}
	s.Active = active
	s.UpdatedAt = now
	if active {
		s.StartedAt = now
		s.EndedAt = nil
	} else {
		ended := now
		s.EndedAt = &ended
	}
	return nil
}

func (m *MemoryStore) Ping(_ context.Context) error {
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
