package storage

import (
	"context"
	"errors"
	"time"

	"github.com/MarioYanezUrrutia/chatbot-ai-backend/internal/models"
)

var (
	// ErrNotFound is returned when a lookup has no matching record.
	ErrNotFound = errors.New("record not found")
	// ErrSlotTaken is returned when a booking overlaps a holding reservation.
	ErrSlotTaken = errors.New("room slot already taken")
	// ErrProcessClosed is returned when finalizing a process that is no longer active.
	ErrProcessClosed = errors.New("reservation process is no longer active")
	// ErrDuplicate is returned when a unique field is already taken.
	ErrDuplicate = errors.New("duplicate record")
)

// DateLayout is the ISO day format used for reservation dates.
const DateLayout = "2006-01-02"

// ReservationFilter narrows ListReservations. Zero fields are ignored.
type ReservationFilter struct {
	Statuses  []string
	StartFrom time.Time // start_at >= StartFrom
	EndedBy   time.Time // end_at <= EndedBy
	Limit     int
}

// Store defines the interface for storage operations
type Store interface {
	// Customer and conversation operations
	TouchCustomer(ctx context.Context, identity string, channel models.Channel, name string, now time.Time) (*models.Customer, error)
	GetCustomer(ctx context.Context, id uint) (*models.Customer, error)
	GetCustomerByIdentity(ctx context.Context, identity string) (*models.Customer, error)
	OpenConversation(ctx context.Context, customerID uint, now time.Time, idle time.Duration) (*models.Conversation, error)
	CloseConversations(ctx context.Context, customerID uint, now time.Time) error
	AppendMessage(ctx context.Context, msg *models.Message) error
	CountMessages(ctx context.Context, conversationID uint, role string) (int64, error)
	RecentMessages(ctx context.Context, conversationID uint, limit int) ([]models.Message, error)

	// Knowledge operations
	ListFaqs(ctx context.Context) ([]models.FaqEntry, error)
	GetFaq(ctx context.Context, id uint) (*models.FaqEntry, error)
	GreetingFaq(ctx context.Context) (*models.FaqEntry, error)
	SaveFaq(ctx context.Context, faq *models.FaqEntry) error
	SetGreeting(ctx context.Context, id uint) error
	ListKnowledge(ctx context.Context) ([]models.KnowledgeEntry, error)
	SaveKnowledge(ctx context.Context, entry *models.KnowledgeEntry) error
	RecordUnknownQuestion(ctx context.Context, customerID uint, text string, now time.Time) (bool, error)
	ListUnknownQuestions(ctx context.Context, includeReviewed bool) ([]models.UnknownQuestion, error)
	MarkUnknownQuestionReviewed(ctx context.Context, id uint) error

	// Catalog operations
	SaveRoomType(ctx context.Context, rt *models.RoomType) error
	SaveRoom(ctx context.Context, room *models.Room) error
	ListRooms(ctx context.Context) ([]models.Room, error)
	GetRoom(ctx context.Context, id uint) (*models.Room, error)

	// Reservation operations
	ListRoomReservations(ctx context.Context, roomID uint, date time.Time) ([]models.Reservation, error)
	BookProcess(ctx context.Context, process *models.ReservationProcess, res *models.Reservation) error
	GetReservation(ctx context.Context, id uint) (*models.Reservation, error)
	ListReservations(ctx context.Context, filter ReservationFilter) ([]models.Reservation, error)
	UpdateReservation(ctx context.Context, id uint, fn func(*models.Reservation) error) (*models.Reservation, error)

	// Reservation process operations
	ActiveProcess(ctx context.Context, customerID uint) (*models.ReservationProcess, error)
	StartProcess(ctx context.Context, customerID uint, now time.Time) (*models.ReservationProcess, bool, error)
	SaveProcess(ctx context.Context, process *models.ReservationProcess) error
	CancelActiveProcess(ctx context.Context, customerID uint, now time.Time) (bool, error)

	// Staff operations
	GetStaffByPhone(ctx context.Context, phone string) (*models.Staff, error)
	SaveStaff(ctx context.Context, staff *models.Staff) error
	GetStaffSession(ctx context.Context, phone string) (*models.StaffSession, error)
	SetStaffSession(ctx context.Context, phone string, active bool, now time.Time) error

	Ping(ctx context.Context) error
}

// Migrate lists the models a relational store must create.
func Migrate() []any {
	return []any{
		&models.Customer{},
		&models.Conversation{},
		&models.Message{},
		&models.FaqEntry{},
		&models.KnowledgeEntry{},
		&models.UnknownQuestion{},
		&models.RoomType{},
		&models.Room{},
		&models.Reservation{},
		&models.ReservationProcess{},
		&models.Staff{},
		&models.StaffSession{},
	}
}

func sameDay(a, b time.Time) bool {
	return a.Format(DateLayout) == b.Format(DateLayout)
}
