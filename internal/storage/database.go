package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/MarioYanezUrrutia/chatbot-ai-backend/internal/models"
)

// DatabaseStore persists everything in PostgreSQL through gorm.
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore wraps an open gorm connection.
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// Customer operations

func (s *DatabaseStore) TouchCustomer(ctx context.Context, identity string, channel models.Channel, name string, now time.Time) (*models.Customer, error) {
	updates := map[string]any{"last_interaction_at": now}
	if name != "" {
		updates["name"] = name
	}
	c := models.Customer{
		Identity:          identity,
		Name:              name,
		Channel:           channel,
		LastInteractionAt: now,
		CreatedAt:         now,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "identity"}},
		DoUpdates: clause.Assignments(updates),
	}).Create(&c).Error
	if err != nil {
		return nil, fmt.Errorf("upsert customer: %w", err)
	}
	return s.GetCustomerByIdentity(ctx, identity)
}

func (s *DatabaseStore) GetCustomer(ctx context.Context, id uint) (*models.Customer, error) {
	var c models.Customer
	if err := s.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (s *DatabaseStore) GetCustomerByIdentity(ctx context.Context, identity string) (*models.Customer, error) {
	var c models.Customer
	if err := s.db.WithContext(ctx).Where("identity = ?", identity).First(&c).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (s *DatabaseStore) OpenConversation(ctx context.Context, customerID uint, now time.Time, idle time.Duration) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("customer_id = ? AND open = ?", customerID, true).
			Order("id DESC").
			First(&conv).Error
		switch {
		case err == nil:
			if idle <= 0 || now.Sub(conv.LastMessageAt) <= idle {
				return nil
			}
			if err := tx.Model(&models.Conversation{}).
				Where("customer_id = ? AND open = ?", customerID, true).
				Updates(map[string]any{"open": false, "closed_at": now}).Error; err != nil {
				return err
			}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		conv = models.Conversation{
			CustomerID:    customerID,
			Open:          true,
			LastMessageAt: now,
			CreatedAt:     now,
		}
		return tx.Create(&conv).Error
	})
	if err != nil {
		return nil, fmt.Errorf("open conversation: %w", err)
	}
	return &conv, nil
}

func (s *DatabaseStore) CloseConversations(ctx context.Context, customerID uint, now time.Time) error {
	return s.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("customer_id = ? AND open = ?", customerID, true).
		Updates(map[string]any{"open": false, "closed_at": now}).Error
}

func (s *DatabaseStore) AppendMessage(ctx context.Context, msg *models.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&models.Conversation{}).
			Where("id = ?", msg.ConversationID).
			Update("last_message_at", msg.CreatedAt).Error
	})
}

func (s *DatabaseStore) CountMessages(ctx context.Context, conversationID uint, role string) (int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Message{}).Where("conversation_id = ?", conversationID)
	if role != "" {
		q = q.Where("role = ?", role)
	}
	var n int64
	err := q.Count(&n).Error
	return n, err
}

func (s *DatabaseStore) RecentMessages(ctx context.Context, conversationID uint, limit int) ([]models.Message, error) {
	var msgs []models.Message
	q := s.db.WithContext(ctx).Where("conversation_id = ?", conversationID).Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&msgs).Error; err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// Knowledge operations

func (s *DatabaseStore) ListFaqs(ctx context.Context) ([]models.FaqEntry, error) {
	var faqs []models.FaqEntry
	err := s.db.WithContext(ctx).Where("active = ?", true).Order("id").Find(&faqs).Error
	return faqs, err
}

func (s *DatabaseStore) GetFaq(ctx context.Context, id uint) (*models.FaqEntry, error) {
	var f models.FaqEntry
	if err := s.db.WithContext(ctx).First(&f, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &f, nil
}

func (s *DatabaseStore) GreetingFaq(ctx context.Context) (*models.FaqEntry, error) {
	var f models.FaqEntry
	err := s.db.WithContext(ctx).
		Where("active = ? AND is_default_greeting = ?", true, true).
		Order("id").
		First(&f).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &f, nil
}

// SaveFaq creates or updates an entry. Saving an active greeting clears the
// flag on every other entry in the same transaction.
func (s *DatabaseStore) SaveFaq(ctx context.Context, faq *models.FaqEntry) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx
		if faq.ID == 0 {
			// upsert by label
			q = tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "label"}}, UpdateAll: true})
		}
		if err := q.Save(faq).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicate
			}
			return err
		}
		if !faq.IsDefaultGreeting || !faq.Active {
			return nil
		}
		return tx.Model(&models.FaqEntry{}).
			Where("is_default_greeting = ? AND id <> ?", true, faq.ID).
			Update("is_default_greeting", false).Error
	})
}

func (s *DatabaseStore) SetGreeting(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var f models.FaqEntry
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&f, id).Error; err != nil {
			return notFound(err)
		}
		if err := tx.Model(&models.FaqEntry{}).
			Where("is_default_greeting = ? AND id <> ?", true, id).
			Update("is_default_greeting", false).Error; err != nil {
			return err
		}
		return tx.Model(&f).Updates(map[string]any{"is_default_greeting": true, "active": true}).Error
	})
}

func (s *DatabaseStore) ListKnowledge(ctx context.Context) ([]models.KnowledgeEntry, error) {
	var entries []models.KnowledgeEntry
	err := s.db.WithContext(ctx).Where("active = ?", true).Order("id").Find(&entries).Error
	return entries, err
}

func (s *DatabaseStore) SaveKnowledge(ctx context.Context, entry *models.KnowledgeEntry) error {
	return s.db.WithContext(ctx).Save(entry).Error
}

func (s *DatabaseStore) RecordUnknownQuestion(ctx context.Context, customerID uint, text string, now time.Time) (bool, error) {
	q := models.UnknownQuestion{CustomerID: customerID, Text: text, TextHash: models.QuestionHash(text), CreatedAt: now}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&q)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *DatabaseStore) ListUnknownQuestions(ctx context.Context, includeReviewed bool) ([]models.UnknownQuestion, error) {
	var out []models.UnknownQuestion
	q := s.db.WithContext(ctx).Order("id")
	if !includeReviewed {
		q = q.Where("reviewed = ?", false)
	}
	err := q.Find(&out).Error
	return out, err
}

func (s *DatabaseStore) MarkUnknownQuestionReviewed(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Model(&models.UnknownQuestion{}).Where("id = ?", id).Update("reviewed", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Catalog operations

func (s *DatabaseStore) SaveRoomType(ctx context.Context, rt *models.RoomType) error {
	q := s.db.WithContext(ctx)
	if rt.ID == 0 {
		q = q.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, UpdateAll: true})
	}
	return q.Save(rt).Error
}

func (s *DatabaseStore) SaveRoom(ctx context.Context, room *models.Room) error {
	q := s.db.WithContext(ctx).Omit(clause.Associations)
	if room.ID == 0 {
		q = q.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "number"}}, UpdateAll: true})
	}
	return q.Save(room).Error
}

func (s *DatabaseStore) ListRooms(ctx context.Context) ([]models.Room, error) {
	var rooms []models.Room
	err := s.db.WithContext(ctx).Preload("RoomType").
		Where("active = ? AND available = ?", true, true).
		Order("id").
		Find(&rooms).Error
	return rooms, err
}

func (s *DatabaseStore) GetRoom(ctx context.Context, id uint) (*models.Room, error) {
	var room models.Room
	if err := s.db.WithContext(ctx).Preload("RoomType").First(&room, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &room, nil
}

// Reservation operations

func (s *DatabaseStore) ListRoomReservations(ctx context.Context, roomID uint, date time.Time) ([]models.Reservation, error) {
	var out []models.Reservation
	err := s.db.WithContext(ctx).
		Where("room_id = ? AND date = ? AND status IN ?", roomID, date.Format(DateLayout), models.HoldingStatuses).
		Order("start_at").
		Find(&out).Error
	return out, err
}

// BookProcess serializes bookings per room and day with a transaction-scoped
// advisory lock, re-checks overlap with row locks, inserts the reservation and
// completes the process. The loser of a race gets ErrSlotTaken.
func (s *DatabaseStore) BookProcess(ctx context.Context, process *models.ReservationProcess, res *models.Reservation) error {
	day := res.Date.Format(DateLayout)
	lockKey := int64(res.RoomID)*100000000 + int64(res.Date.Year()*10000+int(res.Date.Month())*100+res.Date.Day())

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", lockKey).Error; err != nil {
			return fmt.Errorf("advisory lock: %w", err)
		}

		var conflicts []models.Reservation
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("room_id = ? AND date = ? AND status IN ? AND start_at < ? AND end_at > ?",
				res.RoomID, day, models.HoldingStatuses, res.EndAt, res.StartAt).
			Find(&conflicts).Error; err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return ErrSlotTaken
		}

		if err := tx.Omit(clause.Associations).Create(res).Error; err != nil {
			return err
		}

		finished := process.UpdatedAt
		if finished.IsZero() {
			finished = time.Now()
		}
		result := tx.Model(&models.ReservationProcess{}).
			Where("id = ? AND completed = ? AND cancelled = ?", process.ID, false, false).
			Updates(map[string]any{
				"reservation_id": res.ID,
				"completed":      true,
				"current_step":   models.StepCompleted,
				"slots":          process.Slots,
				"updated_at":     finished,
				"finished_at":    finished,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrProcessClosed
		}

		id := res.ID
		process.ReservationID = &id
		process.Completed = true
		process.CurrentStep = models.StepCompleted
		process.FinishedAt = &finished
		return nil
	})
}

func (s *DatabaseStore) GetReservation(ctx context.Context, id uint) (*models.Reservation, error) {
	var r models.Reservation
	if err := s.db.WithContext(ctx).Preload("Room.RoomType").First(&r, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}

func (s *DatabaseStore) ListReservations(ctx context.Context, filter ReservationFilter) ([]models.Reservation, error) {
	q := s.db.WithContext(ctx).Preload("Room.RoomType").Order("start_at, id")
	if len(filter.Statuses) > 0 {
		q = q.Where("status IN ?", filter.Statuses)
	}
	if !filter.StartFrom.IsZero() {
		q = q.Where("start_at >= ?", filter.StartFrom)
	}
	if !filter.EndedBy.IsZero() {
		q = q.Where("end_at <= ?", filter.EndedBy)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	var out []models.Reservation
	err := q.Find(&out).Error
	return out, err
}

// UpdateReservation locks the row, lets fn re-validate and mutate it, then
// saves. An error from fn rolls the transaction back.
func (s *DatabaseStore) UpdateReservation(ctx context.Context, id uint, fn func(*models.Reservation) error) (*models.Reservation, error) {
	var r models.Reservation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&r, id).Error; err != nil {
			return notFound(err)
		}
		if err := fn(&r); err != nil {
			return err
		}
		return tx.Omit(clause.Associations).Save(&r).Error
	})
	if err != nil {
		return nil, err
	}
	return s.GetReservation(ctx, id)
}

// Reservation process operations

func (s *DatabaseStore) ActiveProcess(ctx context.Context, customerID uint) (*models.ReservationProcess, error) {
	var p models.ReservationProcess
	err := s.db.WithContext(ctx).
		Where("customer_id = ? AND completed = ? AND cancelled = ?", customerID, false, false).
		First(&p).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// StartProcess returns the active process or creates one. The partial unique
// index turns a concurrent second insert into a re-read.
func (s *DatabaseStore) StartProcess(ctx context.Context, customerID uint, now time.Time) (*models.ReservationProcess, bool, error) {
	if p, err := s.ActiveProcess(ctx, customerID); err == nil {
		return p, false, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	p := models.ReservationProcess{
		CustomerID:  customerID,
		CurrentStep: models.StepStart,
		StartedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.WithContext(ctx).Create(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			existing, err := s.ActiveProcess(ctx, customerID)
			return existing, false, err
		}
		return nil, false, fmt.Errorf("create process: %w", err)
	}
	return &p, true, nil
}

// SaveProcess only writes a process that is still active in the database.
func (s *DatabaseStore) SaveProcess(ctx context.Context, process *models.ReservationProcess) error {
	res := s.db.WithContext(ctx).Model(&models.ReservationProcess{}).
		Where("id = ? AND completed = ? AND cancelled = ?", process.ID, false, false).
		Select("current_step", "slots", "completed", "cancelled", "reservation_id", "updated_at", "finished_at").
		Updates(process)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrProcessClosed
	}
	return nil
}

func (s *DatabaseStore) CancelActiveProcess(ctx context.Context, customerID uint, now time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.ReservationProcess{}).
		Where("customer_id = ? AND completed = ? AND cancelled = ?", customerID, false, false).
		Updates(map[string]any{
			"cancelled":    true,
			"current_step": models.StepCancelled,
			"finished_at":  now,
			"updated_at":   now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Staff operations

func (s *DatabaseStore) GetStaffByPhone(ctx context.Context, phone string) (*models.Staff, error) {
	var st models.Staff
	if err := s.db.WithContext(ctx).Where("phone = ?", phone).First(&st).Error; err != nil {
		return nil, notFound(err)
	}
	return &st, nil
}

func (s *DatabaseStore) SaveStaff(ctx context.Context, staff *models.Staff) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "phone"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "can_confirm_arrival", "can_cancel", "can_modify", "active"}),
	}).Create(staff).Error
}

func (s *DatabaseStore) GetStaffSession(ctx context.Context, phone string) (*models.StaffSession, error) {
	var sess models.StaffSession
	if err := s.db.WithContext(ctx).Where("phone = ?", phone).First(&sess).Error; err != nil {
		return nil, notFound(err)
	}
	return &sess, nil
}

func (s *DatabaseStore) SetStaffSession(ctx context.Context, phone string, active bool, now time.Time) error {
	sess := models.StaffSession{Phone: phone, Active: active, StartedAt: now, UpdatedAt: now}
	updates := map[string]any{"active": active, "updated_at": now}
	if active {
		updates["started_at"] = now
		updates["ended_at"] = nil
	} else {
		sess.EndedAt = &now
		updates["ended_at"] = now
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "phone"}},
		DoUpdates: clause.Assignments(updates),
	}).Create(&sess).Error
}

func (s *DatabaseStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
