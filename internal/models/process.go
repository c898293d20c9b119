package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
)

// Reservation dialogue steps as persisted in current_step.
const (
	StepStart        = "inicio"
	StepDate         = "fecha"
	StepStartTime    = "hora_inicio"
	StepDuration     = "duracion"
	StepRoom         = "habitacion"
	StepConfirmation = "confirmacion"
	StepCompleted    = "completado"
	StepCancelled    = "cancelado"
)

// ProcessSlots is the information collected during the booking dialogue.
type ProcessSlots struct {
	Date          string  `json:"date,omitempty"`       // 2006-01-02
	StartTime     string  `json:"start_time,omitempty"` // 15:04
	DurationHours int     `json:"duration_hours,omitempty"`
	EndTime       string  `json:"end_time,omitempty"`
	RoomID        uint    `json:"room_id,omitempty"`
	TotalPrice    float64 `json:"total_price,omitempty"`
}

// Value stores the slots as JSON.
func (s ProcessSlots) Value() (driver.Value, error) {
	b, err := sonic.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan reads the JSON column back.
func (s *ProcessSlots) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*s = ProcessSlots{}
		return nil
	case []byte:
		return sonic.Unmarshal(v, s)
	case string:
		return sonic.UnmarshalString(v, s)
	default:
		return fmt.Errorf("unsupported slots type %T", value)
	}
}

// ReservationProcess is the durable state of one booking dialogue.
// A customer has at most one process that is neither completed nor cancelled.
type ReservationProcess struct {
	ID            uint         `json:"id" gorm:"primaryKey"`
	CustomerID    uint         `json:"customer_id" gorm:"not null;index;uniqueIndex:idx_active_process,where:completed = false AND cancelled = false"`
	CurrentStep   string       `json:"current_step" gorm:"size:20;not null"`
	Slots         ProcessSlots `json:"slots" gorm:"type:jsonb"`
	Completed     bool         `json:"completed" gorm:"not null;default:false"`
	Cancelled     bool         `json:"cancelled" gorm:"not null;default:false"`
	ReservationID *uint        `json:"reservation_id"`
	StartedAt     time.Time    `json:"started_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
	FinishedAt    *time.Time   `json:"finished_at"`
}

// Active reports whether the dialogue is still in progress.
func (p *ReservationProcess) Active() bool {
	return !p.Completed && !p.Cancelled
}

// Cancel finalizes the process without a reservation.
func (p *ReservationProcess) Cancel(now time.Time) {
	p.Cancelled = true
	p.CurrentStep = StepCancelled
	p.FinishedAt = &now
	p.UpdatedAt = now
}
