package models

import "time"

// Channel identifies where an inbound message came from.
type Channel string

const (
	ChannelWhatsApp Channel = "whatsapp"
	ChannelWeb      Channel = "web"
	ChannelPhone    Channel = "phone"
)

// Message roles
const (
	RoleCustomer = "customer"
	RoleAgent    = "agent"
)

// Customer is created on the first inbound message and never deleted.
type Customer struct {
	ID                uint      `json:"id" gorm:"primaryKey"`
	Identity          string    `json:"identity" gorm:"uniqueIndex;size:64;not null"`
	Name              string    `json:"name" gorm:"size:120"`
	Channel           Channel   `json:"channel" gorm:"size:16"`
	LastInteractionAt time.Time `json:"last_interaction_at"`
	CreatedAt         time.Time `json:"created_at"`
}

// Conversation groups the messages exchanged with one customer.
type Conversation struct {
	ID            uint       `json:"id" gorm:"primaryKey"`
	CustomerID    uint       `json:"customer_id" gorm:"index;not null"`
	Open          bool       `json:"open" gorm:"index"`
	LastMessageAt time.Time  `json:"last_message_at"`
	CreatedAt     time.Time  `json:"created_at"`
	ClosedAt      *time.Time `json:"closed_at"`
}

// Message is immutable once stored; ID order is processing order.
type Message struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	ConversationID uint      `json:"conversation_id" gorm:"index;not null"`
	Role           string    `json:"role" gorm:"size:16;not null"`
	Body           string    `json:"body" gorm:"type:text"`
	CreatedAt      time.Time `json:"created_at"`
}
