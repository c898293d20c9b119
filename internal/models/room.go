package models

import "time"

// RoomType groups rooms sharing price and capacity.
type RoomType struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Name        string    `json:"name" gorm:"uniqueIndex;size:80;not null"`
	Description string    `json:"description" gorm:"type:text"`
	HourlyPrice float64   `json:"hourly_price"`
	Capacity    int       `json:"capacity" gorm:"default:2"`
	Keywords    string    `json:"keywords" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at"`
}

// Room is a bookable unit.
type Room struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Number      string    `json:"number" gorm:"uniqueIndex;size:16;not null"`
	Name        string    `json:"name" gorm:"size:80"`
	RoomTypeID  uint      `json:"room_type_id" gorm:"index"`
	RoomType    *RoomType `json:"room_type,omitempty" gorm:"foreignKey:RoomTypeID"`
	HourlyPrice float64   `json:"hourly_price"`
	Available   bool      `json:"available"`
	Active      bool      `json:"active"`
	Keywords    string    `json:"keywords" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at"`
}

// Price returns the hourly price, inheriting from the room type when unset.
func (r *Room) Price() float64 {
	if r.HourlyPrice > 0 || r.RoomType == nil {
		return r.HourlyPrice
	}
	return r.RoomType.HourlyPrice
}

// DisplayName is what customers see on buttons and summaries.
func (r *Room) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	return "Room " + r.Number
}

// KeywordList returns the room and room type tags.
func (r *Room) KeywordList() []string {
	tags := splitKeywords(r.Keywords)
	if r.RoomType != nil {
		tags = append(tags, splitKeywords(r.RoomType.Keywords)...)
	}
	return tags
}
