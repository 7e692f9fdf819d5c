package Models

import "gorm.io/gorm"

// Notification is a stored in-app notification. Push delivery (FCM) is
// fire-and-forget on top of the stored row.
type Notification struct {
	gorm.Model
	Title   string `json:"title"`
	Body    string `json:"body"`
	Kind    string `json:"kind" gorm:"index"`
	TruckNo string `json:"truck_no" gorm:"index"`
	Read    bool   `json:"read" gorm:"default:false"`
}

func (Notification) TableName() string {
	return "notifications"
}
