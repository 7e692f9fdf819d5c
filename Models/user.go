package Models

import "time"

// User is an admin-UI account. Permission is a ladder: 1 viewer, 2 clerk,
// 3 supervisor, 4 admin.
type User struct {
	Id         uint      `json:"id" gorm:"primaryKey"`
	Name       string    `json:"name"`
	Email      string    `json:"email" gorm:"uniqueIndex"`
	Password   []byte    `json:"-"`
	Permission int       `json:"permission"`
	IsApproved int       `json:"is_approved"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}
