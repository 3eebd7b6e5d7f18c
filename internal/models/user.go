package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	// UserRoleStudent submits artifacts for grading.
	UserRoleStudent = "student"
	// UserRoleTeacher reviews artifacts addressed to them.
	UserRoleTeacher = "teacher"
)

// User stores the profile chosen by an identity-provider subject.
type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Subject   string    `gorm:"size:191;not null;uniqueIndex" json:"subject"`
	Name      string    `gorm:"size:191" json:"name"`
	Email     string    `gorm:"size:320" json:"email"`
	Role      string    `gorm:"size:16;not null" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns the identifier when the caller did not.
func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
