package models

import (
	"time"
)

type Community struct {
	ID      string    `json:"id" gorm:"primaryKey;type:text"`
	Name    string    `json:"name" gorm:"type:text;not null"`
	Address string    `json:"address" gorm:"type:text"`
	CDate   time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
}

type Property struct {
	ID          string    `json:"id" gorm:"primaryKey;type:text"`
	CommunityID string    `json:"communityID" gorm:"type:text;index;not null"`
	Community   Community `json:"-" gorm:"constraint:OnDelete:CASCADE;"`
	UnitNumber  string    `json:"unitNumber" gorm:"type:text;not null"`
	Street      string    `json:"street" gorm:"type:text"`
	CDate       time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
}

type User struct {
	ID           string    `json:"id" gorm:"primaryKey;type:text"`
	CommunityID  string    `json:"communityID" gorm:"type:text;index;not null"`
	Community    Community `json:"-" gorm:"constraint:OnDelete:CASCADE;"`
	PropertyID   *string   `json:"propertyID,omitempty" gorm:"type:text"`
	Email        string    `json:"email" gorm:"type:text;uniqueIndex;not null"`
	PasswordHash string    `json:"-" gorm:"type:text;not null"`
	FullName     string    `json:"fullName" gorm:"type:text"`
	Phone        string    `json:"phone" gorm:"type:text"`
	Role         string    `json:"role" gorm:"type:text;not null"`
	CDate        time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
	MDate        time.Time `json:"mdate" gorm:"autoUpdateTime"`
}
