package models

import (
	"time"
)

type Visitor struct {
	ID           string   `json:"id" gorm:"primaryKey;type:text"`
	CommunityID  string   `json:"communityID" gorm:"type:text;index;not null"`
	PropertyID   string   `json:"propertyID" gorm:"type:text;not null"`
	Property     Property `json:"-" gorm:"constraint:OnDelete:CASCADE;"`
	RegisteredBy string   `json:"registeredBy" gorm:"type:text;index;not null"`

	VisitorName   string `json:"visitorName" gorm:"type:text;not null"`
	VisitorPhone  string `json:"visitorPhone" gorm:"type:text"`
	VisitorICPass string `json:"visitorICPassport" gorm:"type:text"`
	VehiclePlate  string `json:"vehiclePlate" gorm:"type:text"`
	Purpose       string `json:"purpose" gorm:"type:text"`

	ExpectedArrival   time.Time  `json:"expectedArrival" gorm:"type:timestamp with time zone;not null"`
	ExpectedDeparture *time.Time `json:"expectedDeparture,omitempty" gorm:"type:timestamp with time zone"`
	ActualArrival     *time.Time `json:"actualArrival,omitempty" gorm:"type:timestamp with time zone"`
	ActualDeparture   *time.Time `json:"actualDeparture,omitempty" gorm:"type:timestamp with time zone"`

	Status       string    `json:"status" gorm:"type:text;index;not null;default:'pending'"`
	QRCode       string    `json:"qrCode" gorm:"type:text;index"`
	QRExpiresAt  time.Time `json:"qrExpiresAt" gorm:"type:timestamp with time zone"`
	CheckedInBy  *string   `json:"checkedInBy,omitempty" gorm:"type:text"`
	CheckedOutBy *string   `json:"checkedOutBy,omitempty" gorm:"type:text"`
	CancelledBy  *string   `json:"cancelledBy,omitempty" gorm:"type:text"`
	ActedAt      *time.Time `json:"actedAt,omitempty" gorm:"type:timestamp with time zone"`

	CDate time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
	MDate time.Time `json:"mdate" gorm:"autoUpdateTime"`
}

type Delivery struct {
	ID           string   `json:"id" gorm:"primaryKey;type:text"`
	CommunityID  string   `json:"communityID" gorm:"type:text;index;not null"`
	PropertyID   string   `json:"propertyID" gorm:"type:text;not null"`
	Property     Property `json:"-" gorm:"constraint:OnDelete:CASCADE;"`
	RegisteredBy string   `json:"registeredBy" gorm:"type:text;index;not null"`

	DeliveryService string `json:"deliveryService" gorm:"type:text;not null"`
	VehiclePlate    string `json:"vehiclePlate" gorm:"type:text"`
	Notes           string `json:"notes" gorm:"type:text"`

	EstimatedArrival time.Time  `json:"estimatedArrival" gorm:"type:timestamp with time zone;not null"`
	ActualArrival    *time.Time `json:"actualArrival,omitempty" gorm:"type:timestamp with time zone"`
	CollectedAt      *time.Time `json:"collectedAt,omitempty" gorm:"type:timestamp with time zone"`

	Status            string    `json:"status" gorm:"type:text;index;not null;default:'pending'"`
	Passcode          string    `json:"passcode" gorm:"type:text;index"`
	PasscodeExpiresAt time.Time `json:"passcodeExpiresAt" gorm:"type:timestamp with time zone"`
	CheckedInBy       *string   `json:"checkedInBy,omitempty" gorm:"type:text"`
	CancelledBy       *string   `json:"cancelledBy,omitempty" gorm:"type:text"`
	ActedAt           *time.Time `json:"actedAt,omitempty" gorm:"type:timestamp with time zone"`

	CDate time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
	MDate time.Time `json:"mdate" gorm:"autoUpdateTime"`
}
