package domain

// Property is a unit inside a community. Entry records always belong to
// exactly one property.
type Property struct {
	ID          string `json:"id"`
	CommunityID string `json:"communityID"`
	UnitNumber  string `json:"unitNumber"`
	Street      string `json:"street"`
}

// User is a resident, guard or community admin.
type User struct {
	ID           string  `json:"id"`
	CommunityID  string  `json:"communityID"`
	PropertyID   *string `json:"propertyID,omitempty"`
	Email        string  `json:"email"`
	FullName     string  `json:"fullName"`
	Phone        string  `json:"phone"`
	Role         string  `json:"role"`
	PasswordHash string  `json:"-"`
}
