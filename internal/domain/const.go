package domain

// Role names carried in access-token claims.
const (
	RoleResident = "resident"
	RoleGuard    = "guard"
	RoleAdmin    = "admin"
)

// Echo context keys populated by the auth middleware.
const (
	RequesterIDCtxKey        = "gp-requesterId"
	RequesterRoleCtxKey      = "gp-requesterRole"
	RequesterCommunityCtxKey = "gp-requesterCommunity"
)
