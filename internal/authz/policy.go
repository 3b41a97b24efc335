package authz

// Role is the closed set of account roles.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// CanAct reports whether the actor may mutate a resource owned by ownerID.
// Authors may act on their own resources, admins on anything.
func CanAct(actorID uint, role Role, ownerID uint) bool {
	return actorID == ownerID || role == RoleAdmin
}
