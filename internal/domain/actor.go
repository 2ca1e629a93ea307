package domain

// Role names understood by the service.
const (
	RoleAdmin  = "admin"
	RoleSystem = "system"
)

// Actor is the caller on whose behalf an operation runs.
type Actor struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

// IsAdmin reports whether the actor may run administrative operations.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin || a.Role == RoleSystem
}

// SystemActor is used for jobs triggered by the service itself or a broker.
var SystemActor = Actor{ID: "system", Role: RoleSystem}
