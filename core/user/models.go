package user

import (
	"strings"

	"github.com/trezcool/lecturepay/core"
)

// Roles
const (
	// Admin
	RoleAdmin          = "admin:"
	RoleAdminOwner     = "admin:owner"
	RoleAdminPrincipal = "admin:principal"

	// Teacher
	RoleTeacher = "teacher:"
)

var (
	AdminRoles   = []string{RoleAdmin, RoleAdminOwner, RoleAdminPrincipal}
	TeacherRoles = []string{RoleTeacher}
	AllRoles     = append(append([]string{}, AdminRoles...), TeacherRoles...)

	rolePriorities = map[string]int{
		// Admins: 30 - 21
		RoleAdminOwner:     30,
		RoleAdminPrincipal: 29,
		RoleAdmin:          21,

		// Teachers: 20 - 11
		RoleTeacher: 11,
	}

	// System is the actor used by jobs and the admin CLI.
	System = Actor{ID: "system", Name: "System", Roles: []string{RoleAdminOwner}}
)

func RolePriority(role string) int {
	return rolePriorities[role]
}

func MaxRolePriority(roles []string) int {
	var max int
	for _, role := range roles {
		if RolePriority(role) > max {
			max = RolePriority(role)
		}
	}
	return max
}

// Actor is whoever performs a state-changing call. It is always passed explicitly.
type Actor struct {
	ID    string   `json:"id" validate:"required"`
	Name  string   `json:"name"`
	Email string   `json:"email,omitempty"`
	Roles []string `json:"roles"`
}

func NewActor(id, name string, roles ...string) Actor {
	return Actor{ID: core.CleanString(id), Name: core.CleanString(name), Roles: roles}
}

func (a Actor) RoleStartsWith(prefix string) bool {
	for _, role := range a.Roles {
		if strings.HasPrefix(role, prefix) {
			return true
		}
	}
	return false
}

func (a Actor) IsAdmin() bool {
	return a.RoleStartsWith(RoleAdmin)
}

func (a Actor) IsTeacher() bool {
	return a.RoleStartsWith(RoleTeacher)
}

// CanActFor reports whether a may act on the calendar and payroll of teacherID.
func (a Actor) CanActFor(teacherID string) bool {
	return a.IsAdmin() || (a.IsTeacher() && a.ID != "" && a.ID == teacherID)
}

// Label is how the actor appears in audit events.
func (a Actor) Label() string {
	if a.Name == "" {
		return a.ID
	}
	return a.Name + " (" + a.ID + ")"
}
