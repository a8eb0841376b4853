package user

import "testing"

func TestActor_CanActFor(t *testing.T) {
	tests := []struct {
		name      string
		actor     Actor
		teacherID string
		want      bool
	}{
		{name: "admin", actor: NewActor("a1", "Admin", RoleAdmin), teacherID: "t1", want: true},
		{name: "principal", actor: NewActor("a2", "Principal", RoleAdminPrincipal), teacherID: "t1", want: true},
		{name: "teacher self", actor: NewActor("t1", "Teacher", RoleTeacher), teacherID: "t1", want: true},
		{name: "teacher other", actor: NewActor("t2", "Teacher", RoleTeacher), teacherID: "t1", want: false},
		{name: "no roles", actor: NewActor("t1", "Nobody"), teacherID: "t1", want: false},
		{name: "empty id", actor: NewActor("", "Teacher", RoleTeacher), teacherID: "", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.actor.CanActFor(tt.teacherID); got != tt.want {
				t.Errorf("CanActFor() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMaxRolePriority(t *testing.T) {
	if got := MaxRolePriority([]string{RoleTeacher, RoleAdminPrincipal}); got != 29 {
		t.Errorf("MaxRolePriority() = %d, want 29", got)
	}
	if got := MaxRolePriority(nil); got != 0 {
		t.Errorf("MaxRolePriority(nil) = %d, want 0", got)
	}
}

func TestActor_Label(t *testing.T) {
	if got := NewActor("a1", " Jane ").Label(); got != "Jane (a1)" {
		t.Errorf("Label() = %q", got)
	}
	if got := NewActor("a1", "").Label(); got != "a1" {
		t.Errorf("Label() = %q", got)
	}
}
