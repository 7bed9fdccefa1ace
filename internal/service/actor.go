package service

import "github.com/hearthschool/hub-api/internal/models"

// Actor identifies the authenticated caller for ownership checks. StudentID
// is set only for student accounts.
type Actor struct {
	UserID    string
	Role      models.UserRole
	StudentID *string
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

// CanActForStudent reports whether the actor may read data scoped to the
// given student profile. Parents are checked against the profile's parent_id
// by callers; this covers admin and self access.
func (a Actor) CanActForStudent(studentID string) bool {
	if a.IsAdmin() {
		return true
	}
	return a.Role == models.RoleStudent && a.StudentID != nil && *a.StudentID == studentID
}
