package auth

type Action string

const (
	ActionListSchools    Action = "schools:list"
	ActionReadSchool     Action = "schools:read"
	ActionManageSchools  Action = "schools:manage"
	ActionCreateTeachers Action = "teachers:create"
	ActionReadTeachers   Action = "teachers:read"
	ActionManageTeachers Action = "teachers:manage"
	ActionReadClasses    Action = "classes:read"
	ActionManageClasses  Action = "classes:manage"
	ActionReadStudents   Action = "students:read"
	ActionManageStudents Action = "students:manage"
	ActionReadAttendance Action = "attendance:read"
	ActionMarkAttendance Action = "attendance:write"
	ActionReadGrades     Action = "grades:read"
	ActionWriteGrades    Action = "grades:write"
)

// Allow decides whether the caller may perform action against resources
// belonging to schoolID. An empty schoolID means the operation is not scoped
// to a single school (e.g. listing across all schools), which only a
// super_admin may do. Class-ownership checks for teachers are enforced at the
// repository level and are not part of this decision.
func Allow(claims *Claims, action Action, schoolID string) bool {
	if claims == nil {
		return false
	}

	switch claims.Role {
	case RoleSuperAdmin:
		return true
	case RoleSchoolAdmin:
		if claims.SchoolID == "" || claims.SchoolID != schoolID {
			return false
		}
		switch action {
		case ActionReadSchool,
			ActionCreateTeachers, ActionReadTeachers, ActionManageTeachers,
			ActionReadClasses, ActionManageClasses,
			ActionReadStudents, ActionManageStudents,
			ActionReadAttendance, ActionMarkAttendance,
			ActionReadGrades, ActionWriteGrades:
			return true
		}
		return false
	case RoleTeacher:
		if claims.SchoolID == "" || claims.SchoolID != schoolID {
			return false
		}
		switch action {
		case ActionReadSchool, ActionReadClasses, ActionReadStudents,
			ActionReadAttendance, ActionMarkAttendance,
			ActionReadGrades, ActionWriteGrades:
			return true
		}
		return false
	}
	return false
}
