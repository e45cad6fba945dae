// Package policy is the single place where role and ownership rules live.
//
// Every catalog, content and purchase operation asks CanAccess (or its
// error-returning wrapper Authorize) before touching storage. Decisions are
// pure: they look only at the actor, the action and the resource owner, so
// the whole rule table is testable without a database.
package policy

import (
	"github.com/sakif/coursemarket/internal/apperror"
	"github.com/sakif/coursemarket/internal/model"
)

type Action string

const (
	CourseCreate    Action = "course:create"
	CourseRead      Action = "course:read"
	CourseList      Action = "course:list"
	CourseListOwned Action = "course:list-owned"
	CourseUpdate    Action = "course:update"
	CourseDelete    Action = "course:delete"

	ContentCreate Action = "content:create"
	ContentRead   Action = "content:read"
	ContentUpdate Action = "content:update"
	ContentDelete Action = "content:delete"

	PurchaseInitiate Action = "purchase:initiate"
	PurchaseList     Action = "purchase:list"
)

// Actor is the authenticated caller. StudentID and TeacherID are profile
// ids; the one matching Role is expected to be set.
type Actor struct {
	AccountID string
	Role      model.Role
	StudentID string
	TeacherID string
}

func (a Actor) IsTeacher() bool { return a.Role == model.RoleTeacher }
func (a Actor) IsStudent() bool { return a.Role == model.RoleStudent }

// Resource describes what is being accessed. OwnerTeacherID is the
// TeacherProfile id owning the course (or the content's parent course).
// It is empty for actions without a target, such as create or list.
type Resource struct {
	OwnerTeacherID string
}

// Decision is the outcome of a policy check. Invalid marks an actor whose
// state breaks an invariant (a teacher with no profile) rather than a
// plain denial.
type Decision struct {
	Allowed bool
	Reason  string
	Invalid bool
}

// rule describes one action.
//
// students/teachers say which roles may attempt it at all. For teachers,
// ownedByTeacher additionally requires the resource to belong to them.
// Students are never subject to ownership: where they are allowed, they
// are allowed on every course.
type rule struct {
	students       bool
	teachers       bool
	ownedByTeacher bool
	wrongRole      string
	notOwner       string
}

var rules = map[Action]rule{
	CourseCreate: {
		teachers:  true,
		wrongRole: "Students cannot create courses. They can only learn.",
	},
	CourseRead: {
		students: true, teachers: true, ownedByTeacher: true,
		notOwner: "You are not allowed to view this course detail.",
	},
	// Teachers may list, but only their own courses: the caller narrows the
	// query to actor.TeacherID.
	CourseList: {
		students: true, teachers: true,
	},
	CourseListOwned: {
		teachers:  true,
		wrongRole: "Students are not allowed here.",
	},
	CourseUpdate: {
		teachers: true, ownedByTeacher: true,
		wrongRole: "Students are not allowed to update courses.",
		notOwner:  "You are not allowed to update this course.",
	},
	CourseDelete: {
		teachers: true, ownedByTeacher: true,
		wrongRole: "Students are not allowed to delete courses.",
		notOwner:  "You are not allowed to delete this course.",
	},
	ContentCreate: {
		teachers: true, ownedByTeacher: true,
		wrongRole: "Students are not allowed to create course content.",
		notOwner:  "You can only create content for your own courses.",
	},
	// Students read content of any course. Purchase gating applies only to
	// the purchased-courses view.
	ContentRead: {
		students: true, teachers: true, ownedByTeacher: true,
		notOwner: "This is not your course, so you are not allowed to view content details.",
	},
	ContentUpdate: {
		teachers: true, ownedByTeacher: true,
		wrongRole: "Students are not allowed to update course content.",
		notOwner:  "You are not allowed to update course content for this course.",
	},
	ContentDelete: {
		teachers: true, ownedByTeacher: true,
		wrongRole: "Students are not allowed to delete course content.",
		notOwner:  "You are not allowed to delete course content for this course.",
	},
	PurchaseInitiate: {
		students:  true,
		wrongRole: "Teachers are not allowed to purchase courses.",
	},
	PurchaseList: {
		students:  true,
		wrongRole: "Teachers are not allowed to access student courses.",
	},
}

// CanAccess decides whether actor may perform action on resource.
func CanAccess(actor Actor, action Action, resource Resource) Decision {
	r, ok := rules[action]
	if !ok {
		return Decision{Reason: "Unknown action."}
	}
	if !actor.Role.Valid() {
		return Decision{Reason: "Your account has no role assigned."}
	}
	if actor.IsTeacher() && actor.TeacherID == "" {
		return Decision{Reason: "teacher account has no teacher profile", Invalid: true}
	}

	switch {
	case actor.IsStudent() && r.students:
		return Decision{Allowed: true}
	case actor.IsTeacher() && r.teachers:
		if r.ownedByTeacher && (resource.OwnerTeacherID == "" || resource.OwnerTeacherID != actor.TeacherID) {
			return Decision{Reason: r.notOwner}
		}
		return Decision{Allowed: true}
	default:
		return Decision{Reason: r.wrongRole}
	}
}

// Authorize is CanAccess for callers that want an error: nil when allowed,
// apperror.ErrForbidden on denial, apperror.ErrInvalidState when the actor
// itself is inconsistent.
func Authorize(actor Actor, action Action, resource Resource) error {
	d := CanAccess(actor, action, resource)
	switch {
	case d.Allowed:
		return nil
	case d.Invalid:
		return apperror.InvalidState(d.Reason)
	default:
		return apperror.Forbidden(d.Reason)
	}
}
