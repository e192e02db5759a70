// Package session holds the pure rules of the cheering session state machine.
//
// The rules are deliberately side-effect free: the lifecycle manager applies
// them, the backend enforces them again server-side.
package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/grandstand/cheer/internal/domain/model"
)

// CanTransition reports whether a status change is legal. Extension is not a
// transition; it only moves the effective end time of a live session.
func CanTransition(from, to model.SessionStatus) bool {
	switch from {
	case model.StatusScheduled:
		return to == model.StatusLive
	case model.StatusLive, model.StatusExtended:
		return to == model.StatusEnded
	default:
		// Ended is terminal; a new session must be started for the event.
		return false
	}
}

// CanStart reports whether a role may take a session live.
func CanStart(role model.Role) bool {
	switch role {
	case model.RoleOwner, model.RoleCoach, model.RoleStaff:
		return true
	default:
		return false
	}
}

// CanEnd reports whether a caller may end a live session: the session
// starter, or a coach/staff role.
func CanEnd(s model.Session, userID uuid.UUID, role model.Role) bool {
	if !s.Live() {
		return false
	}
	if s.StartedBy == userID {
		return true
	}
	return role == model.RoleCoach || role == model.RoleStaff
}

// CanExtend shares the end gate and additionally requires the session to be
// past its effective end: extending an on-time session is meaningless.
func CanExtend(s model.Session, userID uuid.UUID, role model.Role, now time.Time) bool {
	return CanEnd(s, userID, role) && Overrun(s, now)
}

// Overrun reports whether a live session has run past its effective end.
func Overrun(s model.Session, now time.Time) bool {
	return s.Live() && now.After(s.EffectiveEnd())
}
