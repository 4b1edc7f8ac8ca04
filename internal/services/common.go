package services

import (
	"regexp"

	"eventhub/internal/domain"
)

var emailRegexp = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func requireCaller(caller domain.Caller) error {
	if caller.Anonymous() {
		return domain.ErrUnauthorized
	}
	return nil
}

// canView applies the read visibility rule: approved events are public, the
// creator always sees their own, and a superadmin sees everything.
func canView(caller domain.Caller, e *domain.Event) bool {
	if e.Status == domain.EventStatusApproved || caller.Is(domain.RoleSuperAdmin) {
		return true
	}
	return !caller.Anonymous() && caller.ID == e.CreatorID
}

// canManage reports whether caller may read registrant details of e.
func canManage(caller domain.Caller, e *domain.Event) bool {
	if caller.Is(domain.RoleSuperAdmin) {
		return true
	}
	return !caller.Anonymous() && caller.ID == e.CreatorID
}
