package domain

// Metrics records business counters. Implementations must be safe for concurrent use.
type Metrics interface {
	EventTransition(transition string)
	RegistrationCreated(scope string)
	NotificationsCreated(typ NotificationType, n int)
	EmailSent(template string, err error)
}
