package gallery

// Level is the severity of a Notification.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notification is a short human-readable outcome shown to the user.
type Notification struct {
	Level   Level
	Message string
}

// Notifier receives the outcome of every user-visible operation.
// Presentation layers decide how long a notification stays on screen.
type Notifier interface {
	Notify(n Notification)
}

// NopNotifier drops every notification.
type NopNotifier struct{}

func (NopNotifier) Notify(Notification) {}

// Session is the credential owner the engine reports rejected credentials to.
type Session interface {
	// Invalidate discards the current credential after the backend rejected it.
	Invalidate(reason error)
}

type nopSession struct{}

func (nopSession) Invalidate(error) {}
