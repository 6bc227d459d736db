package session

// NoticeLevel is the severity of a user-facing notice.
type NoticeLevel int

const (
	NoticeInfo NoticeLevel = iota
	NoticeWarn
	NoticeError
)

func (l NoticeLevel) String() string {
	switch l {
	case NoticeWarn:
		return "warn"
	case NoticeError:
		return "error"
	}
	return "info"
}

// Notice is a message meant for the user, as opposed to the log.
type Notice struct {
	Level   NoticeLevel
	Message string
}
