package apperror

import "errors"

var (
	ErrAuthenticationFailed  = errors.New("authentication failed")
	ErrRoomNameTaken         = errors.New("room name is already taken")
	ErrRoomNotFound          = errors.New("room not found")
	ErrUsernameAlreadyInRoom = errors.New("username is already in room")
	ErrRoomFull              = errors.New("room is full")
	ErrNotYourTurn           = errors.New("it's not your turn")
	ErrInvalidMove           = errors.New("invalid move")
	ErrGameNotInProgress     = errors.New("game is not in progress")
	ErrProtocolViolation     = errors.New("protocol violation")

	ErrUsernameTaken    = errors.New("username is already registered")
	ErrInvalidRoomName  = errors.New("invalid room name")
	ErrRoomLimitReached = errors.New("room limit reached")
	ErrGameInProgress   = errors.New("game is still in progress")
	ErrInternal         = errors.New("internal error")

	ErrTooManyViolations = errors.New("too many protocol violations")
	ErrSessionClosed     = errors.New("session is closed")
	ErrOutboxOverflow    = errors.New("outbound queue overflow")

	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

// Kind is the error class reported to clients in ErrorNotice events.
type Kind string

const (
	KindAuthenticationFailed  Kind = "AuthenticationFailed"
	KindRoomNameTaken         Kind = "RoomNameTaken"
	KindRoomNotFound          Kind = "RoomNotFound"
	KindUsernameAlreadyInRoom Kind = "UsernameAlreadyInRoom"
	KindRoomFull              Kind = "RoomFull"
	KindNotYourTurn           Kind = "NotYourTurn"
	KindInvalidMove           Kind = "InvalidMove"
	KindGameNotInProgress     Kind = "GameNotInProgress"
	KindProtocolViolation     Kind = "ProtocolViolation"
	KindUsernameTaken         Kind = "UsernameTaken"
	KindInvalidRoomName       Kind = "InvalidRoomName"
	KindRoomLimitReached      Kind = "RoomLimitReached"
	KindGameInProgress        Kind = "GameInProgress"
	KindInternal              Kind = "InternalError"
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrAuthenticationFailed, KindAuthenticationFailed},
	{ErrRoomNameTaken, KindRoomNameTaken},
	{ErrRoomNotFound, KindRoomNotFound},
	{ErrUsernameAlreadyInRoom, KindUsernameAlreadyInRoom},
	{ErrRoomFull, KindRoomFull},
	{ErrNotYourTurn, KindNotYourTurn},
	{ErrInvalidMove, KindInvalidMove},
	{ErrGameNotInProgress, KindGameNotInProgress},
	{ErrProtocolViolation, KindProtocolViolation},
	{ErrTooManyViolations, KindProtocolViolation},
	{ErrUsernameTaken, KindUsernameTaken},
	{ErrInvalidRoomName, KindInvalidRoomName},
	{ErrRoomLimitReached, KindRoomLimitReached},
	{ErrGameInProgress, KindGameInProgress},
}

// KindOf classifies err. Anything outside the taxonomy is reported as InternalError.
func KindOf(err error) Kind {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}

	return KindInternal
}

// IsRecoverable reports whether err belongs to the client-facing taxonomy.
func IsRecoverable(err error) bool {
	return KindOf(err) != KindInternal
}
