package usecase

import "github.com/rocketscienceinc/tictactoe-hub/internal/entity"

type Action string

const (
	ActionLogin      Action = "auth:login"
	ActionRegister   Action = "auth:register"
	ActionListRooms  Action = "room:list"
	ActionCreateRoom Action = "room:create"
	ActionJoinRoom   Action = "room:join"
	ActionWatchRoom  Action = "room:watch"
	ActionChat       Action = "room:chat"
	ActionLeaveRoom  Action = "room:leave"
	ActionTurn       Action = "game:turn"
	ActionRematch    Action = "game:rematch"
	ActionForfeit    Action = "game:forfeit"
)

type ListMode = entity.ListMode

const (
	ListAll    = entity.ListAll
	ListPlayer = entity.ListPlayer
	ListViewer = entity.ListViewer
)

// Request is a decoded client command.
type Request struct {
	Action   Action
	Username string
	Password string
	Room     string
	Position *int
	Mode     ListMode
	Text     string
}
