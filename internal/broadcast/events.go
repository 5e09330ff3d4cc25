package broadcast

import "time"

// Kind is a canonical outbound event name.
type Kind string

const (
	StateUpdated Kind = "state_updated"
	LogAppended  Kind = "log_appended"
	ChatMessage  Kind = "chat_message"
	TimerTick    Kind = "timer_tick"
	TimerWarning Kind = "timer_warning"
	TurnTimeout  Kind = "turn_timeout"
	BattleEnded  Kind = "battle_ended"
)

// Kinds lists every canonical outbound kind.
var Kinds = []Kind{StateUpdated, LogAppended, ChatMessage, TimerTick, TimerWarning, TurnTimeout, BattleEnded}

// Command is a canonical inbound command name.
type Command string

const (
	CmdCreateBattle Command = "create_battle"
	CmdJoinBattle   Command = "join_battle"
	CmdPlayerAction Command = "player_action"
	CmdChat         Command = "chat_message"
	CmdIssueCode    Command = "admin_issue_code"
	CmdLogin        Command = "login"
	CmdForceEnd     Command = "admin_force_end"
)

// outboundAliases maps each kind to the name legacy clients listen for.
var outboundAliases = map[Kind]string{
	StateUpdated: "battleUpdate",
	LogAppended:  "battle:log",
	ChatMessage:  "chatMessage",
	TimerTick:    "timer:tick",
	TimerWarning: "timer:warning",
	TurnTimeout:  "turn:timeout",
	BattleEnded:  "battle:end",
}

// inboundAliases maps every accepted command spelling to its canonical command.
var inboundAliases = map[string]Command{
	"create_battle":         CmdCreateBattle,
	"createBattle":          CmdCreateBattle,
	"battle:create":         CmdCreateBattle,
	"join_battle":           CmdJoinBattle,
	"joinBattle":            CmdJoinBattle,
	"battle:join":           CmdJoinBattle,
	"player_action":         CmdPlayerAction,
	"playerAction":          CmdPlayerAction,
	"battle:action":         CmdPlayerAction,
	"chat_message":          CmdChat,
	"chatMessage":           CmdChat,
	"battle:chat":           CmdChat,
	"admin_issue_code":      CmdIssueCode,
	"adminIssueOneTimeCode": CmdIssueCode,
	"admin:otp":             CmdIssueCode,
	"login":                 CmdLogin,
	"auth:login":            CmdLogin,
	"admin_force_end":       CmdForceEnd,
	"adminForceEnd":         CmdForceEnd,
	"admin:forceEnd":        CmdForceEnd,
}

// Outbound returns the wire name of kind for a client, using the legacy
// alias when the client asked for it.
func Outbound(kind Kind, legacy bool) string {
	if legacy {
		if alias, ok := outboundAliases[kind]; ok {
			return alias
		}
	}
	return string(kind)
}

// CanonicalCommand resolves any accepted spelling of an inbound command.
func CanonicalCommand(name string) (Command, bool) {
	c, ok := inboundAliases[name]
	return c, ok
}

// DefaultWindows returns the dedup window per kind: snapshots use the short
// window, ticks are never suppressed, everything else uses the line window.
func DefaultWindows(line, snapshot time.Duration) map[Kind]time.Duration {
	out := make(map[Kind]time.Duration, len(Kinds))
	for _, k := range Kinds {
		out[k] = line
	}
	out[StateUpdated] = snapshot
	out[TimerTick] = 0
	return out
}

// Message is the envelope written to subscribers.
type Message struct {
	Event    string      `json:"event"`
	BattleID string      `json:"battle_id"`
	Data     interface{} `json:"data"`
	At       time.Time   `json:"at"`
}
