package game

import (
	"fmt"
	"strings"
	"time"

	"github.com/CriminalTalent/battle-system-sub001/internal/keys"
)

type Phase string

const (
	PhaseLobby  Phase = "lobby"
	PhaseActive Phase = "active"
	PhasePaused Phase = "paused"
	PhaseEnded  Phase = "ended"
)

type Role string

const (
	RoleAdmin     Role = "admin"
	RolePlayer    Role = "player"
	RoleSpectator Role = "spectator"
)

// Valid reports whether r is one of the three battle roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RolePlayer || r == RoleSpectator
}

// TeamKey identifies one of the two fixed teams. Draw is only used as a winner value.
type TeamKey string

const (
	TeamA TeamKey = "A"
	TeamB TeamKey = "B"
	Draw  TeamKey = "draw"
)

func (k TeamKey) Valid() bool { return k == TeamA || k == TeamB }

// Opponent returns the other team key.
func (k TeamKey) Opponent() TeamKey {
	if k == TeamA {
		return TeamB
	}
	return TeamA
}

// ParseTeamKey accepts "A"/"B" in any case, plus the "team1"/"team2" spellings.
func ParseTeamKey(s string) (TeamKey, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "a", "team1", "teama", "team_a":
		return TeamA, true
	case "b", "team2", "teamb", "team_b":
		return TeamB, true
	}
	return "", false
}

const (
	MinStat    = 1
	MaxStat    = 5
	DefaultHP  = 100
	MaxPerTeam = 4
)

// Mode is the battle format; there are always two teams of PerTeam players.
type Mode struct {
	PerTeam int `json:"per_team"`
}

// ParseMode parses "1v1" through "4v4".
func ParseMode(s string) (Mode, error) {
	var a, b int
	if _, err := fmt.Sscanf(strings.ToLower(strings.TrimSpace(s)), "%dv%d", &a, &b); err != nil {
		return Mode{}, fmt.Errorf("invalid mode %q", s)
	}
	if a != b || a < 1 || a > MaxPerTeam {
		return Mode{}, fmt.Errorf("invalid mode %q: teams must be equal and between 1 and %d", s, MaxPerTeam)
	}
	return Mode{PerTeam: a}, nil
}

func (m Mode) String() string { return fmt.Sprintf("%dv%d", m.PerTeam, m.PerTeam) }

type Stats struct {
	Attack  int `json:"attack"`
	Defense int `json:"defense"`
	Agility int `json:"agility"`
	Luck    int `json:"luck"`
}

func clampStat(v int) int {
	if v < MinStat {
		return MinStat
	}
	if v > MaxStat {
		return MaxStat
	}
	return v
}

// Clamped returns s with every stat forced into [MinStat, MaxStat].
func (s Stats) Clamped() Stats {
	return Stats{
		Attack:  clampStat(s.Attack),
		Defense: clampStat(s.Defense),
		Agility: clampStat(s.Agility),
		Luck:    clampStat(s.Luck),
	}
}

// Buff is the per-player view of active effects, derived from Battle.Effects.
type Buff struct {
	AttackMultiplier  float64 `json:"attack_multiplier"`
	DefenseMultiplier float64 `json:"defense_multiplier"`
	Remaining         int     `json:"remaining"`
}

type Player struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Team       TeamKey        `json:"team"`
	HP         int            `json:"hp"`
	MaxHP      int            `json:"max_hp"`
	Stats      Stats          `json:"stats"`
	Inventory  map[string]int `json:"inventory"`
	HasActed   bool           `json:"has_acted"`
	Initiative int            `json:"initiative"`
	// Claimed is set once a player logged in or joined as this character.
	Claimed bool `json:"claimed"`
	Buff    Buff `json:"buff"`
}

func (p *Player) Alive() bool { return p.HP > 0 }

// Damage lowers hp without going below zero and returns the amount applied.
func (p *Player) Damage(n int) int {
	if n < 0 {
		n = 0
	}
	if n > p.HP {
		n = p.HP
	}
	p.HP -= n
	return n
}

// Heal raises hp, clamped to MaxHP, and returns the amount applied.
func (p *Player) Heal(n int) int {
	before := p.HP
	p.HP += n
	if p.HP > p.MaxHP {
		p.HP = p.MaxHP
	}
	return p.HP - before
}

type Team struct {
	Key     TeamKey   `json:"key"`
	Name    string    `json:"name"`
	Players []*Player `json:"players"`
}

type EffectType string

const (
	EffectAttackBoost  EffectType = "attack_boost"
	EffectDefenseBoost EffectType = "defense_boost"
)

type Effect struct {
	ID         string     `json:"id"`
	OwnerID    string     `json:"owner_id"`
	Type       EffectType `json:"type"`
	Multiplier float64    `json:"multiplier"`
	Charges    int        `json:"charges"`
	Source     string     `json:"source"`
}

type TurnState struct {
	ActorID   string    `json:"actor_id"`
	Index     int       `json:"index"`
	Number    int       `json:"number"`
	Completed int       `json:"completed"`
	Round     int       `json:"round"`
	Team      TeamKey   `json:"team"`
	ChangedAt time.Time `json:"changed_at"`
	// AutoPassed holds participants passed by a timeout in the current team phase.
	AutoPassed map[string]bool `json:"-"`
}

type Settings struct {
	TurnTimeLimit     time.Duration `json:"turn_time_limit"`
	TeamPhaseDuration time.Duration `json:"team_phase_duration"`
	BattleDuration    time.Duration `json:"battle_duration"`
	MaxTurns          int           `json:"max_turns"`
	MaxTeamSize       int           `json:"max_team_size"`
	FirstTeamOnTie    TeamKey       `json:"first_team_on_tie"`
}

type LogKind string

const (
	LogSystem LogKind = "system"
	LogCombat LogKind = "combat"
	LogItem   LogKind = "item"
	LogTurn   LogKind = "turn"
	LogTimer  LogKind = "timer"
)

type LogEntry struct {
	Seq  int       `json:"seq"`
	At   time.Time `json:"at"`
	Kind LogKind   `json:"kind"`
	Text string    `json:"text"`
}

type ChatEntry struct {
	Seq        int       `json:"seq"`
	At         time.Time `json:"at"`
	Sender     string    `json:"sender"`
	SenderType Role      `json:"sender_type"`
	Text       string    `json:"text"`
}

type Battle struct {
	ID          string
	Mode        Mode
	Phase       Phase
	Teams       [2]*Team
	Order       []string
	Turn        TurnState
	Log         []LogEntry
	Chat        []ChatEntry
	Settings    Settings
	Effects     []*Effect
	Tokens      map[Role]string
	Winner      TeamKey
	EndReason   string
	CreatedAt   time.Time
	StartedAt   time.Time
	PausedAt    time.Time
	EndedAt     time.Time
	PausedTotal time.Duration
}

// NewBattle returns a lobby battle with two empty teams.
func NewBattle(id string, mode Mode, settings Settings, now time.Time) *Battle {
	if settings.MaxTeamSize <= 0 || settings.MaxTeamSize > mode.PerTeam {
		settings.MaxTeamSize = mode.PerTeam
	}
	if !settings.FirstTeamOnTie.Valid() {
		settings.FirstTeamOnTie = TeamA
	}
	return &Battle{
		ID:        id,
		Mode:      mode,
		Phase:     PhaseLobby,
		Teams:     [2]*Team{{Key: TeamA, Name: "Team A"}, {Key: TeamB, Name: "Team B"}},
		Settings:  settings,
		Tokens:    map[Role]string{},
		CreatedAt: now,
	}
}

func (b *Battle) Team(k TeamKey) *Team {
	switch k {
	case TeamA:
		return b.Teams[0]
	case TeamB:
		return b.Teams[1]
	}
	return nil
}

// Players returns every participant, team A first.
func (b *Battle) Players() []*Player {
	out := make([]*Player, 0, len(b.Teams[0].Players)+len(b.Teams[1].Players))
	out = append(out, b.Teams[0].Players...)
	return append(out, b.Teams[1].Players...)
}

func (b *Battle) Player(id string) *Player {
	for _, t := range b.Teams {
		for _, p := range t.Players {
			if p.ID == id {
				return p
			}
		}
	}
	return nil
}

// PlayerByName finds a participant whose display name has the same name key
// (case and spacing are ignored).
func (b *Battle) PlayerByName(name string) *Player {
	n := keys.NameKey(name)
	if n == "" {
		return nil
	}
	for _, p := range b.Players() {
		if keys.NameKey(p.Name) == n {
			return p
		}
	}
	return nil
}

// Living returns the living members of team k in team order.
func (b *Battle) Living(k TeamKey) []*Player {
	t := b.Team(k)
	if t == nil {
		return nil
	}
	out := make([]*Player, 0, len(t.Players))
	for _, p := range t.Players {
		if p.Alive() {
			out = append(out, p)
		}
	}
	return out
}

// RemovePlayer drops a participant entirely; only legal before the battle starts.
func (b *Battle) RemovePlayer(id string) bool {
	for _, t := range b.Teams {
		for i, p := range t.Players {
			if p.ID == id {
				t.Players = append(t.Players[:i], t.Players[i+1:]...)
				return true
			}
		}
	}
	return false
}

func (b *Battle) AppendLog(kind LogKind, at time.Time, text string) LogEntry {
	e := LogEntry{Seq: len(b.Log) + 1, At: at, Kind: kind, Text: text}
	b.Log = append(b.Log, e)
	return e
}

func (b *Battle) AppendChat(sender string, senderType Role, at time.Time, text string) ChatEntry {
	e := ChatEntry{Seq: len(b.Chat) + 1, At: at, Sender: sender, SenderType: senderType, Text: text}
	b.Chat = append(b.Chat, e)
	return e
}

// Elapsed is the active (unpaused) play time since the battle started.
func (b *Battle) Elapsed(now time.Time) time.Duration {
	if b.StartedAt.IsZero() {
		return 0
	}
	end := now
	if !b.EndedAt.IsZero() {
		end = b.EndedAt
	}
	d := end.Sub(b.StartedAt) - b.PausedTotal
	if b.Phase == PhasePaused && !b.PausedAt.IsZero() {
		d -= end.Sub(b.PausedAt)
	}
	if d < 0 {
		return 0
	}
	return d
}
