package game

import "time"

// Snapshot is the serializable view of a battle pushed to clients.
type Snapshot struct {
	ID        string       `json:"id"`
	Mode      string       `json:"mode"`
	Phase     Phase        `json:"phase"`
	Teams     []Team       `json:"teams"`
	CurrentID string       `json:"current_actor"`
	Order     []string     `json:"turn_order"`
	Turn      int          `json:"turn"`
	Round     int          `json:"round"`
	TurnTeam  TeamKey      `json:"turn_team"`
	Log       []LogEntry   `json:"log"`
	Chat      []ChatEntry  `json:"chat"`
	Winner    TeamKey      `json:"winner,omitempty"`
	EndReason string       `json:"end_reason,omitempty"`
	Effects   []Effect     `json:"effects"`
	Settings  SettingsView `json:"settings"`
	Elapsed   float64      `json:"elapsed_seconds"`
	CreatedAt time.Time    `json:"created_at"`
}

// SettingsView renders durations in seconds for clients.
type SettingsView struct {
	TurnTimeLimit     float64 `json:"turn_time_limit_seconds"`
	TeamPhaseDuration float64 `json:"team_phase_seconds"`
	BattleDuration    float64 `json:"battle_duration_seconds"`
	MaxTurns          int     `json:"max_turns"`
	MaxTeamSize       int     `json:"max_team_size"`
}

// Snapshot deep-copies the battle so it can be encoded outside the battle lock.
func (b *Battle) Snapshot(now time.Time) Snapshot {
	s := Snapshot{
		ID:        b.ID,
		Mode:      b.Mode.String(),
		Phase:     b.Phase,
		CurrentID: b.Turn.ActorID,
		Order:     append([]string(nil), b.Order...),
		Turn:      b.Turn.Number,
		Round:     b.Turn.Round,
		TurnTeam:  b.Turn.Team,
		Log:       append([]LogEntry(nil), b.Log...),
		Chat:      append([]ChatEntry(nil), b.Chat...),
		Winner:    b.Winner,
		EndReason: b.EndReason,
		Elapsed:   b.Elapsed(now).Seconds(),
		CreatedAt: b.CreatedAt,
		Settings: SettingsView{
			TurnTimeLimit:     b.Settings.TurnTimeLimit.Seconds(),
			TeamPhaseDuration: b.Settings.TeamPhaseDuration.Seconds(),
			BattleDuration:    b.Settings.BattleDuration.Seconds(),
			MaxTurns:          b.Settings.MaxTurns,
			MaxTeamSize:       b.Settings.MaxTeamSize,
		},
	}
	for _, t := range b.Teams {
		tc := Team{Key: t.Key, Name: t.Name, Players: make([]*Player, 0, len(t.Players))}
		for _, p := range t.Players {
			pc := *p
			pc.Inventory = make(map[string]int, len(p.Inventory))
			for k, v := range p.Inventory {
				pc.Inventory[k] = v
			}
			tc.Players = append(tc.Players, &pc)
		}
		s.Teams = append(s.Teams, tc)
	}
	for _, e := range b.Effects {
		s.Effects = append(s.Effects, *e)
	}
	return s
}
