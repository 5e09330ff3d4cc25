package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/CriminalTalent/battle-system-sub001/internal/constants"
	"github.com/CriminalTalent/battle-system-sub001/internal/game"
)

type itemEntry struct {
	Key          string  `json:"key"`
	Name         string  `json:"name"`
	Kind         string  `json:"kind"`
	SuccessRate  *int    `json:"success_rate"`
	Amount       int     `json:"amount"`
	Multiplier   float64 `json:"multiplier"`
	Charges      int     `json:"charges"`
	Immediate    bool    `json:"immediate"`
	DefaultCount *int    `json:"default_count"`
}

type battleEntry struct {
	TurnTimeLimitSeconds  *int      `json:"turn_time_limit_seconds"`
	TeamPhaseSeconds      *int      `json:"team_phase_seconds"`
	BattleDurationSeconds *int      `json:"battle_duration_seconds"`
	MaxTurns              *int      `json:"max_turns"`
	MaxTeamSize           int       `json:"max_team_size"`
	WarnFractions         []float64 `json:"warn_fractions"`
	StartingHP            int       `json:"starting_hp"`
	DedupChatMS           int       `json:"dedup_chat_ms"`
	DedupSnapshotMS       int       `json:"dedup_snapshot_ms"`
	PrecisionMS           int       `json:"precision_ms"`
	FirstTeamOnTie        string    `json:"first_team_on_tie"`
	RetentionMinutes      int       `json:"retention_minutes"`
}

type rawConfig struct {
	Server *struct {
		Address string `json:"address"`
	} `json:"server"`
	Battle   *battleEntry `json:"battle"`
	ItemList []itemEntry  `json:"item_list"`
}

// BattleDefaults are applied to every battle created by the server.
type BattleDefaults struct {
	TurnTimeLimit  time.Duration
	TeamPhase      time.Duration
	BattleDuration time.Duration
	MaxTurns       int
	MaxTeamSize    int
	WarnFractions  []float64
	StartingHP     int
	DedupLine      time.Duration
	DedupSnapshot  time.Duration
	Precision      time.Duration
	FirstTeamOnTie game.TeamKey
	// Retention is how long an ended battle stays readable before the sweeper removes it.
	Retention time.Duration
}

// Settings converts the defaults into per-battle settings.
func (d BattleDefaults) Settings() game.Settings {
	return game.Settings{
		TurnTimeLimit:     d.TurnTimeLimit,
		TeamPhaseDuration: d.TeamPhase,
		BattleDuration:    d.BattleDuration,
		MaxTurns:          d.MaxTurns,
		MaxTeamSize:       d.MaxTeamSize,
		FirstTeamOnTie:    d.FirstTeamOnTie,
	}
}

// LoadedConfig contains the server address, battle defaults and item catalog.
type LoadedConfig struct {
	ServerAddress string
	Battle        BattleDefaults
	Items         game.Catalog
}

// Defaults returns the configuration used when no file is present.
func Defaults() *LoadedConfig {
	return &LoadedConfig{
		ServerAddress: constants.DefaultAddr,
		Battle: BattleDefaults{
			TurnTimeLimit:  60 * time.Second,
			TeamPhase:      5 * time.Minute,
			BattleDuration: time.Hour,
			MaxTurns:       100,
			WarnFractions:  []float64{0.8},
			StartingHP:     game.DefaultHP,
			DedupLine:      time.Second,
			DedupSnapshot:  100 * time.Millisecond,
			Precision:      time.Millisecond,
			FirstTeamOnTie: game.TeamA,
			Retention:      30 * time.Minute,
		},
		Items: game.DefaultCatalog(),
	}
}

// LoadConfigOrDefault behaves like LoadConfig but returns Defaults when the
// file does not exist.
func LoadConfigOrDefault(path string) (*LoadedConfig, error) {
	cfg, err := LoadConfig(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Defaults(), nil
	}
	return cfg, err
}

// LoadConfig reads the configuration file at path. Keys left out keep their
// default value; an empty `item_list` keeps the default catalog.
func LoadConfig(path string) (*LoadedConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	var rc rawConfig
	if err := json.Unmarshal(b, &rc); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg := Defaults()
	if rc.Server != nil && rc.Server.Address != "" {
		cfg.ServerAddress = rc.Server.Address
	}
	if rc.Battle != nil {
		if err := applyBattle(&cfg.Battle, rc.Battle); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}
	if len(rc.ItemList) > 0 {
		items, err := buildCatalog(rc.ItemList)
		if err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		cfg.Items = items
	}
	return cfg, nil
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func applyBattle(d *BattleDefaults, e *battleEntry) error {
	if e.TurnTimeLimitSeconds != nil {
		if *e.TurnTimeLimitSeconds < 0 {
			return fmt.Errorf("battle.turn_time_limit_seconds must not be negative")
		}
		d.TurnTimeLimit = seconds(*e.TurnTimeLimitSeconds)
	}
	if e.TeamPhaseSeconds != nil {
		if *e.TeamPhaseSeconds < 0 {
			return fmt.Errorf("battle.team_phase_seconds must not be negative")
		}
		d.TeamPhase = seconds(*e.TeamPhaseSeconds)
	}
	if e.BattleDurationSeconds != nil {
		if *e.BattleDurationSeconds < 0 {
			return fmt.Errorf("battle.battle_duration_seconds must not be negative")
		}
		d.BattleDuration = seconds(*e.BattleDurationSeconds)
	}
	if e.MaxTurns != nil {
		if *e.MaxTurns < 0 {
			return fmt.Errorf("battle.max_turns must not be negative")
		}
		d.MaxTurns = *e.MaxTurns
	}
	if e.MaxTeamSize != 0 {
		if e.MaxTeamSize < 1 || e.MaxTeamSize > game.MaxPerTeam {
			return fmt.Errorf("battle.max_team_size must be between 1 and %d", game.MaxPerTeam)
		}
		d.MaxTeamSize = e.MaxTeamSize
	}
	if len(e.WarnFractions) > 0 {
		for _, f := range e.WarnFractions {
			if f <= 0 || f >= 1 {
				return fmt.Errorf("battle.warn_fractions values must be in (0,1), got %v", f)
			}
		}
		d.WarnFractions = append([]float64(nil), e.WarnFractions...)
	}
	if e.StartingHP != 0 {
		if e.StartingHP < 1 {
			return fmt.Errorf("battle.starting_hp must be positive")
		}
		d.StartingHP = e.StartingHP
	}
	if e.DedupChatMS > 0 {
		d.DedupLine = time.Duration(e.DedupChatMS) * time.Millisecond
	}
	if e.DedupSnapshotMS > 0 {
		d.DedupSnapshot = time.Duration(e.DedupSnapshotMS) * time.Millisecond
	}
	if e.PrecisionMS > 0 {
		d.Precision = time.Duration(e.PrecisionMS) * time.Millisecond
	}
	if e.FirstTeamOnTie != "" {
		k, ok := game.ParseTeamKey(e.FirstTeamOnTie)
		if !ok {
			return fmt.Errorf("battle.first_team_on_tie must be A or B, got '%s'", e.FirstTeamOnTie)
		}
		d.FirstTeamOnTie = k
	}
	if e.RetentionMinutes > 0 {
		d.Retention = time.Duration(e.RetentionMinutes) * time.Minute
	}
	return nil
}

func buildCatalog(entries []itemEntry) (game.Catalog, error) {
	out := make(game.Catalog, len(entries))
	for _, it := range entries {
		key := strings.TrimSpace(it.Key)
		if key == "" {
			return nil, fmt.Errorf("item entry missing 'key'")
		}
		if _, exists := out[key]; exists {
			return nil, fmt.Errorf("duplicate item key '%s'", key)
		}
		kind := game.ItemKind(it.Kind)
		if !kind.Valid() {
			return nil, fmt.Errorf("item '%s' has unknown kind '%s'", key, it.Kind)
		}
		def := game.ItemDef{
			Key:          key,
			Name:         strings.TrimSpace(it.Name),
			Kind:         kind,
			SuccessRate:  100,
			Amount:       it.Amount,
			Multiplier:   it.Multiplier,
			Charges:      it.Charges,
			Immediate:    it.Immediate,
			DefaultCount: 1,
		}
		if def.Name == "" {
			def.Name = key
		}
		if it.SuccessRate != nil {
			if *it.SuccessRate < 0 || *it.SuccessRate > 100 {
				return nil, fmt.Errorf("item '%s' success_rate must be between 0 and 100", key)
			}
			def.SuccessRate = *it.SuccessRate
		}
		if it.DefaultCount != nil {
			if *it.DefaultCount < 0 {
				return nil, fmt.Errorf("item '%s' default_count must not be negative", key)
			}
			def.DefaultCount = *it.DefaultCount
		}
		switch kind {
		case game.ItemHeal:
			if def.Amount <= 0 {
				return nil, fmt.Errorf("heal item '%s' needs a positive 'amount'", key)
			}
		default:
			if def.Multiplier == 0 {
				def.Multiplier = 2
			}
			if def.Multiplier < 1 {
				return nil, fmt.Errorf("boost item '%s' multiplier must be at least 1", key)
			}
			if def.Charges <= 0 {
				def.Charges = 1
			}
		}
		out[key] = def
	}
	return out, nil
}
