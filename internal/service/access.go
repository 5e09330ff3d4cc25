package service

import (
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/CriminalTalent/battle-system-sub001/internal/auth"
	"github.com/CriminalTalent/battle-system-sub001/internal/constants"
	"github.com/CriminalTalent/battle-system-sub001/internal/game"
	"github.com/CriminalTalent/battle-system-sub001/internal/logging"
)

var ErrCodesUnavailable = errors.New("one-time codes are not configured")

// IssueOneTimeCode creates a code that logs its holder into battleID as role.
// Player codes may name the character the holder is bound to.
func (s *BattleService) IssueOneTimeCode(battleID string, role game.Role, name string) (*game.AccessCode, error) {
	if s.codes == nil {
		return nil, ErrCodesUnavailable
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	name = strings.TrimSpace(name)
	err := s.store.WithBattle(battleID, func(b *game.Battle) error {
		if b.Phase == game.PhaseEnded {
			return ErrAlreadyEnded
		}
		if role == game.RolePlayer && name != "" {
			p := b.PlayerByName(name)
			if p == nil {
				return ErrPlayerNotFound
			}
			name = p.Name
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	code, err := auth.NewOneTimeCode()
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	c := &game.AccessCode{
		BattleID:  battleID,
		Code:      code,
		Role:      role,
		Name:      name,
		ExpiresAt: now.Add(auth.CodeTTL),
		CreatedAt: now,
	}
	if err := s.codes.SaveCode(c); err != nil {
		return nil, err
	}
	logging.Info("one-time code issued", logging.Fields{
		constants.LogFieldBattleID: battleID,
		constants.LogFieldRole:     string(role),
	})
	return c, nil
}

// LoginResult is the session handed out for a redeemed code.
type LoginResult struct {
	OK       bool      `json:"ok"`
	Role     game.Role `json:"role"`
	Token    string    `json:"token"`
	Name     string    `json:"name,omitempty"`
	PlayerID string    `json:"player_id,omitempty"`
}

// Login redeems a one-time code and returns a session token. The code can be
// used once; player logins claim the character named on the code.
func (s *BattleService) Login(battleID string, role game.Role, name, code string) (*LoginResult, error) {
	if s.codes == nil {
		return nil, ErrCodesUnavailable
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	code = auth.NormalizeCode(code)
	if !auth.ValidCode(code) {
		return nil, ErrInvalidCode
	}
	if _, err := s.Snapshot(battleID); err != nil {
		return nil, err
	}
	c, err := s.codes.ConsumeCode(battleID, code, role, strings.TrimSpace(name), s.clock.Now())
	if err != nil {
		return nil, err
	}
	res := &LoginResult{OK: true, Role: role}
	if role == game.RolePlayer {
		if c.Name != "" {
			name = c.Name
		}
		err := s.mutate(battleID, func(b *game.Battle, _ *session, m *mutation) error {
			p := b.PlayerByName(name)
			if p == nil {
				return ErrPlayerNotFound
			}
			res.Name, res.PlayerID = p.Name, p.ID
			if p.Claimed {
				m.quiet = true
				return nil
			}
			p.Claimed = true
			m.logf(game.LogSystem, "%s connected", p.Name)
			return nil
		})
		if err != nil {
			return nil, err
		}
	} else {
		res.Name = strings.TrimSpace(name)
	}
	tok, err := s.signer.Issue(battleID, role, res.Name, res.PlayerID)
	if err != nil {
		return nil, err
	}
	res.Token = tok
	logging.Info("login", logging.Fields{
		constants.LogFieldBattleID: battleID,
		constants.LogFieldRole:     string(role),
		constants.LogFieldName:     res.Name,
	})
	return res, nil
}

// Authenticate resolves a bearer token for battleID. Session tokens and the
// battle's role access tokens are accepted.
func (s *BattleService) Authenticate(battleID, token string) (*auth.Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrUnauthorized
	}
	if claims, err := s.signer.Parse(token); err == nil {
		if claims.BattleID != battleID {
			return nil, ErrUnauthorized
		}
		return claims, nil
	}
	var claims *auth.Claims
	err := s.store.WithBattle(battleID, func(b *game.Battle) error {
		for role, t := range b.Tokens {
			if subtle.ConstantTimeCompare([]byte(t), []byte(token)) == 1 {
				claims = &auth.Claims{BattleID: battleID, Role: role}
				return nil
			}
		}
		return ErrUnauthorized
	})
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// Links returns the access token of every role.
func (s *BattleService) Links(battleID string) (map[game.Role]string, error) {
	out := map[game.Role]string{}
	err := s.store.WithBattle(battleID, func(b *game.Battle) error {
		for r, t := range b.Tokens {
			out[r] = t
		}
		return nil
	})
	return out, err
}
