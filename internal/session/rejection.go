/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package session

import (
	_ "embed"

	"github.com/leonelquinteros/gotext"
)

// Rejection codes. Each has a message in locales/en.po.
const (
	CodeNotHostStart              = "not_host_start"
	CodeNotHostRestart            = "not_host_restart"
	CodePlayersNotReady           = "players_not_ready"
	CodeNoPlayers                 = "no_players"
	CodeTeamsIncomplete           = "teams_incomplete"
	CodeTeamsUnbalanced           = "teams_unbalanced"
	CodeNotWaiting                = "not_waiting"
	CodeRoundNotFinished          = "round_not_finished"
	CodeTeamModeDisabled          = "team_mode_disabled"
	CodeTeamLocked                = "team_locked"
	CodeInvalidTeam               = "invalid_team"
	CodeCheckpointsIncomplete     = "checkpoints_incomplete"
	CodeTeamCheckpointsIncomplete = "team_checkpoints_incomplete"
	CodeTunnelModeDisabled        = "tunnel_mode_disabled"
	CodeNoLightningCharges        = "no_lightning_charges"
)

//go:embed locales/en.po
var catalogue []byte

var messages = func() *gotext.Po {
	po := gotext.NewPo()
	po.Parse(catalogue)
	return po
}()

// Rejection is a policy violation reported only to the player who caused it.
type Rejection struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (r *Rejection) Error() string {
	return r.Message
}

func newRejection(code string, args ...any) *Rejection {
	return &Rejection{
		Code:    code,
		Message: messages.Get(code, args...),
	}
}
