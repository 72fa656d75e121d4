// Package roster holds the fixed team and player slot ranges.
package roster

const (
	MaxTeams   = 4
	MaxPlayers = 4

	NoTeam   = -1
	NoPlayer = -1
)

func ValidTeam(t int) bool   { return t >= 0 && t < MaxTeams }
func ValidPlayer(p int) bool { return p >= 0 && p < MaxPlayers }
