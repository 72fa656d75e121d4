package observerproto

// Version is the observer protocol version.
const Version = "0.1"

const (
	TypeSubscribe = "SUBSCRIBE"
	TypeTick      = "TICK"
)

// Client -> Server. First message on the observer WS connection, and can be re-sent to update settings.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	// Every thins the feed to one TICK per Every ticks.
	Every int `json:"every"`
	// Teams limits the per-team fields; empty means all teams.
	Teams []int `json:"teams,omitempty"`
}

// HTTP response for GET /observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string      `json:"protocol_version"`
	SceneID         string      `json:"scene_id"`
	Session         string      `json:"session"`
	Tick            uint64      `json:"tick"`
	SceneParams     SceneParams `json:"scene_params"`
	Areas           []string    `json:"areas"`
	Palette         []string    `json:"palette"`
}

type SceneParams struct {
	Name       string `json:"name"`
	TickRateHz int    `json:"tick_rate_hz"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	WrapX      bool   `json:"wrap_x"`
	WrapY      bool   `json:"wrap_y"`
	Seed       uint64 `json:"seed"`
	NodeSize   int    `json:"node_size"`
}

// Server -> Client. Sent every tick (subject to SubscribeMsg.Every).
type TickMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SceneID         string `json:"scene_id"`
	Tick            uint64 `json:"tick"`

	Teams   []TeamState   `json:"teams"`
	Players []PlayerState `json:"players,omitempty"`

	BuildRound       bool `json:"build_round,omitempty"`
	FullRecompute    bool `json:"full_recompute,omitempty"`
	PartialRecompute bool `json:"partial_recompute,omitempty"`
	ChangedNodes     int  `json:"changed_nodes,omitempty"`
	PathBacklog      int  `json:"path_backlog"`

	TotalInvestment float64 `json:"total_investment"`
}

type TeamState struct {
	Team         int    `json:"team"`
	Visibility   string `json:"visibility"`
	CellsCleaned int    `json:"cells_cleaned"`
}

type PlayerState struct {
	Player      int     `json:"player"`
	Team        int     `json:"team"`
	Budget      float64 `json:"budget"`
	Spent       float64 `json:"spent,omitempty"`
	Placed      int     `json:"placed,omitempty"`
	AIPlanMoved int     `json:"ai_plan_moved,omitempty"`
	HasBrain    bool    `json:"has_brain"`
}

// Filter returns a copy of m holding only the listed teams and their
// players. An empty list keeps everything.
func (m TickMsg) Filter(teams []int) TickMsg {
	if len(teams) == 0 {
		return m
	}
	keep := make(map[int]bool, len(teams))
	for _, t := range teams {
		keep[t] = true
	}
	out := m
	out.Teams = nil
	for _, ts := range m.Teams {
		if keep[ts.Team] {
			out.Teams = append(out.Teams, ts)
		}
	}
	out.Players = nil
	for _, ps := range m.Players {
		if keep[ps.Team] {
			out.Players = append(out.Players, ps)
		}
	}
	return out
}
