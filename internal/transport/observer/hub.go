package observer

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"scenecraft.ai/internal/observerproto"
	"scenecraft.ai/internal/sim/scene"
	"scenecraft.ai/internal/sim/scene/roster"
	"scenecraft.ai/internal/sim/scene/visibility"
)

type subscriber struct {
	out   chan []byte
	every int
	teams []int
}

// Hub fans tick summaries out to observer sessions. Publish is called from
// the tick loop and never blocks on a slow session.
type Hub struct {
	log zerolog.Logger

	mu        sync.Mutex
	subs      map[string]*subscriber
	bootstrap observerproto.BootstrapResponse
	lastTick  uint64
	dropped   uint64
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		log:  log.With().Str("component", "observer").Logger(),
		subs: map[string]*subscriber{},
	}
}

func (h *Hub) join(id string, out chan []byte, sub observerproto.SubscribeMsg) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[id] = &subscriber{out: out, every: sub.Every, teams: sub.Teams}
	h.log.Debug().Str("session", id).Int("every", sub.Every).Msg("observer joined")
}

func (h *Hub) update(id string, sub observerproto.SubscribeMsg) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.subs[id]; ok {
		s.every = sub.Every
		s.teams = sub.Teams
	}
}

func (h *Hub) leave(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, id)
	h.log.Debug().Str("session", id).Msg("observer left")
}

// Sessions returns the number of subscribed sessions.
func (h *Hub) Sessions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Dropped counts messages discarded on full session queues.
func (h *Hub) Dropped() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}

func (h *Hub) SetBootstrap(b observerproto.BootstrapResponse) {
	b.ProtocolVersion = observerproto.Version
	h.mu.Lock()
	h.bootstrap = b
	h.mu.Unlock()
}

func (h *Hub) Bootstrap() observerproto.BootstrapResponse {
	h.mu.Lock()
	defer h.mu.Unlock()
	b := h.bootstrap
	if h.lastTick > b.Tick {
		b.Tick = h.lastTick
	}
	b.Areas = append([]string(nil), b.Areas...)
	b.Palette = append([]string(nil), b.Palette...)
	return b
}

// Publish encodes msg once per distinct team filter and offers it to every
// session due this tick.
func (h *Hub) Publish(msg observerproto.TickMsg) {
	msg.Type = observerproto.TypeTick
	msg.ProtocolVersion = observerproto.Version

	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastTick = msg.Tick
	if len(h.subs) == 0 {
		return
	}
	var all []byte
	for id, s := range h.subs {
		if s.every > 1 && msg.Tick%uint64(s.every) != 0 {
			continue
		}
		var b []byte
		if len(s.teams) == 0 {
			if all == nil {
				raw, err := json.Marshal(msg)
				if err != nil {
					h.log.Error().Err(err).Msg("encode tick")
					return
				}
				all = raw
			}
			b = all
		} else {
			raw, err := json.Marshal(msg.Filter(s.teams))
			if err != nil {
				continue
			}
			b = raw
		}
		select {
		case s.out <- b:
		default:
			h.dropped++
			h.log.Debug().Str("session", id).Uint64("tick", msg.Tick).Msg("observer queue full")
		}
	}
}

// TickMessage summarizes one step of s for observers.
func TickMessage(s *scene.Scene, rep scene.StepReport) observerproto.TickMsg {
	msg := observerproto.TickMsg{
		SceneID:          s.ID(),
		Tick:             rep.Tick,
		BuildRound:       rep.BuildRound,
		FullRecompute:    rep.FullRecompute,
		PartialRecompute: rep.PartialRecompute,
		ChangedNodes:     rep.ChangedNodes,
		PathBacklog:      rep.PathBacklog,
		TotalInvestment:  s.TotalInvestment(),
	}
	vis := s.Visibility()
	for t := 0; t < roster.MaxTeams; t++ {
		st := vis.State(t)
		if st == visibility.NoLayer && rep.CellsCleaned[t] == 0 {
			continue
		}
		msg.Teams = append(msg.Teams, observerproto.TeamState{
			Team:         t,
			Visibility:   st.String(),
			CellsCleaned: rep.CellsCleaned[t],
		})
	}
	for p := 0; p < roster.MaxPlayers; p++ {
		if !s.PlayerActive(p) {
			continue
		}
		msg.Players = append(msg.Players, observerproto.PlayerState{
			Player:      p,
			Team:        s.TeamOfPlayer(p),
			Budget:      s.BuildBudget(p),
			Spent:       rep.Spent[p],
			Placed:      rep.Placed[p],
			AIPlanMoved: rep.AIPlanMoved[p],
			HasBrain:    s.ResidentBrain(p) != nil,
		})
	}
	return msg
}
