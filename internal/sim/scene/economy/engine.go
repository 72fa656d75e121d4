package economy

import (
	"slices"

	"github.com/rs/zerolog"

	"scenecraft.ai/internal/sim/scene/area"
	"scenecraft.ai/internal/sim/scene/fault"
	"scenecraft.ai/internal/sim/scene/geom"
	"scenecraft.ai/internal/sim/scene/placed"
	"scenecraft.ai/internal/sim/scene/roster"
	"scenecraft.ai/internal/sim/scene/simrand"
)

// BrainHideout only marks a brain location; it never spawns at load.
const BrainHideout = "Brain Hideout"

// Default marker presets for brain hideouts.
var DefaultHideouts = []string{BrainHideout, "Infantry Brain"}

type Options struct {
	// Hideouts are deployment loadouts that mark where an infantry brain
	// should sit once the round's funding is done.
	Hideouts []string
	// MetaBaseArea receives the footprint of every funded terrain object.
	MetaBaseArea string
	// OnFootprint is called with the owning team and footprint of every
	// funded terrain object.
	OnFootprint func(team int, box geom.Box)
}

type Engine struct {
	log    zerolog.Logger
	pricer placed.Pricer
	rng    simrand.Random
	areas  *area.Registry
	opts   Options
}

func NewEngine(pricer placed.Pricer, rng simrand.Random, areas *area.Registry, log zerolog.Logger, opts Options) *Engine {
	if opts.Hideouts == nil {
		opts.Hideouts = DefaultHideouts
	}
	if opts.MetaBaseArea == "" {
		opts.MetaBaseArea = area.MetaBase
	}
	return &Engine{
		log:    log.With().Str("component", "economy").Logger(),
		pricer: pricer,
		rng:    rng,
		areas:  areas,
		opts:   opts,
	}
}

// Quote is the outcome of a selection run.
type Quote struct {
	Cost        float64
	Count       int
	AIPlanCount int
}

// Preview reports what player's budget could fund right now without
// touching any state. With includeAIPlan the AI-plan queue is evaluated
// after the Blueprint queue against whatever budget is left.
func (e *Engine) Preview(b *Books, player int, includeAIPlan bool) Quote {
	if !roster.ValidPlayer(player) {
		_ = fault.Invariant(e.log, "preview for player %d", player)
		return Quote{}
	}
	r := e.newRun(b, player, false)
	r.queue(&b.Blueprint, false)
	q := Quote{Count: r.count}
	if includeAIPlan {
		r.count = 0
		r.queue(&b.AIPlan, true)
		q.AIPlanCount = r.count
	}
	q.Cost = r.spent
	return q
}

// Apply funds the Blueprint queue for player and returns what was spent
// and how many objects were newly placed.
func (e *Engine) Apply(b *Books, player int) (float64, int) {
	if !roster.ValidPlayer(player) {
		_ = fault.Invariant(e.log, "apply for player %d", player)
		return 0, 0
	}
	r := e.newRun(b, player, true)
	r.queue(&b.Blueprint, false)

	e.relocateBrain(b, player)
	for _, o := range b.Blueprint.Items() {
		if o.IsDeployment() && o.Deployment.ID == 0 {
			o.Deployment.ID = placed.NewID(e.rng, b.DeploymentIDInUse)
		}
	}
	b.TotalInvestment += r.spent
	if r.spent != 0 || r.count != 0 {
		e.log.Debug().Int("player", player).Float64("spent", r.spent).Int("placed", r.count).
			Float64("budget", b.Players[player].Budget).Msg("build budget applied")
	}
	return r.spent, r.count
}

// ApplyAIPlan moves the prefix of the AI plan that player could afford
// after the queued Blueprint into the Blueprint queue. No budget is spent
// here; that happens on the next Apply. It returns the moved value and
// count.
func (e *Engine) ApplyAIPlan(b *Books, player int) (float64, int) {
	if !roster.ValidPlayer(player) {
		_ = fault.Invariant(e.log, "apply AI plan for player %d", player)
		return 0, 0
	}
	n := e.Preview(b, player, true).AIPlanCount
	tech := b.Players[player].Tech
	var value float64
	moved := 0
	for ; moved < n; moved++ {
		o := b.AIPlan.TakeFront()
		if o == nil {
			break
		}
		o.PlacedByPlayer = player
		if o.IsDeployment() {
			o.Deployment.ID = placed.NewID(e.rng, b.DeploymentIDInUse)
		}
		value += e.pricer.TotalValue(o, tech)
		b.Blueprint.Add(o)
	}
	return value, moved
}

func (e *Engine) isHideout(o *placed.Object) bool {
	return o.IsDeployment() && slices.Contains(e.opts.Hideouts, o.Preset)
}

// relocateBrain moves an actor brain to the last hideout in the
// Blueprint queue, whoever queued it.
func (e *Engine) relocateBrain(b *Books, player int) {
	brain := b.Players[player].Brain
	if brain == nil || brain.Kind != placed.KindActor {
		return
	}
	var spot *placed.Object
	for _, o := range b.Blueprint.Items() {
		if e.isHideout(o) {
			spot = o
		}
	}
	if spot != nil {
		brain.Pos = spot.Pos
	}
}

// run is one selection over the queues. Preview and Apply share it so
// they always pick the same items.
type run struct {
	e      *Engine
	b      *Books
	player int
	team   int
	tech   placed.Tech
	apply  bool

	budget    float64
	spent     float64
	count     int
	lastBrain *placed.Object
	// virtual holds spawns picked this run that are not in OnLoad yet.
	virtual []*placed.Object
}

func (e *Engine) newRun(b *Books, player int, apply bool) *run {
	p := b.Players[player]
	return &run{
		e:         e,
		b:         b,
		player:    player,
		team:      p.Team,
		tech:      p.Tech,
		apply:     apply,
		budget:    p.Budget,
		lastBrain: p.Brain,
	}
}

func (r *run) eligible(o *placed.Object, pass int, aiPlan bool) bool {
	if aiPlan {
		// The AI plan is one ordered pass; moving it keeps a front prefix.
		return pass == 0
	}
	if pass == 0 {
		return o.PlacedByPlayer == r.player
	}
	return o.PlacedByPlayer != r.player && r.team != roster.NoTeam && r.b.TeamOf(o.PlacedByPlayer) == r.team
}

func (r *run) queue(set *placed.Set, aiPlan bool) {
	for pass := 0; pass < 2; pass++ {
		consumed := map[*placed.Object]bool{}
		for _, o := range set.Items() {
			if !r.eligible(o, pass, aiPlan) {
				continue
			}
			if !r.candidate(o, consumed) {
				break
			}
		}
		if len(consumed) > 0 {
			set.RemoveIf(func(o *placed.Object) bool { return consumed[o] })
		}
	}
}

// candidate evaluates one queued entry and returns false when the budget
// cannot cover it, which halts the current pass.
func (r *run) candidate(o *placed.Object, consumed map[*placed.Object]bool) bool {
	spawn, cost := o, r.e.pricer.Price(o, r.tech)
	if o.IsDeployment() {
		if r.apply {
			o.SetTeam(r.team)
		}
		if r.e.pricer.Blocked(o, r.team, r.e.areas.Bounds(), r.occupants()) {
			return true
		}
		spawn, cost = r.e.pricer.CreateDeployedActor(o, r.player, r.tech)
		if spawn == nil {
			spawn, cost = r.e.pricer.CreateDeployedObject(o, r.player, r.tech)
		}
		if spawn == nil {
			return true
		}
		spawn.SetTeam(r.team)
	}

	brain := spawn.IsBrain()
	replacing := brain && r.lastBrain != nil
	if replacing {
		cost = r.e.pricer.TotalValue(spawn, r.tech) - r.e.pricer.TotalValue(r.lastBrain, r.tech)
	}
	if r.budget < cost {
		return false
	}
	r.budget -= cost
	r.spent += cost
	if !replacing {
		r.count++
	}
	if brain {
		r.lastBrain = spawn
	} else if !r.apply {
		r.virtual = append(r.virtual, spawn)
	}

	if r.apply {
		r.commit(o, spawn, brain, consumed)
	}
	return true
}

func (r *run) occupants() []*placed.Object {
	out := r.b.OnLoad.Items()
	out = append(out, r.virtual...)
	for i := range r.b.Players {
		if br := r.b.Players[i].Brain; br != nil {
			out = append(out, br)
		}
	}
	if r.lastBrain != nil && r.lastBrain != r.b.Players[r.player].Brain {
		out = append(out, r.lastBrain)
	}
	return out
}

func (r *run) commit(o, spawn *placed.Object, brain bool, consumed map[*placed.Object]bool) {
	p := &r.b.Players[r.player]
	p.Budget = r.budget
	spawn.SetTeam(r.team)
	spawn.PlacedByPlayer = r.player

	if o.IsDeployment() {
		if o.Deployment.ID == 0 {
			o.Deployment.ID = placed.NewID(r.e.rng, r.b.DeploymentIDInUse)
		}
		if spawn.Kind == placed.KindActor {
			spawn.DeploymentID = o.Deployment.ID
		}
	} else {
		consumed[o] = true
	}

	if brain {
		p.Brain = spawn
		return
	}
	r.b.OnLoad.Add(spawn)

	if box, ok := spawn.FootprintBox(); ok && spawn.Kind == placed.KindTerrainObject {
		if meta, err := r.e.areas.Get(r.e.opts.MetaBaseArea); err == nil {
			meta.AddBox(box)
		}
		if r.e.opts.OnFootprint != nil {
			r.e.opts.OnFootprint(r.team, box)
		}
	}
}
