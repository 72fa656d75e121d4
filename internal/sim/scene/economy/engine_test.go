package economy

import (
	"testing"

	"github.com/rs/zerolog"

	"scenecraft.ai/internal/sim/catalogs"
	"scenecraft.ai/internal/sim/scene/area"
	"scenecraft.ai/internal/sim/scene/geom"
	"scenecraft.ai/internal/sim/scene/placed"
	"scenecraft.ai/internal/sim/scene/roster"
)

type countingRandom struct{ next int }

func (c *countingRandom) RandomInt(low, high int) int {
	c.next++
	return low + (c.next-1)%(high-low+1)
}

func item(name string, cost float64, player int) *placed.Object {
	return &placed.Object{Kind: placed.KindItem, Preset: name, Class: "Item", GoldValue: cost, PlacedByPlayer: player, Team: 0}
}

func brain(name string, cost float64, player int) *placed.Object {
	return &placed.Object{Kind: placed.KindActor, Preset: name, Class: "Actor", GoldValue: cost, PlacedByPlayer: player, Groups: []string{placed.BrainGroup}}
}

func testCatalogs(t *testing.T) *catalogs.Catalogs {
	t.Helper()
	c, err := catalogs.FromDefs(
		[]catalogs.MaterialDef{{ID: "AIR"}, {ID: "CONCRETE", Integrity: 100}},
		[]catalogs.PresetDef{
			{Name: "Soldier", Class: "AHuman", Kind: catalogs.KindActor, GoldValue: 100},
			{Name: "Brain Unit", Class: "AHuman", Kind: catalogs.KindActor, GoldValue: 300, Groups: []string{placed.BrainGroup}},
			{Name: "Bunker", Class: "TerrainObject", Kind: catalogs.KindTerrainObject, GoldValue: 50,
				Footprint: &catalogs.Footprint{OffsetX: -10, OffsetY: -10, Width: 20, Height: 20, Material: "CONCRETE"}},
		},
		[]catalogs.LoadoutDef{
			{Name: "Squad", Cargo: []string{"Soldier"}},
			{Name: "Infantry Brain", Groups: []string{placed.BrainGroup}, Cargo: []string{"Brain Unit"}},
		},
	)
	if err != nil {
		t.Fatalf("FromDefs: %v", err)
	}
	return c
}

func newTestEngine(t *testing.T, opts Options) (*Engine, *Books, *area.Registry) {
	t.Helper()
	areas := area.NewRegistry(geom.Bounds{Width: 1000, Height: 500, WrapX: true}, zerolog.Nop())
	e := NewEngine(placed.Pricer{Templates: testCatalogs(t)}, &countingRandom{}, areas, zerolog.Nop(), opts)
	b := NewBooks()
	b.Players[0] = Player{Active: true, Team: 0}
	b.Players[1] = Player{Active: true, Team: 0}
	b.Players[2] = Player{Active: true, Team: 1}
	return e, b, areas
}

func TestApplyFundsSelfBeforeTeammates(t *testing.T) {
	e, b, _ := newTestEngine(t, Options{})
	b.Players[0].Budget = 1000
	b.Blueprint.Add(item("A", 400, 0))
	b.Blueprint.Add(item("C", 400, 1))
	b.Blueprint.Add(item("B", 400, 0))

	spent, n := e.Apply(b, 0)
	if spent != 800 || n != 2 {
		t.Fatalf("spent=%v placed=%d, want 800/2", spent, n)
	}
	if b.Players[0].Budget != 200 {
		t.Fatalf("budget=%v, want 200", b.Players[0].Budget)
	}
	if b.Blueprint.Len() != 1 || b.Blueprint.At(0).Preset != "C" {
		t.Fatalf("blueprint should hold only C")
	}
	if b.OnLoad.Len() != 2 || b.TotalInvestment != 800 {
		t.Fatalf("onload=%d investment=%v", b.OnLoad.Len(), b.TotalInvestment)
	}
}

func TestApplyFundsMaximalPrefix(t *testing.T) {
	e, b, _ := newTestEngine(t, Options{})
	b.Players[0].Budget = 700
	for i, c := range []float64{300, 300, 500, 100} {
		b.Blueprint.Add(item(string(rune('a'+i)), c, 0))
	}
	spent, n := e.Apply(b, 0)
	if spent != 600 || n != 2 || b.Players[0].Budget != 100 {
		t.Fatalf("spent=%v placed=%d budget=%v", spent, n, b.Players[0].Budget)
	}
	if b.Blueprint.Len() != 2 {
		t.Fatalf("cheap item after the halt must stay queued, len=%d", b.Blueprint.Len())
	}
}

func TestHaltEndsOnlyCurrentPass(t *testing.T) {
	e, b, _ := newTestEngine(t, Options{})
	b.Players[0].Budget = 500
	b.Blueprint.Add(item("big", 900, 0))
	b.Blueprint.Add(item("mate", 200, 1))
	b.Blueprint.Add(item("enemy", 10, 2))

	spent, n := e.Apply(b, 0)
	if spent != 200 || n != 1 {
		t.Fatalf("spent=%v placed=%d, want teammate item funded", spent, n)
	}
	if b.Blueprint.Len() != 2 {
		t.Fatalf("other team's item must not be funded")
	}
}

func TestPreviewDoesNotMutate(t *testing.T) {
	e, b, _ := newTestEngine(t, Options{})
	b.Players[0].Budget = 1000
	b.Blueprint.Add(item("A", 400, 0))
	b.AIPlan.Add(item("X", 300, -1))

	q := e.Preview(b, 0, true)
	if q.Count != 1 || q.AIPlanCount != 1 || q.Cost != 700 {
		t.Fatalf("quote=%+v", q)
	}
	if b.Players[0].Budget != 1000 || b.Blueprint.Len() != 1 || b.AIPlan.Len() != 1 || b.OnLoad.Len() != 0 {
		t.Fatalf("preview mutated state")
	}
}

func TestDeploymentStaysQueued(t *testing.T) {
	e, b, _ := newTestEngine(t, Options{})
	b.Players[0].Budget = 1000
	d, err := placed.NewDeployment(e.pricer.Templates, "Squad", geom.V(100, 100), 30, 60)
	if err != nil {
		t.Fatalf("NewDeployment: %v", err)
	}
	d.PlacedByPlayer = 0
	b.Blueprint.Add(d)

	spent, n := e.Apply(b, 0)
	if spent != 100 || n != 1 {
		t.Fatalf("first apply spent=%v placed=%d", spent, n)
	}
	id := d.Deployment.ID
	if id == 0 || b.Blueprint.Len() != 1 {
		t.Fatalf("deployment should stay queued with an ID, id=%d", id)
	}
	spawned := b.OnLoad.At(0)
	if spawned.DeploymentID != id || spawned.Team != 0 {
		t.Fatalf("spawn not tagged: %+v", spawned)
	}

	// Spawned units leave for the world between rounds.
	b.OnLoad.TakeAll()
	spent, n = e.Apply(b, 0)
	if spent != 100 || n != 1 || b.Blueprint.Len() != 1 || d.Deployment.ID != id {
		t.Fatalf("second apply spent=%v placed=%d", spent, n)
	}

	// With the spawn still standing there the deployment is blocked.
	spent, n = e.Apply(b, 0)
	if spent != 0 || n != 0 {
		t.Fatalf("blocked deployment spent=%v placed=%d", spent, n)
	}
}

func TestSiblingDeploymentsBlockEachOther(t *testing.T) {
	e, b, _ := newTestEngine(t, Options{})
	b.Players[0].Budget = 1000
	for _, x := range []float64{100, 110} {
		d, _ := placed.NewDeployment(e.pricer.Templates, "Squad", geom.V(x, 100), 30, 60)
		d.PlacedByPlayer = 0
		b.Blueprint.Add(d)
	}
	if q := e.Preview(b, 0, false); q.Count != 1 || q.Cost != 100 {
		t.Fatalf("preview quote=%+v", q)
	}
	if spent, n := e.Apply(b, 0); spent != 100 || n != 1 {
		t.Fatalf("spent=%v placed=%d", spent, n)
	}
	for _, o := range b.Blueprint.Items() {
		if o.Deployment.ID == 0 {
			t.Fatalf("every surviving deployment needs an ID")
		}
	}
}

func TestBrainReplacementChargesDelta(t *testing.T) {
	e, b, _ := newTestEngine(t, Options{})
	b.Players[0].Budget = 1000
	b.Players[0].Brain = brain("old", 300, 0)
	b.Blueprint.Add(brain("new", 500, 0))

	spent, n := e.Apply(b, 0)
	if spent != 200 || n != 0 {
		t.Fatalf("spent=%v placed=%d, want delta 200 and no new count", spent, n)
	}
	if b.Players[0].Budget != 800 || b.Players[0].Brain.Preset != "new" {
		t.Fatalf("budget=%v brain=%s", b.Players[0].Budget, b.Players[0].Brain.Preset)
	}
	if b.OnLoad.Len() != 0 || b.Blueprint.Len() != 0 {
		t.Fatalf("brains stay resident, not in OnLoad")
	}

	b.Players[1].Budget = 1000
	b.Blueprint.Add(brain("fresh", 400, 1))
	if spent, n := e.Apply(b, 1); spent != 400 || n != 1 {
		t.Fatalf("fresh brain spent=%v placed=%d", spent, n)
	}
}

func TestApplyAIPlanMovesAffordablePrefix(t *testing.T) {
	e, b, _ := newTestEngine(t, Options{})
	b.Players[0].Budget = 1000
	b.Blueprint.Add(item("A", 400, 0))
	for _, n := range []string{"X", "Y", "Z"} {
		b.AIPlan.Add(item(n, 300, -1))
	}
	value, n := e.ApplyAIPlan(b, 0)
	if value != 600 || n != 2 {
		t.Fatalf("value=%v moved=%d", value, n)
	}
	if b.AIPlan.Len() != 1 || b.AIPlan.At(0).Preset != "Z" || b.Blueprint.Len() != 3 {
		t.Fatalf("queues after move: ai=%d blueprint=%d", b.AIPlan.Len(), b.Blueprint.Len())
	}
	if b.Blueprint.At(2).PlacedByPlayer != 0 || b.Players[0].Budget != 1000 {
		t.Fatalf("moved items must be tagged and nothing spent")
	}
}

func TestOutOfRangePlayerIsNoop(t *testing.T) {
	e, b, _ := newTestEngine(t, Options{})
	if spent, n := e.Apply(b, 9); spent != 0 || n != 0 {
		t.Fatalf("Apply(9)=%v,%d", spent, n)
	}
	if v, n := e.ApplyAIPlan(b, -3); v != 0 || n != 0 {
		t.Fatalf("ApplyAIPlan(-3)=%v,%d", v, n)
	}
	if q := e.Preview(b, 4, true); q != (Quote{}) {
		t.Fatalf("Preview(4)=%+v", q)
	}
}

func TestTerrainObjectRegistersMetaBase(t *testing.T) {
	var hookTeam = -1
	var hookBox geom.Box
	e, b, areas := newTestEngine(t, Options{OnFootprint: func(team int, box geom.Box) {
		hookTeam, hookBox = team, box
	}})
	areas.Upsert(area.New(area.MetaBase))
	b.Players[2].Budget = 100
	bunker, err := placed.FromPreset(e.pricer.Templates, "Bunker", geom.V(200, 200))
	if err != nil {
		t.Fatalf("FromPreset: %v", err)
	}
	bunker.PlacedByPlayer = 2
	b.Blueprint.Add(bunker)

	if spent, n := e.Apply(b, 2); spent != 50 || n != 1 {
		t.Fatalf("spent=%v placed=%d", spent, n)
	}
	want := geom.NewBox(190, 190, 20, 20)
	if hookTeam != 1 || hookBox != want {
		t.Fatalf("hook team=%d box=%+v", hookTeam, hookBox)
	}
	if !areas.PointInside(area.MetaBase, geom.V(200, 200)) {
		t.Fatalf("MetaBase should contain the footprint")
	}
}

func TestBrainMovesToLastHideout(t *testing.T) {
	e, b, _ := newTestEngine(t, Options{})
	b.Players[0].Brain = brain("core", 100, 0)
	// "Brain Hideout" has no loadout here, so the markers spawn nothing.
	hideouts := []struct {
		pos    geom.Vec
		player int
	}{{geom.V(10, 10), 0}, {geom.V(50, 60), 1}}
	for _, h := range hideouts {
		b.Blueprint.Add(&placed.Object{
			Kind: placed.KindDeployment, Preset: "Brain Hideout", Pos: h.pos, Team: roster.NoTeam,
			PlacedByPlayer: h.player, Deployment: &placed.Deployment{},
		})
	}

	if spent, _ := e.Apply(b, 0); spent != 0 {
		t.Fatalf("empty hideouts cost nothing, spent=%v", spent)
	}
	if got := b.Players[0].Brain.Pos; got != geom.V(50, 60) {
		t.Fatalf("brain at %+v, want (50,60)", got)
	}
	if b.Blueprint.Len() != 2 || b.Blueprint.At(0).Deployment.ID == 0 {
		t.Fatalf("hideouts stay queued with IDs")
	}
	if b.Blueprint.At(1).Team != 0 {
		t.Fatalf("teammate hideout should carry the funding team, got %d", b.Blueprint.At(1).Team)
	}
}

func TestInfantryBrainDeploymentIsFunded(t *testing.T) {
	e, b, _ := newTestEngine(t, Options{})
	b.Players[0].Budget = 1000
	d, err := placed.NewDeployment(e.pricer.Templates, "Infantry Brain", geom.V(300, 120), 30, 60)
	if err != nil {
		t.Fatalf("NewDeployment: %v", err)
	}
	d.PlacedByPlayer = 0
	b.Blueprint.Add(d)

	spent, n := e.Apply(b, 0)
	if spent != 300 || n != 1 {
		t.Fatalf("spent=%v placed=%d, want 300/1", spent, n)
	}
	br := b.Players[0].Brain
	if br == nil || br.Preset != "Brain Unit" {
		t.Fatalf("brain=%+v, want Brain Unit", br)
	}
	if br.Pos != d.Pos || br.DeploymentID != d.Deployment.ID || d.Deployment.ID == 0 {
		t.Fatalf("brain pos=%+v id=%d, deployment id=%d", br.Pos, br.DeploymentID, d.Deployment.ID)
	}
	if b.Players[0].Budget != 700 || b.Blueprint.Len() != 1 || b.OnLoad.Len() != 0 {
		t.Fatalf("budget=%v blueprint=%d onload=%d", b.Players[0].Budget, b.Blueprint.Len(), b.OnLoad.Len())
	}
}

func TestTeammateFundedItemTakesFunderOwnership(t *testing.T) {
	e, b, _ := newTestEngine(t, Options{})
	b.Players[1].Budget = 500
	mine := item("mine", 100, 1)
	mine.Team = roster.NoTeam
	shared := item("shared", 200, 0)
	shared.Team = roster.NoTeam
	b.Blueprint.Add(shared)
	b.Blueprint.Add(mine)

	if spent, n := e.Apply(b, 1); spent != 300 || n != 2 {
		t.Fatalf("spent=%v placed=%d", spent, n)
	}
	if b.OnLoad.At(0) != mine || b.OnLoad.At(1) != shared {
		t.Fatalf("own item must be funded before the teammate's")
	}
	for _, o := range b.OnLoad.Items() {
		if o.PlacedByPlayer != 1 || o.Team != 0 {
			t.Fatalf("%s placed by %d team %d, want 1/0", o.Preset, o.PlacedByPlayer, o.Team)
		}
	}
}
