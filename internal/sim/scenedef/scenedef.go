// Package scenedef reads scene definition files and builds scenes from
// them. Files are validated against an embedded JSON schema first.
package scenedef

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"scenecraft.ai/internal/sim/scene/roster"
)

//go:embed scene.schema.json
var schemaJSON string

var compiled = sync.OnceValues(func() (*jsonschema.Schema, error) {
	return jsonschema.CompileString("scene.schema.json", schemaJSON)
})

// Deployment radii used when a definition leaves them out.
const (
	DefaultSpawnRadius = 40
	DefaultWalkRadius  = 250
)

type Def struct {
	ID      string      `json:"id"`
	Name    string      `json:"name,omitempty"`
	Seed    uint64      `json:"seed,omitempty"`
	Terrain TerrainDef  `json:"terrain"`
	Teams   []TeamDef   `json:"teams,omitempty"`
	Players []PlayerDef `json:"players,omitempty"`
	Areas   []AreaDef   `json:"areas,omitempty"`
	Objects []ObjectDef `json:"objects,omitempty"`
}

type BoxDef struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

type RectDef struct {
	Box      BoxDef `json:"box"`
	Material string `json:"material"`
}

type SprinkleDef struct {
	Material string `json:"material"`
	Permille int    `json:"permille"`
}

type TerrainDef struct {
	Width     int           `json:"width"`
	Height    int           `json:"height"`
	WrapX     bool          `json:"wrap_x,omitempty"`
	WrapY     bool          `json:"wrap_y,omitempty"`
	Fill      string        `json:"fill,omitempty"`
	Seed      int64         `json:"seed,omitempty"`
	Sprinkles []SprinkleDef `json:"sprinkles,omitempty"`
	Rects     []RectDef     `json:"rects,omitempty"`
}

type TeamDef struct {
	Team           int  `json:"team"`
	UnseenCellSize *int `json:"unseen_cell_size,omitempty"`
}

type TechDef struct {
	NativeModule    string  `json:"native_module,omitempty"`
	NativeCostMult  float64 `json:"native_cost_mult,omitempty"`
	ForeignCostMult float64 `json:"foreign_cost_mult,omitempty"`
}

// PlayerDef sets up one build slot. Brain names the resident brain preset.
type PlayerDef struct {
	Player int     `json:"player"`
	Team   int     `json:"team"`
	Budget float64 `json:"budget,omitempty"`
	Ratio  float64 `json:"ratio,omitempty"`
	Brain  string  `json:"brain,omitempty"`
	Tech   TechDef `json:"tech"`
}

type AreaDef struct {
	Name  string   `json:"name"`
	Boxes []BoxDef `json:"boxes,omitempty"`
}

// ObjectDef places either a preset or, with Loadout set, a deployment.
type ObjectDef struct {
	Set         string   `json:"set"`
	Preset      string   `json:"preset,omitempty"`
	Loadout     string   `json:"loadout,omitempty"`
	X           float64  `json:"x"`
	Y           float64  `json:"y"`
	Team        *int     `json:"team,omitempty"`
	Player      *int     `json:"player,omitempty"`
	HFlipped    bool     `json:"hflipped,omitempty"`
	Rotation    float64  `json:"rotation,omitempty"`
	SpawnRadius *float64 `json:"spawn_radius,omitempty"`
	WalkRadius  *float64 `json:"walk_radius,omitempty"`
}

func (o ObjectDef) team() int {
	if o.Team == nil {
		return roster.NoTeam
	}
	return *o.Team
}

func (o ObjectDef) player() int {
	if o.Player == nil {
		return roster.NoPlayer
	}
	return *o.Player
}

// Load reads, validates and decodes a definition file.
func Load(path string) (Def, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Def{}, err
	}
	return Parse(raw)
}

// Parse validates raw against the schema and decodes it.
func Parse(raw []byte) (Def, error) {
	var def Def
	schema, err := compiled()
	if err != nil {
		return def, fmt.Errorf("scene schema: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return def, fmt.Errorf("scene definition: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return def, fmt.Errorf("scene definition: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&def); err != nil {
		return def, fmt.Errorf("scene definition: %w", err)
	}
	seen := map[int]bool{}
	for _, p := range def.Players {
		if seen[p.Player] {
			return def, fmt.Errorf("scene definition: player %d listed twice", p.Player)
		}
		seen[p.Player] = true
	}
	return def, nil
}
