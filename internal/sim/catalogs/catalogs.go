package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

type Catalogs struct {
	Materials MaterialCatalog
	Presets   PresetCatalog
	Loadouts  LoadoutCatalog
}

type MaterialCatalog struct {
	Palette       []string
	Index         map[string]uint16
	Defs          map[string]MaterialDef
	PaletteDigest string
	DefsDigest    string
}

type MaterialDef struct {
	ID        string  `json:"id"`
	Integrity float64 `json:"integrity"`
	Door      bool    `json:"door,omitempty"`
}

type PresetCatalog struct {
	ByName map[string]PresetDef
	Digest string
}

// Preset kinds.
const (
	KindActor         = "actor"
	KindItem          = "item"
	KindParticle      = "particle"
	KindTerrainObject = "terrain_object"
)

type PresetDef struct {
	Name      string     `json:"name"`
	Class     string     `json:"class"`
	Kind      string     `json:"kind"`
	Module    string     `json:"module,omitempty"`
	Groups    []string   `json:"groups,omitempty"`
	GoldValue float64    `json:"gold_value"`
	Health    float64    `json:"health,omitempty"`
	Door      bool       `json:"door,omitempty"`
	Inventory []string   `json:"inventory,omitempty"`
	Footprint *Footprint `json:"footprint,omitempty"`
}

// Footprint is a terrain object's stamped rectangle relative to its
// position.
type Footprint struct {
	OffsetX  float64 `json:"offset_x"`
	OffsetY  float64 `json:"offset_y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Material string  `json:"material"`
}

type LoadoutCatalog struct {
	ByName map[string]LoadoutDef
	Digest string
}

type LoadoutDef struct {
	Name          string   `json:"name"`
	Groups        []string `json:"groups,omitempty"`
	DeliveryCraft string   `json:"delivery_craft,omitempty"`
	Cargo         []string `json:"cargo"`
}

func Load(configDir string) (*Catalogs, error) {
	var mats []MaterialDef
	var presets []PresetDef
	var loadouts []LoadoutDef

	matRaw, err := readJSON(filepath.Join(configDir, "materials.json"), &mats)
	if err != nil {
		return nil, err
	}
	presetRaw, err := readJSON(filepath.Join(configDir, "presets.json"), &presets)
	if err != nil {
		return nil, err
	}
	loadoutRaw, err := readJSON(filepath.Join(configDir, "loadouts.json"), &loadouts)
	if err != nil {
		return nil, err
	}

	c, err := FromDefs(mats, presets, loadouts)
	if err != nil {
		return nil, err
	}
	c.Materials.DefsDigest = sha256Hex(matRaw)
	c.Presets.Digest = sha256Hex(presetRaw)
	c.Loadouts.Digest = sha256Hex(loadoutRaw)
	return c, nil
}

// FromDefs builds catalogs from already decoded definitions. Digests are
// taken over the canonical JSON of the definitions.
func FromDefs(mats []MaterialDef, presets []PresetDef, loadouts []LoadoutDef) (*Catalogs, error) {
	var c Catalogs
	if err := buildMaterials(mats, &c.Materials); err != nil {
		return nil, err
	}
	if err := buildPresets(presets, &c.Presets); err != nil {
		return nil, err
	}
	if err := buildLoadouts(loadouts, &c.Loadouts, c.Presets); err != nil {
		return nil, err
	}
	for _, p := range c.Presets.ByName {
		if p.Footprint == nil {
			continue
		}
		if _, ok := c.Materials.Defs[p.Footprint.Material]; !ok {
			return nil, fmt.Errorf("presets.json: %s: unknown footprint material %q", p.Name, p.Footprint.Material)
		}
	}
	return &c, nil
}

func readJSON(path string, v any) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return raw, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func buildMaterials(defs []MaterialDef, out *MaterialCatalog) error {
	out.Defs = map[string]MaterialDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("materials.json: empty id")
		}
		if d.Integrity < 0 {
			return fmt.Errorf("materials.json: %s: negative integrity", d.ID)
		}
		out.Defs[d.ID] = d
	}

	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	// Ensure AIR exists and is palette id 0.
	if _, ok := out.Defs["AIR"]; !ok {
		return fmt.Errorf("materials.json: missing AIR")
	}
	ids = append([]string{"AIR"}, filterOut(ids, "AIR")...)

	out.Palette = ids
	out.Index = make(map[string]uint16, len(ids))
	for i, id := range ids {
		out.Index[id] = uint16(i)
	}
	palJSON, _ := json.Marshal(ids)
	out.PaletteDigest = sha256Hex(palJSON)
	defsJSON, _ := json.Marshal(defs)
	out.DefsDigest = sha256Hex(defsJSON)
	return nil
}

func buildPresets(defs []PresetDef, out *PresetCatalog) error {
	out.ByName = map[string]PresetDef{}
	for _, p := range defs {
		if p.Name == "" {
			return fmt.Errorf("presets.json: empty name")
		}
		switch p.Kind {
		case KindActor, KindItem, KindParticle:
		case KindTerrainObject:
			if p.Footprint == nil || p.Footprint.Width <= 0 || p.Footprint.Height <= 0 {
				return fmt.Errorf("presets.json: %s: terrain object needs a footprint", p.Name)
			}
		default:
			return fmt.Errorf("presets.json: %s: unknown kind %q", p.Name, p.Kind)
		}
		if _, dup := out.ByName[p.Name]; dup {
			return fmt.Errorf("presets.json: duplicate %s", p.Name)
		}
		out.ByName[p.Name] = p
	}
	for _, p := range out.ByName {
		for _, inv := range p.Inventory {
			if _, ok := out.ByName[inv]; !ok {
				return fmt.Errorf("presets.json: %s: unknown inventory preset %q", p.Name, inv)
			}
		}
	}
	b, _ := json.Marshal(defs)
	out.Digest = sha256Hex(b)
	return nil
}

func buildLoadouts(defs []LoadoutDef, out *LoadoutCatalog, presets PresetCatalog) error {
	out.ByName = map[string]LoadoutDef{}
	for _, l := range defs {
		if l.Name == "" {
			return fmt.Errorf("loadouts.json: empty name")
		}
		if l.DeliveryCraft != "" {
			if _, ok := presets.ByName[l.DeliveryCraft]; !ok {
				return fmt.Errorf("loadouts.json: %s: unknown craft %q", l.Name, l.DeliveryCraft)
			}
		}
		for _, c := range l.Cargo {
			if _, ok := presets.ByName[c]; !ok {
				return fmt.Errorf("loadouts.json: %s: unknown cargo %q", l.Name, c)
			}
		}
		out.ByName[l.Name] = l
	}
	b, _ := json.Marshal(defs)
	out.Digest = sha256Hex(b)
	return nil
}

func filterOut(xs []string, drop string) []string {
	out := xs[:0]
	for _, x := range xs {
		if x != drop {
			out = append(out, x)
		}
	}
	return out
}

// Preset looks up a preset by name.
func (c *Catalogs) Preset(name string) (PresetDef, bool) {
	p, ok := c.Presets.ByName[name]
	return p, ok
}

// Loadout looks up a loadout by name.
func (c *Catalogs) Loadout(name string) (LoadoutDef, bool) {
	l, ok := c.Loadouts.ByName[name]
	return l, ok
}

// Material looks up a material and its palette index.
func (c *Catalogs) Material(id string) (MaterialDef, uint16, bool) {
	d, ok := c.Materials.Defs[id]
	if !ok {
		return MaterialDef{}, 0, false
	}
	return d, c.Materials.Index[id], true
}
