// Package snapshot persists scenes as a JSON header line followed by a gob
// body, all inside one zstd stream.
package snapshot

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

type Header struct {
	Version int    `json:"version"`
	SceneID string `json:"scene_id"`
	Session string `json:"session"`
	Tick    uint64 `json:"tick"`
}

type SceneV1 struct {
	Header Header `json:"header"`

	Name string `json:"name"`
	Seed uint64 `json:"seed"`

	Terrain    TerrainV1      `json:"terrain"`
	Players    []PlayerV1     `json:"players"`
	Areas      []AreaV1       `json:"areas"`
	Visibility []VisibilityV1 `json:"visibility"`

	OnLoad      []ObjectV1 `json:"on_load"`
	Blueprint   []ObjectV1 `json:"blueprint"`
	AIPlan      []ObjectV1 `json:"ai_plan"`
	Deployments []ObjectV1 `json:"deployments,omitempty"`

	TotalInvestment float64 `json:"total_investment"`
}

type TerrainV1 struct {
	Width   int      `json:"width"`
	Height  int      `json:"height"`
	WrapX   bool     `json:"wrap_x"`
	WrapY   bool     `json:"wrap_y"`
	Palette []string `json:"palette"`
	// Cells is the run-length encoded palette raster, row-major.
	Cells string `json:"cells"`
}

type TechV1 struct {
	NativeModule    string  `json:"native_module,omitempty"`
	NativeCostMult  float64 `json:"native_cost_mult,omitempty"`
	ForeignCostMult float64 `json:"foreign_cost_mult,omitempty"`
}

type PlayerV1 struct {
	Active bool      `json:"active"`
	Team   int       `json:"team"`
	Budget float64   `json:"budget"`
	Ratio  float64   `json:"ratio"`
	Tech   TechV1    `json:"tech"`
	Brain  *ObjectV1 `json:"brain,omitempty"`
}

type BoxV1 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

type AreaV1 struct {
	Name  string  `json:"name"`
	Boxes []BoxV1 `json:"boxes"`
}

type VisibilityV1 struct {
	Team          int  `json:"team"`
	CellSize      int  `json:"cell_size"`
	Width         int  `json:"width,omitempty"`
	Height        int  `json:"height,omitempty"`
	ScanScheduled bool `json:"scan_scheduled,omitempty"`
	// Unseen is the run-length encoded cell bitmap; empty for a layer
	// that was still pending.
	Unseen string `json:"unseen,omitempty"`
}

type FootprintV1 struct {
	OffsetX  float64 `json:"offset_x"`
	OffsetY  float64 `json:"offset_y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Material string  `json:"material"`
}

type DeploymentV1 struct {
	ID          uint32  `json:"id"`
	SpawnRadius float64 `json:"spawn_radius"`
	WalkRadius  float64 `json:"walk_radius"`
}

type ObjectV1 struct {
	Kind           string        `json:"kind"`
	Preset         string        `json:"preset"`
	Class          string        `json:"class,omitempty"`
	Module         string        `json:"module,omitempty"`
	Groups         []string      `json:"groups,omitempty"`
	X              float64       `json:"x"`
	Y              float64       `json:"y"`
	Team           int           `json:"team"`
	PlacedByPlayer int           `json:"placed_by_player"`
	HFlipped       bool          `json:"hflipped,omitempty"`
	Rotation       float64       `json:"rotation,omitempty"`
	Health         float64       `json:"health,omitempty"`
	GoldValue      float64       `json:"gold_value,omitempty"`
	Door           bool          `json:"door,omitempty"`
	Inventory      []ObjectV1    `json:"inventory,omitempty"`
	DeploymentID   uint32        `json:"deployment_id,omitempty"`
	Footprint      *FootprintV1  `json:"footprint,omitempty"`
	Deployment     *DeploymentV1 `json:"deployment,omitempty"`
}

func WriteSnapshot(path string, snap SceneV1) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	snap.Header.Version = Version
	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// ReadHeader decodes only the leading header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()
	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}

func ReadSnapshot(path string) (SceneV1, error) {
	var snap SceneV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)
	// The gob body repeats the header.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("snapshot: unsupported version %d", snap.Header.Version)
	}
	return snap, nil
}

// Digest is a hex sha256 over the gob encoding of snap with the session ID
// left out, so two runs of the same inputs agree and a snapshot read back
// from disk hashes like the one that was written.
func Digest(snap SceneV1) string {
	snap.Header.Session = ""
	snap.Header.Version = Version
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&snap); err != nil {
		return ""
	}
	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:])
}
