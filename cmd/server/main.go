package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"scenecraft.ai/internal/config"
	"scenecraft.ai/internal/logging"
	"scenecraft.ai/internal/observerproto"
	"scenecraft.ai/internal/persistence/indexdb"
	persistlog "scenecraft.ai/internal/persistence/log"
	"scenecraft.ai/internal/persistence/snapshot"
	"scenecraft.ai/internal/sim/catalogs"
	"scenecraft.ai/internal/sim/scene"
	"scenecraft.ai/internal/sim/scene/simrand"
	"scenecraft.ai/internal/sim/scenedef"
	"scenecraft.ai/internal/sim/tuning"
	"scenecraft.ai/internal/sim/world"
	"scenecraft.ai/internal/transport/observer"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to scenecraft.yaml (default: none, defaults + SCENECRAFT_* env)")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configsDir>/tuning.yaml)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Pretty, os.Stdout)
	if err := run(cfg, *tuningPath, logger); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}

func run(cfg config.Config, tuningPath string, logger zerolog.Logger) error {
	cats, err := catalogs.Load(cfg.ConfigsDir)
	if err != nil {
		return fmt.Errorf("load catalogs: %w", err)
	}
	if tuningPath == "" {
		tuningPath = filepath.Join(cfg.ConfigsDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tuningPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load tuning: %w", err)
		}
		logger.Warn().Str("path", tuningPath).Msg("tuning not found; using defaults")
		tune = tuning.Defaults()
	}

	units := world.NewUnits()
	env := scenedef.Env{
		Cats:   cats,
		Tuning: tune,
		World:  units,
		Log:    logger,
	}
	s, resumed, err := openScene(cfg, env)
	if err != nil {
		return err
	}
	defer s.Close()
	sceneDir := filepath.Join(cfg.DataDir, "scenes", s.ID())
	if err := os.MkdirAll(sceneDir, 0o755); err != nil {
		return err
	}

	// Optional read-model index; it never feeds back into the scene.
	var idx *indexdb.SQLiteIndex
	if cfg.Index.Enabled {
		path := cfg.Index.Path
		if path == "" {
			path = filepath.Join(sceneDir, "index.db")
		}
		idx, err = indexdb.OpenSQLite(path)
		if err != nil {
			return fmt.Errorf("open index: %w", err)
		}
		defer idx.Close()
		if err := idx.UpsertCatalogs(cats, tune); err != nil {
			logger.Warn().Err(err).Msg("index: upsert catalogs")
		}
	}

	w, err := world.New(world.ConfigFromTuning(tune, cfg.TickLog.Every), s, units, logger)
	if err != nil {
		return err
	}
	if cfg.TickLog.Enabled {
		tickLog := persistlog.NewTickLogger(sceneDir)
		auditLog := persistlog.NewAuditLogger(sceneDir)
		defer tickLog.Close()
		defer auditLog.Close()
		w.SetTickLogger(multiTickLogger{a: tickLog, b: idx})
		w.SetAuditLogger(multiAuditLogger{a: auditLog, b: idx})
	} else if idx != nil {
		w.SetTickLogger(idx)
		w.SetAuditLogger(multiAuditLogger{b: idx})
	}
	if idx != nil {
		w.SetRecomputeRecorder(idx)
	}

	var hub *observer.Hub
	if cfg.Observer.Enabled {
		hub = observer.NewHub(logger)
		hub.SetBootstrap(bootstrapFor(s, tune, cats))
		w.SetTickObserver(func(s *scene.Scene, rep scene.StepReport) {
			hub.Publish(observer.TickMessage(s, rep))
		})
	}

	ctx, cancel := signalContext()
	defer cancel()

	snaps := newSnapshotWriter(sceneDir, idx, logger)
	snapCh := make(chan snapshot.SceneV1, 2)
	w.SetSnapshotSink(snapCh)
	snapDone := make(chan struct{})
	go func() {
		defer close(snapDone)
		for {
			select {
			case <-ctx.Done():
				return
			case snap := <-snapCh:
				snaps.write(snap)
			}
		}
	}()

	runDone := make(chan error, 1)
	go func() { runDone <- w.Run(ctx) }()

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           newMux(w, hub, idx),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Info().
		Str("listen", cfg.Listen).
		Str("scene", s.ID()).
		Str("session", s.Session()).
		Bool("resumed", resumed).
		Uint64("tick", s.Tick()).
		Msg("serving")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		cancel()
		return fmt.Errorf("listen: %w", err)
	}

	if err := <-runDone; err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("world stopped")
	}
	<-snapDone
	// The loop has stopped; the scene is ours again.
	snaps.write(s.ExportSnapshot())
	return nil
}

// openScene resumes from cfg.Resume ("latest" picks the newest snapshot of
// the configured scene) or builds cfg.Scene fresh.
func openScene(cfg config.Config, env scenedef.Env) (*scene.Scene, bool, error) {
	resume := cfg.Resume
	var def scenedef.Def
	if resume == "" || resume == "latest" {
		d, err := scenedef.Load(cfg.Scene)
		if err != nil {
			return nil, false, err
		}
		def = d
		if resume == "latest" {
			resume = latestSnapshot(filepath.Join(cfg.DataDir, "scenes", def.ID))
		}
	}

	if resume != "" {
		snap, err := snapshot.ReadSnapshot(resume)
		if err != nil {
			return nil, false, fmt.Errorf("read snapshot: %w", err)
		}
		if def.ID != "" && snap.Header.SceneID != def.ID {
			return nil, false, fmt.Errorf("snapshot scene id mismatch: def=%s snap=%s", def.ID, snap.Header.SceneID)
		}
		env.Random = simrand.New(snap.Seed ^ snap.Header.Tick)
		s, _, err := scenedef.Restore(snap, env)
		if err != nil {
			return nil, false, err
		}
		if err := s.Load(scene.LoadOptions{InitPathfinding: true}); err != nil {
			_ = s.Close()
			return nil, false, err
		}
		env.Log.Info().Str("snapshot", filepath.Base(resume)).Uint64("tick", s.Tick()).Msg("resumed from snapshot")
		return s, true, nil
	}

	env.Random = simrand.New(def.Seed)
	s, _, err := scenedef.Build(def, env)
	if err != nil {
		return nil, false, err
	}
	if err := s.Load(scene.LoadOptions{PlaceObjects: true, PlaceUnits: true, InitPathfinding: true}); err != nil {
		_ = s.Close()
		return nil, false, err
	}
	if n := s.PlaceResidentBrains(); n > 0 {
		env.Log.Info().Int("brains", n).Msg("resident brains placed")
	}
	return s, false, nil
}

func bootstrapFor(s *scene.Scene, tune tuning.Tuning, cats *catalogs.Catalogs) observerproto.BootstrapResponse {
	b := s.Bounds()
	return observerproto.BootstrapResponse{
		SceneID: s.ID(),
		Session: s.Session(),
		Tick:    s.Tick(),
		SceneParams: observerproto.SceneParams{
			Name:       s.Name(),
			TickRateHz: tune.TickRateHz,
			Width:      int(b.Width),
			Height:     int(b.Height),
			WrapX:      b.WrapX,
			WrapY:      b.WrapY,
			Seed:       s.Seed(),
			NodeSize:   tune.Pathing.NodeSize,
		},
		Areas:   s.Areas().Names(),
		Palette: append([]string(nil), cats.Materials.Palette...),
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
