package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"vitalsense/internal/domain/capture"
	"vitalsense/internal/domain/eventbus"
	"vitalsense/internal/domain/measure"
	"vitalsense/internal/domain/session"
	platformconfig "vitalsense/internal/platform/config"
	platformerrors "vitalsense/internal/platform/errors"
	platformlogging "vitalsense/internal/platform/logging"
	platformstorage "vitalsense/internal/platform/storage"
)

const logTag = "BOOT"

// Options selects the capture sources for a run. Empty paths fall back
// to the built-in synthetic demo sources.
type Options struct {
	ConfigPath string
	FramesDir  string // directory of prerecorded frames
	AudioPath  string // prerecorded mp3 file
}

type stepFn func(context.Context, *appState) error

type initStep struct {
	ID        string
	Title     string
	DependsOn []string
	Kind      platformerrors.Kind
	Execute   stepFn
}

type appState struct {
	opts       Options
	config     *platformconfig.Config
	configPath string
	logger     *platformlogging.Logger
	db         *gorm.DB
	repo       *platformstorage.MeasurementRepository
	frames     capture.FrameSource
	audio      capture.AudioSource
	orch       *session.Orchestrator
}

// Run loads configuration, wires the pipeline, drives one measurement
// session to completion, and prints the summary. A SIGINT/SIGTERM
// cancels the session and releases the capture hardware before exit.
func Run(ctx context.Context, opts Options) error {
	state := &appState{opts: opts}

	if err := executeInitSteps(ctx, InitGraph(), state); err != nil {
		return err
	}
	logger := state.logger
	defer logger.Close()
	defer eventbus.Shutdown()

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(signalCtx)

	cb := session.Callbacks{
		OnPhase: func(id string, p session.Phase) {
			logger.InfoTag(logTag, "session %s entered %s", id, p)
		},
		OnHeartResult: func(id string, res measure.HeartSignalResult) {
			if state.repo != nil {
				if err := state.repo.SaveHeart(groupCtx, id, res); err != nil {
					logger.WarnTag(logTag, "failed to store heart result: %v", err)
				}
			}
		},
		OnVoiceResult: func(id string, res measure.VoiceSignalResult) {
			if state.repo != nil {
				if err := state.repo.SaveVoice(groupCtx, id, res); err != nil {
					logger.WarnTag(logTag, "failed to store voice result: %v", err)
				}
			}
		},
		OnError: func(id string, p session.Phase, err error) {
			logger.WarnTag(logTag, "session %s phase %s: %v", id, p, err)
		},
	}

	id, err := state.orch.Start(groupCtx, cb)
	if err != nil {
		return err
	}
	logger.InfoTag(logTag, "measurement session %s running", id)

	group.Go(func() error {
		done := make(chan struct{})
		go func() {
			state.orch.Wait()
			close(done)
		}()
		select {
		case <-groupCtx.Done():
			state.orch.Cancel()
			<-done
		case <-done:
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		return err
	}

	summary, ok := state.orch.Summary()
	if !ok {
		return platformerrors.New(platformerrors.KindSession,
			"bootstrap run", "session finished without a summary")
	}
	if err := printSummary(summary); err != nil {
		return err
	}

	if summary.Final == session.PhaseError {
		return platformerrors.New(platformerrors.KindData,
			"bootstrap run", "session produced no usable results")
	}
	return nil
}

func printSummary(summary session.Summary) error {
	out, err := sonic.ConfigDefault.MarshalIndent(summary, "", "  ")
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindData,
			"bootstrap run", "failed to encode summary", err)
	}
	_, err = fmt.Fprintln(os.Stdout, string(out))
	return err
}

// InitGraph lists the initialization steps in dependency order.
func InitGraph() []initStep {
	return []initStep{
		{
			ID:      "config:load",
			Title:   "Load configuration",
			Kind:    platformerrors.KindConfig,
			Execute: loadConfigStep,
		},
		{
			ID:        "logging:init-provider",
			Title:     "Initialise logging provider",
			DependsOn: []string{"config:load"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initLoggingStep,
		},
		{
			ID:        "storage:init-database",
			Title:     "Initialise measurement store",
			DependsOn: []string{"config:load", "logging:init-provider"},
			Kind:      platformerrors.KindStorage,
			Execute:   initStorageStep,
		},
		{
			ID:        "capture:init-sources",
			Title:     "Initialise capture sources",
			DependsOn: []string{"config:load", "logging:init-provider"},
			Kind:      platformerrors.KindResource,
			Execute:   initSourcesStep,
		},
		{
			ID:        "session:init-orchestrator",
			Title:     "Initialise session orchestrator",
			DependsOn: []string{"capture:init-sources"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initOrchestratorStep,
		},
	}
}

func executeInitSteps(ctx context.Context, steps []initStep, state *appState) error {
	if state == nil {
		return platformerrors.New(platformerrors.KindBootstrap,
			"execute init steps", "nil bootstrap state")
	}

	completed := make(map[string]struct{}, len(steps))
	for _, step := range steps {
		for _, dep := range step.DependsOn {
			if _, ok := completed[dep]; !ok {
				return platformerrors.New(platformerrors.KindBootstrap,
					step.ID, fmt.Sprintf("dependency %s not satisfied", dep))
			}
		}
		if step.Execute == nil {
			return platformerrors.New(platformerrors.KindBootstrap,
				step.ID, "missing execute function")
		}
		if err := step.Execute(ctx, state); err != nil {
			var typed *platformerrors.Error
			if errors.As(err, &typed) {
				return err
			}
			kind := step.Kind
			if kind == "" {
				kind = platformerrors.KindBootstrap
			}
			return platformerrors.Wrap(kind, step.ID, "bootstrap step failed", err)
		}
		completed[step.ID] = struct{}{}
	}
	return nil
}

func loadConfigStep(_ context.Context, state *appState) error {
	loader := platformconfig.NewLoader()
	if state.opts.ConfigPath != "" {
		loader = loader.WithPath(state.opts.ConfigPath)
	}
	result, err := loader.Load()
	if err != nil {
		return err
	}
	state.config = result.Config
	state.configPath = result.Path
	return nil
}

func initLoggingStep(_ context.Context, state *appState) error {
	if state.config == nil {
		return platformerrors.New(platformerrors.KindBootstrap,
			"logging:init-provider", "config not loaded")
	}

	logger, err := platformlogging.New(platformlogging.Config{
		Level:    state.config.Log.Level,
		Dir:      state.config.Log.Dir,
		Filename: state.config.Log.File,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap,
			"logging:init-provider", "failed to initialize logging provider", err)
	}
	state.logger = logger

	src := state.configPath
	if src == "" {
		src = "defaults"
	}
	logger.InfoTag(logTag, "logging ready [%s] config from %s", state.config.Log.Level, src)
	return nil
}

func initStorageStep(_ context.Context, state *appState) error {
	if !state.config.Store.Enabled {
		state.logger.DebugTag(logTag, "measurement store disabled")
		return nil
	}

	db, err := platformstorage.Open(state.config.Store.DSN)
	if err != nil {
		return err
	}
	state.db = db
	state.repo = platformstorage.NewMeasurementRepository(db)
	state.logger.InfoTag(logTag, "measurement store ready at %s", state.config.Store.DSN)
	return nil
}

func initSourcesStep(_ context.Context, state *appState) error {
	cfg := state.config

	if state.opts.FramesDir != "" {
		state.frames = &capture.FileFrameSource{
			Dir:    state.opts.FramesDir,
			RateHz: cfg.Video.TargetRateHz,
		}
		state.logger.InfoTag(logTag, "using prerecorded frames from %s", state.opts.FramesDir)
	} else {
		state.frames = &capture.SyntheticFrameSource{
			RateHz:  cfg.Video.TargetRateHz,
			Frames:  cfg.Session.FaceSampleTarget,
			HeartHz: 1.2,
			Amp:     10,
			Noise:   1,
			Pacing:  30 * time.Millisecond,
		}
		state.logger.InfoTag(logTag, "using synthetic demo camera")
	}

	if state.opts.AudioPath != "" {
		state.audio = &capture.MP3AudioSource{Path: state.opts.AudioPath}
		state.logger.InfoTag(logTag, "using prerecorded audio from %s", state.opts.AudioPath)
	} else {
		state.audio = &capture.SyntheticAudioSource{
			SampleRate: cfg.Audio.NominalSampleRate,
			Duration:   time.Duration(cfg.Session.VoiceSampleTarget) *
				time.Second / time.Duration(cfg.Audio.NominalSampleRate),
			PitchHz: 140,
			Jitter:  0.005,
			Shimmer: 0.02,
			Noise:   0.005,
		}
		state.logger.InfoTag(logTag, "using synthetic demo microphone")
	}
	return nil
}

func initOrchestratorStep(_ context.Context, state *appState) error {
	if state.frames == nil || state.audio == nil {
		return platformerrors.New(platformerrors.KindBootstrap,
			"session:init-orchestrator", "capture sources not initialised")
	}
	state.orch = session.New(state.config, state.frames, state.audio, state.logger)
	return nil
}
