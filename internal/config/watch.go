package config

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/qaorchestrator/core/pkg/decision"
	"github.com/qaorchestrator/core/pkg/log"
)

// ThresholdWatcher watches a config file and re-derives decision.Thresholds
// on every write, without restarting the daemon. Only the routing_*
// threshold keys are hot-reloadable (spec.md §6's "configuration, not
// code" rationale); pool sizes, timeouts, and paths require a restart.
type ThresholdWatcher struct {
	v        *viper.Viper
	watcher  *fsnotify.Watcher
	onChange func(decision.Thresholds)
}

// WatchThresholds starts watching path for changes and invokes onChange
// with the freshly parsed Thresholds whenever the file is rewritten. A
// parse or validation failure on reload is logged and ignored: the
// previous, last-known-good thresholds remain in effect.
func WatchThresholds(path string, onChange func(decision.Thresholds)) (*ThresholdWatcher, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: create watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}

	w := &ThresholdWatcher{v: v, watcher: fsw, onChange: onChange}
	go w.run(path)
	return w, nil
}

func (w *ThresholdWatcher) run(path string) {
	logger := log.WithComponent("config-watcher")

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			if err := w.v.ReadInConfig(); err != nil {
				logger.Warn().Err(err).Msg("failed to reload config, keeping previous thresholds")
				continue
			}

			th := decision.Thresholds{
				HighComplexity:   w.v.GetFloat64("routing_high_complexity_threshold"),
				SecurityKind:     w.v.GetFloat64("routing_security_kind_threshold"),
				LowConfidence:    w.v.GetFloat64("routing_low_confidence_threshold"),
				MediumComplexity: w.v.GetFloat64("routing_medium_complexity_threshold"),
			}
			inRange := true
			for _, x := range []float64{th.HighComplexity, th.SecurityKind, th.LowConfidence, th.MediumComplexity} {
				if x < 0 || x > 1 {
					inRange = false
				}
			}
			if !inRange {
				logger.Warn().Interface("thresholds", th).Msg("reloaded thresholds outside [0,1], keeping previous thresholds")
				continue
			}
			logger.Info().Interface("thresholds", th).Msg("routing thresholds reloaded")
			w.onChange(th)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn().Err(err).Msg("config watcher error")
		}
	}
}

// Close stops watching.
func (w *ThresholdWatcher) Close() error {
	return w.watcher.Close()
}
