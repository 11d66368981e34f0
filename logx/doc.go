// Package logx provides leveled logging configured from the environment.
//
// Environment Variables:
//   - LOG_LEVEL: minimum level (TRACE, DEBUG, INFO, WARN, ERROR, OFF)
//   - LOG_FORMAT: console or json
//   - LOG_COLOR: colored console output (true/false, default: true)
//   - LOG_CALLER: caller file:line (true/false, default: true)
//
// Basic Usage:
//
//	logx.Info("Loading model %s on device %s...", model, dev)
//	logx.Error("Failed to process image %d: %v", i+1, err)
//
// Components take a *Logger so tests can capture output:
//
//	log := logx.New()
//	log.SetOutput(&buf)
//	backend, err := local.New(ctx, cfg, local.WithLogger(log))
package logx
