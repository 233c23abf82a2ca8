// internal/logging/sampling.go
package logging

import (
	"go.uber.org/zap/zapcore"
)

// newSampledCore wraps core with per-level sampling.
// Error and above always pass through.
func newSampledCore(core zapcore.Core, cfg SamplingConfig) zapcore.Core {
	if !cfg.Enabled {
		return core
	}

	cores := []zapcore.Core{
		&levelFilterCore{Core: core, minLevel: zapcore.ErrorLevel, hasMin: true},
	}

	// Each sub-error level gets its own sampler so a flood of trace
	// keystrokes cannot starve info lines.
	for _, lvl := range []zapcore.Level{TraceLevel, zapcore.DebugLevel, zapcore.InfoLevel, zapcore.WarnLevel} {
		filtered := &levelFilterCore{
			Core:     core,
			minLevel: lvl, hasMin: true,
			maxLevel: lvl, hasMax: true,
		}
		lc, ok := cfg.Levels[lvl]
		if !ok || lc.Initial <= 0 {
			cores = append(cores, filtered)
			continue
		}
		cores = append(cores, zapcore.NewSamplerWithOptions(filtered, cfg.Tick.Duration(), lc.Initial, lc.Thereafter))
	}
	return zapcore.NewTee(cores...)
}

// levelFilterCore admits only entries inside [minLevel, maxLevel].
type levelFilterCore struct {
	zapcore.Core
	minLevel zapcore.Level
	maxLevel zapcore.Level
	hasMin   bool
	hasMax   bool
}

func (c *levelFilterCore) Enabled(lvl zapcore.Level) bool {
	if c.hasMin && lvl < c.minLevel {
		return false
	}
	if c.hasMax && lvl > c.maxLevel {
		return false
	}
	return c.Core.Enabled(lvl)
}

func (c *levelFilterCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(e.Level) {
		return ce
	}
	return c.Core.Check(e, ce)
}

func (c *levelFilterCore) With(fields []zapcore.Field) zapcore.Core {
	clone := *c
	clone.Core = c.Core.With(fields)
	return &clone
}
