// Package dataset drives the full build: every configured source
// processor runs once, in registry order, and the results concatenate
// into the global manifest.
package dataset

import (
	"go.uber.org/zap"

	"github.com/covidct/builder/internal/models"
)

// Observer receives build progress events. Reporting is injected so the
// driver itself stays free of printing concerns.
type Observer interface {
	ProcessorStarted(name string, index, total int)
	ProcessorProgress(name string, casesDone, casesTotal int)
	ProcessorFinished(name string, produced int)
	BuildFinished(total int, counts map[models.ClassLabel]int)
}

// NopObserver discards all events.
type NopObserver struct{}

func (NopObserver) ProcessorStarted(string, int, int)            {}
func (NopObserver) ProcessorProgress(string, int, int)           {}
func (NopObserver) ProcessorFinished(string, int)                {}
func (NopObserver) BuildFinished(int, map[models.ClassLabel]int) {}

// LogObserver reports build progress through a zap logger. Per-case
// progress is logged sparsely to keep long sources from flooding the
// output.
type LogObserver struct {
	Log *zap.Logger
	// Every n-th case progress event is logged; 0 disables them.
	ProgressEvery int
}

func (o *LogObserver) ProcessorStarted(name string, index, total int) {
	o.Log.Info("processing source",
		zap.String("source", name),
		zap.Int("position", index+1),
		zap.Int("sources", total))
}

func (o *LogObserver) ProcessorProgress(name string, casesDone, casesTotal int) {
	if o.ProgressEvery <= 0 || casesDone%o.ProgressEvery != 0 {
		return
	}
	o.Log.Info("source progress",
		zap.String("source", name),
		zap.Int("casesDone", casesDone),
		zap.Int("casesTotal", casesTotal))
}

func (o *LogObserver) ProcessorFinished(name string, produced int) {
	o.Log.Info("source finished",
		zap.String("source", name),
		zap.Int("images", produced))
}

func (o *LogObserver) BuildFinished(total int, counts map[models.ClassLabel]int) {
	fields := []zap.Field{zap.Int("images", total)}
	for _, c := range models.ClassLabels {
		fields = append(fields, zap.Int(c.String(), counts[c]))
	}
	o.Log.Info("dataset constructed", fields...)
}
