// Package tasks holds the periodic work run by the daemon: following the
// simulator's COM1 radio and auditing what it did.
package tasks

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"atc_trmnl/internal/models"
	"atc_trmnl/internal/resolver"
	"atc_trmnl/internal/xplane"
)

// ErrQueueFull is returned by a sink that cannot accept another event
var ErrQueueFull = errors.New("event queue full")

// Sensor reports the simulator radio and position
type Sensor interface {
	ScanCom1() xplane.Reading
	Position() models.Position
}

// FrequencyResolver finds the controller on a frequency
type FrequencyResolver interface {
	Explain(frequency string, pos models.Position) resolver.Match
}

// Sink receives every tune event
type Sink interface {
	Publish(ev *models.TuneEvent) error
}

// SinkFunc adapts a function to Sink
type SinkFunc func(ev *models.TuneEvent) error

func (f SinkFunc) Publish(ev *models.TuneEvent) error { return f(ev) }

// TuneTask polls the sensor and, when COM1 changes, decides which voice
// channel to be in and publishes the decision to its sinks.
type TuneTask struct {
	sensor             Sensor
	resolver           FrequencyResolver
	sinks              []Sink
	interval           time.Duration
	disconnectOnUnicom bool
}

// NewTuneTask creates the task. Sinks are called in order for every event.
func NewTuneTask(sensor Sensor, r FrequencyResolver, interval time.Duration, disconnectOnUnicom bool, sinks ...Sink) *TuneTask {
	return &TuneTask{
		sensor:             sensor,
		resolver:           r,
		sinks:              sinks,
		interval:           interval,
		disconnectOnUnicom: disconnectOnUnicom,
	}
}

// Name implements scheduler.Task
func (t *TuneTask) Name() string {
	return "tune"
}

// Interval implements scheduler.Task
func (t *TuneTask) Interval() time.Duration {
	return t.interval
}

// Run implements scheduler.Task. Nothing is published while COM1 is unchanged.
func (t *TuneTask) Run(ctx context.Context) error {
	reading := t.sensor.ScanCom1()
	if !reading.Changed {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	pos := t.sensor.Position()
	ev := t.decide(reading.Frequency, pos)
	slog.Info("COM1 changed",
		"frequency", ev.Frequency,
		"action", ev.Action,
		"channel", ev.Channel,
		"reason", ev.Reason,
	)

	var errs []error
	for _, s := range t.sinks {
		if err := s.Publish(ev); err != nil {
			slog.Error("Error publishing tune event", "id", ev.ID, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t *TuneTask) decide(frequency string, pos models.Position) *models.TuneEvent {
	switch {
	case frequency == models.FrequencyUNICOM && t.disconnectOnUnicom:
		ev := models.NewTuneEvent(models.TuneActionDisconnect, frequency, pos)
		ev.Reason = "unicom selected"
		return ev

	case frequency == models.FrequencyGuard:
		ev := models.NewTuneEvent(models.TuneActionNone, frequency, pos)
		ev.Reason = "guard selected"
		return ev
	}

	m := t.resolver.Explain(frequency, pos)
	if !m.Found() {
		ev := models.NewTuneEvent(models.TuneActionNone, frequency, pos)
		ev.SnapshotID = m.SnapshotID
		ev.Reason = "no controller on frequency"
		return ev
	}

	ev := models.NewTuneEvent(models.TuneActionJoin, frequency, pos)
	ev.Channel = m.Station.Callsign
	ev.StationName = m.Station.Name
	ev.MatchedKey = m.MatchedKey
	ev.Alternate = m.Alternate
	ev.SnapshotID = m.SnapshotID
	return ev
}
