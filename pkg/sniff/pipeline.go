package sniff

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
)

// Pipeline is the per-event handler: it filters raw advertisements, prints
// accepted detections to the console writer, forwards them to the sinks and
// maintains the session's last-seen table. Handle is never invoked
// concurrently with itself (the session loop is its only caller), so the
// last-seen map needs no locking.
type Pipeline struct {
	filter   Filter
	console  io.Writer
	sinks    []Sink
	log      zerolog.Logger
	lastSeen map[string]int // address -> most recent accepted RSSI
	accepted int
	writeErr error
	now      func() time.Time
}

// NewPipeline builds a Pipeline writing detection lines to console and
// records to sinks. An empty sink slice is the valid "no logging" mode.
func NewPipeline(filter Filter, console io.Writer, sinks []Sink, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		filter:   filter,
		console:  console,
		sinks:    sinks,
		log:      log,
		lastSeen: make(map[string]int),
		now:      time.Now,
	}
}

// Handle processes one advertisement. A rejected event has no observable
// effect. Sink write failures are logged and remembered; the first one is
// reported through Err after the scan ends.
func (p *Pipeline) Handle(adv Advertisement) {
	name := adv.DisplayName()
	if !p.filter.Accepts(name, adv.Address) {
		return
	}

	p.lastSeen[adv.Address] = adv.RSSI
	p.accepted++

	rec := NewRecord(p.now(), &adv)
	fmt.Fprintln(p.console, rec.ConsoleLine())

	for _, sink := range p.sinks {
		if err := sink.Write(rec); err != nil {
			p.log.Error().Err(err).Str("address", adv.Address).Msg("detection log write failed")
			if p.writeErr == nil {
				p.writeErr = err
			}
		}
	}
}

// LastSeen returns a copy of the address -> last RSSI table.
func (p *Pipeline) LastSeen() map[string]int {
	out := make(map[string]int, len(p.lastSeen))
	for addr, rssi := range p.lastSeen {
		out[addr] = rssi
	}
	return out
}

// Accepted returns the number of detections that passed the filter.
func (p *Pipeline) Accepted() int {
	return p.accepted
}

// Err returns the first sink write error, if any occurred.
func (p *Pipeline) Err() error {
	return p.writeErr
}
