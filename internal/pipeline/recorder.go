package pipeline

import (
	"context"
	"time"

	"github.com/aretw0/kiln/pkg/unit"
)

// RecordTimeout bounds a single Recorder call.
const RecordTimeout = 2 * time.Second

// Record is the published form of one outcome.
type Record struct {
	Unit   string        `json:"unit"`
	Domain string        `json:"domain"`
	Type   string        `json:"type,omitempty"`
	Stage  string        `json:"stage,omitempty"`
	Error  string        `json:"error,omitempty"`
	Took   time.Duration `json:"took"`
	At     time.Time     `json:"at"`
}

// Failed reports whether the transformation failed.
func (r Record) Failed() bool { return r.Error != "" }

// Recorder publishes outcomes outside the process, for example to a shared
// store other tools can read. A failing Recorder never affects the outcome.
type Recorder interface {
	Record(ctx context.Context, rec Record) error
}

func (p *Pipeline) record(key string, r *result) {
	if p.recorder == nil {
		return
	}
	rec := Record{
		Unit:   unit.BinaryName(key),
		Domain: p.domain,
		Stage:  r.stage,
		Took:   r.took,
		At:     time.Now().UTC(),
	}
	if r.err != nil {
		rec.Error = r.err.Error()
	} else {
		rec.Type = r.t.Name()
	}

	ctx, cancel := context.WithTimeout(context.Background(), RecordTimeout)
	defer cancel()
	if err := p.recorder.Record(ctx, rec); err != nil {
		p.logger.Warn("Failed to record outcome", "unit", rec.Unit, "err", err)
	}
}
