package monitor

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/wjensen/x32-scene-monitor/internal/apply"
	"github.com/wjensen/x32-scene-monitor/internal/scene"
)

// CycleRecord summarizes one parse→diff→apply cycle.
type CycleRecord struct {
	ID        string        `json:"id"`
	StartedAt time.Time     `json:"startedAt"`
	File      string        `json:"file"`
	Changes   int           `json:"changes"`
	Sent      int           `json:"sent"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Removed   int           `json:"removed"`
	Warnings  int           `json:"warnings"`
	Duration  time.Duration `json:"duration"`
	Failures  []string      `json:"failures,omitempty"`
}

// Recorder persists cycle records. Implemented by the history store.
type Recorder interface {
	RecordCycle(rec CycleRecord) error
}

// Notifier announces finished cycles, e.g. to connected UI clients.
type Notifier interface {
	NotifyCycle(rec CycleRecord)
}

// Pipeline owns the retained "last known snapshot" and runs one
// parse→diff→apply cycle at a time. The snapshot cell is guarded by a
// single exclusive lock: overlapping triggers queue on it rather than
// diffing against a stale snapshot.
type Pipeline struct {
	path    string
	applier *apply.Applier

	recorder Recorder
	notifier Notifier

	mu   sync.Mutex
	last *scene.Snapshot
}

// NewPipeline returns a pipeline applying changes from the scene file at
// path. recorder and notifier may be nil.
func NewPipeline(path string, applier *apply.Applier, recorder Recorder, notifier Notifier) *Pipeline {
	return &Pipeline{path: path, applier: applier, recorder: recorder, notifier: notifier}
}

// SetNotifier installs the cycle notifier. The push transport is built
// after the pipeline it serves, so the notifier arrives late.
func (p *Pipeline) SetNotifier(n Notifier) {
	p.mu.Lock()
	p.notifier = n
	p.mu.Unlock()
}

// Prime parses the scene file and retains it as the baseline snapshot
// without applying anything. Called once at startup so the first edit diffs
// against the on-disk state rather than an empty scene.
func (p *Pipeline) Prime() error {
	snap, err := p.parseFile()
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.last = snap
	p.mu.Unlock()
	log.Info().Str("file", p.path).Int("params", snap.Len()).Int("warnings", len(snap.Warnings())).Msg("Scene baseline loaded")
	return nil
}

// LastSnapshot returns the currently retained snapshot, or nil before
// Prime.
func (p *Pipeline) LastSnapshot() *scene.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Run executes one cycle: parse the file, diff against the retained
// snapshot, apply the changes, then atomically retain the new snapshot.
// The returned record is also persisted and broadcast when a recorder or
// notifier is configured.
func (p *Pipeline) Run() (CycleRecord, error) {
	p.mu.Lock()

	rec := CycleRecord{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
		File:      p.path,
	}

	snap, err := p.parseFile()
	if err != nil {
		p.mu.Unlock()
		return rec, err
	}
	for _, w := range snap.Warnings() {
		log.Warn().Int("line", w.Line).Str("reason", w.Reason).Msg("Scene parse warning")
	}
	rec.Warnings = len(snap.Warnings())

	old := p.last
	if old == nil {
		old = scene.NewSnapshot()
	}
	diff := scene.Diff(old, snap)
	rec.Changes = len(diff.Changes)
	rec.Removed = len(diff.Removed)
	for _, path := range diff.Removed {
		log.Warn().Str("path", path.String()).Msg("Parameter removed from scene; console has no delete, ignoring")
	}

	res := p.applier.Apply(diff.Changes)
	rec.Sent = res.Sent
	rec.Failed = res.Failed
	rec.Skipped = res.Skipped
	for _, f := range res.Failures {
		rec.Failures = append(rec.Failures, fmt.Sprintf("%s: %v", f.Change.Path, f.Err))
	}

	p.last = snap
	rec.Duration = time.Since(rec.StartedAt)
	recorder, notifier := p.recorder, p.notifier
	p.mu.Unlock()

	log.Info().
		Str("cycle", rec.ID).
		Int("changes", rec.Changes).
		Int("sent", rec.Sent).
		Int("failed", rec.Failed).
		Int("skipped", rec.Skipped).
		Int("removed", rec.Removed).
		Dur("took", rec.Duration).
		Msg("Apply cycle finished")

	// Recorder and notifier run outside the snapshot lock; NotifyCycle
	// implementations may read back through LastSnapshot.
	if recorder != nil {
		if err := recorder.RecordCycle(rec); err != nil {
			log.Warn().Err(err).Msg("Failed to record apply cycle")
		}
	}
	if notifier != nil {
		notifier.NotifyCycle(rec)
	}
	return rec, nil
}

func (p *Pipeline) parseFile() (*scene.Snapshot, error) {
	f, err := os.Open(p.path)
	if err != nil {
		return nil, fmt.Errorf("opening scene file: %w", err)
	}
	defer f.Close()
	return scene.Parse(f)
}
