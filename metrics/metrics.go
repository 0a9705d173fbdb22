// Package metrics exposes Prometheus counters for snapshot purging and downloads.
package metrics

import (
	"github.com/git-pkgs/snapshots/internal/core"
	"github.com/git-pkgs/snapshots/purge"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "snapshots"

// Purge counts purge outcomes. It implements purge.Recorder.
type Purge struct {
	purged   prometheus.Counter
	failures prometheus.Counter
	skipped  *prometheus.CounterVec
}

// NewPurge creates purge counters and registers them with reg.
// A nil reg leaves the counters unregistered.
func NewPurge(reg prometheus.Registerer) *Purge {
	p := &Purge{
		purged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purged_files_total",
			Help:      "Total superseded snapshot files deleted",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purge_failures_total",
			Help:      "Total superseded snapshot files that could not be deleted",
		}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purge_skipped_total",
			Help:      "Purges that left the directory untouched, by reason",
		}, []string{"reason"}),
	}
	if reg != nil {
		reg.MustRegister(p.purged, p.failures, p.skipped)
	}
	return p
}

var _ purge.Recorder = (*Purge)(nil)

func (p *Purge) Purged(core.Artifact, string) { p.purged.Inc() }
func (p *Purge) Failed(core.Artifact, string) { p.failures.Inc() }

func (p *Purge) Skipped(_ core.Artifact, reason purge.SkipReason) {
	p.skipped.WithLabelValues(string(reason)).Inc()
}

// Downloads counts artifact downloads by result.
type Downloads struct {
	total *prometheus.CounterVec
}

// NewDownloads creates download counters and registers them with reg.
func NewDownloads(reg prometheus.Registerer) *Downloads {
	d := &Downloads{
		total: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_total",
			Help:      "Artifact downloads by result (success, failure)",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(d.total)
	}
	return d
}

// Observe records the outcome of one download event.
func (d *Downloads) Observe(event core.Event) {
	result := "success"
	if event.File == "" {
		result = "failure"
	}
	d.total.WithLabelValues(result).Inc()
}
