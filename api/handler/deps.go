// Package handler implements the HTTP API endpoints.
package handler

import (
	"context"
	"log/slog"
	"time"

	"github.com/use-agent/leakgate/cache"
	"github.com/use-agent/leakgate/classify"
	"github.com/use-agent/leakgate/config"
	"github.com/use-agent/leakgate/fetch"
	"github.com/use-agent/leakgate/history"
	"github.com/use-agent/leakgate/models"
	"github.com/use-agent/leakgate/probe"
	"github.com/use-agent/leakgate/session"
	"github.com/use-agent/leakgate/store"
	"github.com/use-agent/leakgate/webhook"
)

// Deps bundles everything the probe endpoints need. Driver and History
// may be nil: a server without a browser still runs the HTTP-only
// channels, and history persistence is optional.
type Deps struct {
	Cfg        *config.Config
	Driver     *session.Driver
	Classifier *classify.Classifier
	Client     *fetch.Client
	Store      *store.Store
	History    *history.DB
	Cache      *cache.Cache
}

// runProbe executes one full probe run: session acquisition,
// orchestration, history persistence, webhook notification.
func (d *Deps) runProbe(ctx context.Context, req *models.ProbeRequest) (*models.RunReport, error) {
	target, err := models.NewTarget(req.URL, req.UserAgent, d.Cfg.Probe.RequestTimeout)
	if err != nil {
		return nil, err
	}

	var sess probe.Session
	if d.Driver != nil {
		page, err := d.Driver.Acquire()
		if err != nil {
			// Degrade to HTTP-only channels rather than failing the run.
			slog.Warn("page acquisition failed, running HTTP-only", "error", err)
		} else {
			sess = page
			defer page.Release()
		}
	}

	orch := probe.New(d.Classifier, d.Client, d.Store, probe.Options{
		RunTimeout:      req.Timeout(d.Cfg.Probe.RunTimeout),
		HTTPParallelism: d.Cfg.Probe.HTTPParallelism,
		DisableArchive:  req.DisableArchive || d.Cfg.Probe.DisableArchive,
		ArchiveBase:     d.Cfg.Probe.ArchiveBase,
		UserAgents:      d.Cfg.Probe.UserAgents,
		Referers:        d.Cfg.Probe.Referers,
	})
	report := orch.Run(ctx, target, sess)

	if d.History != nil {
		saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := d.History.SaveRun(saveCtx, report); err != nil {
			slog.Error("history persistence failed", "run_id", report.RunID, "error", err)
		}
		cancel()
	}
	if d.Cfg.Webhook.URL != "" {
		webhook.DeliverAsync(d.Cfg.Webhook.URL, d.Cfg.Webhook.Secret,
			webhook.NewRunCompleted(report))
	}
	if d.Cache != nil {
		d.Cache.Put(cache.TargetKey(report.TargetURL, req.DisableArchive), report)
	}
	return report, nil
}
