// Package export pushes snapshot summaries to an external webhook so
// dashboards can consume them without polling this service.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"github.com/yourorg/lp-apy/internal/stats"
)

// WebhookConfig holds webhook publisher settings.
type WebhookConfig struct {
	Enabled  bool
	URL      string
	APIKey   string
	Interval time.Duration
}

// Webhook batches summaries and POSTs them to the configured endpoint on
// an interval. Export failures are logged, never fatal.
type Webhook struct {
	config     WebhookConfig
	httpClient *http.Client

	mu    sync.Mutex
	batch []stats.Summary

	cancel context.CancelFunc
}

// NewWebhook creates a webhook publisher. When disabled, every method is a
// no-op, so callers never need to nil-check.
func NewWebhook(config WebhookConfig) *Webhook {
	w := &Webhook{config: config}
	if !config.Enabled {
		return w
	}

	c := retryablehttp.NewClient()
	c.RetryMax = 2
	c.Logger = nil
	w.httpClient = c.StandardClient()

	interval := config.Interval
	if interval <= 0 {
		interval = time.Minute
	}

	var ctx context.Context
	ctx, w.cancel = context.WithCancel(context.Background())
	go w.loop(ctx, interval)

	logrus.WithField("url", config.URL).Info("Webhook exporter initialized")
	return w
}

// Add queues a summary for the next export.
func (w *Webhook) Add(summary stats.Summary) {
	if !w.config.Enabled {
		return
	}
	w.mu.Lock()
	w.batch = append(w.batch, summary)
	w.mu.Unlock()
}

// Stop halts the export loop and flushes the remaining batch.
func (w *Webhook) Stop() {
	if !w.config.Enabled {
		return
	}
	w.cancel()
	w.export()
}

func (w *Webhook) loop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.export()
		case <-ctx.Done():
			return
		}
	}
}

func (w *Webhook) export() {
	w.mu.Lock()
	if len(w.batch) == 0 {
		w.mu.Unlock()
		return
	}
	batch := w.batch
	w.batch = nil
	w.mu.Unlock()

	if err := w.post(batch); err != nil {
		logrus.WithError(err).Warn("Webhook export failed")
		return
	}
	logrus.Debugf("Exported %d summaries to webhook", len(batch))
}

func (w *Webhook) post(batch []stats.Summary) error {
	payload := struct {
		Summaries  []stats.Summary `json:"summaries"`
		ExportedAt int64           `json:"exportedAt"`
		Source     string          `json:"source"`
	}{
		Summaries:  batch,
		ExportedAt: time.Now().Unix(),
		Source:     "lp-apy",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("serializing export batch: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, w.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building export request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if w.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+w.config.APIKey)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("posting export batch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
