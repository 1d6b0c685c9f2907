// Package track reports training runs to an optional metrics webhook.
// Tracking is best-effort: a missing URL disables it and delivery
// failures never fail the pipeline.
package track

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/provider-risk/internal/boost"
)

// Event is one training-run report.
type Event struct {
	Project      string        `json:"project"`
	BundleKey    string        `json:"bundle_key"`
	TargetRule   string        `json:"target_rule"`
	TrainMetrics boost.Metrics `json:"train_metrics"`
	TestMetrics  boost.Metrics `json:"test_metrics"`
	TrainRows    int           `json:"train_rows"`
	TestRows     int           `json:"test_rows"`
	SMOTEApplied bool          `json:"smote_applied"`
	Timestamp    time.Time     `json:"timestamp"`
}

// Reporter posts training events to a webhook.
type Reporter struct {
	url     string
	project string
	client  *http.Client
}

// New creates a reporter. An empty URL yields a disabled reporter.
func New(url, project string) *Reporter {
	return &Reporter{
		url:     url,
		project: project,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled reports whether a webhook URL is configured.
func (r *Reporter) Enabled() bool { return r.url != "" }

// Report delivers one event. Failures are logged and swallowed so a
// broken tracking endpoint never blocks training.
func (r *Reporter) Report(ctx context.Context, ev Event) {
	if !r.Enabled() {
		return
	}
	ev.Project = r.project
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	if err := r.send(ctx, ev); err != nil {
		zap.L().Warn("track: report failed",
			zap.String("bundle_key", ev.BundleKey),
			zap.Error(err),
		)
		return
	}
	zap.L().Info("track: reported training run",
		zap.String("bundle_key", ev.BundleKey),
		zap.String("project", ev.Project),
	)
}

func (r *Reporter) send(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return eris.Wrap(err, "track: marshal event")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "track: create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "track: post event")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("track: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
