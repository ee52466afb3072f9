package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/clubsphere/admin-backend/pkg/monitoring"
	"github.com/clubsphere/admin-backend/v1/models"
)

// AlertNotifier delivers high-priority operational alerts
type AlertNotifier interface {
	SendAlert(severity string, message string, details map[string]interface{}) error
}

// LoggingAlertNotifier implements AlertNotifier using structured logging.
// In production, this could be extended to send to PagerDuty, Slack, etc.
type LoggingAlertNotifier struct{}

// NewLoggingAlertNotifier creates a new logging-based alert notifier
func NewLoggingAlertNotifier() *LoggingAlertNotifier {
	return &LoggingAlertNotifier{}
}

// SendAlert sends a high-priority alert
func (n *LoggingAlertNotifier) SendAlert(severity string, message string, details map[string]interface{}) error {
	if severity == "critical" {
		slog.Error("CRITICAL ALERT",
			"message", message,
			"severity", severity,
			"details", details)
	} else {
		slog.Warn("ALERT",
			"message", message,
			"severity", severity,
			"details", details)
	}
	return nil
}

// DirectoryRefresher periodically scans the upstream directory in the
// background. It keeps the latest aggregate snapshot available to readers
// and raises an alert whenever the endpoint health transitions away from
// available.
type DirectoryRefresher struct {
	directory    *DirectoryService
	notifier     AlertNotifier
	pollInterval time.Duration

	mu       sync.RWMutex
	snapshot *models.AggregateResult
}

// NewDirectoryRefresher creates a new background refresher
func NewDirectoryRefresher(directory *DirectoryService, notifier AlertNotifier, pollInterval time.Duration) *DirectoryRefresher {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Minute
	}
	return &DirectoryRefresher{
		directory:    directory,
		notifier:     notifier,
		pollInterval: pollInterval,
	}
}

// Start runs the refresh loop until the context is cancelled
func (r *DirectoryRefresher) Start(ctx context.Context) {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	slog.Info("Directory refresher started", "pollInterval", r.pollInterval)

	r.refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			slog.Info("Directory refresher stopped")
			return
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

// Snapshot returns the most recent aggregate result, or nil before the
// first successful refresh
func (r *DirectoryRefresher) Snapshot() *models.AggregateResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot
}

// refresh runs one full directory scan and records the outcome
func (r *DirectoryRefresher) refresh(ctx context.Context) {
	result, err := r.directory.FetchAll(ctx, models.DirectoryQuery{})
	if err != nil {
		slog.Error("Background directory scan failed", "error", err)
		monitoring.RecordBusinessEvent(ctx, "directory_refresh", false)
		return
	}

	previous := r.Snapshot()

	r.mu.Lock()
	r.snapshot = result
	r.mu.Unlock()

	monitoring.RecordBusinessEvent(ctx, "directory_refresh", result.Available())

	if !result.Available() {
		wasAvailable := previous == nil || previous.Available()
		if wasAvailable && r.notifier != nil {
			_ = r.notifier.SendAlert("warning", "directory endpoint degraded", map[string]interface{}{
				"health":    string(result.Health),
				"detail":    result.Detail,
				"checkedAt": result.CheckedAt,
			})
		}
		return
	}

	slog.Debug("Directory snapshot refreshed",
		"entries", len(result.Entries),
		"checkedAt", result.CheckedAt)
}
