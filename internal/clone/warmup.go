package clone

import (
	"context"
	"os"
)

// WarmUpText is spoken once at startup so the first real request does not
// pay for model loading.
const WarmUpText = "This is a warm-up call to load the models."

// WarmUp runs one full pipeline against demoPath and deletes the result.
// Failures are logged and never returned. An empty demoPath disables it.
func (s *Service) WarmUp(ctx context.Context, demoPath string) {
	if demoPath == "" {
		s.logger.Info("warm-up disabled")
		metrics.WarmUps.WithLabelValues("disabled").Inc()
		return
	}

	if _, err := os.Stat(demoPath); err != nil {
		s.logger.Warn("warm-up audio not found, skipping", "path", demoPath, "error", err)
		metrics.WarmUps.WithLabelValues("skipped").Inc()
		return
	}

	s.logger.Info("warming up model", "backend", s.model.Name(), "audio", demoPath)

	res, err := s.run(ctx, Request{Text: WarmUpText, VoicePath: demoPath}, false)
	if err != nil {
		s.logger.Error("warm-up failed", "error", err)
		metrics.WarmUps.WithLabelValues("failed").Inc()
		return
	}

	if err := os.Remove(res.Path); err != nil {
		s.logger.Warn("failed to remove warm-up artifact", "path", res.Path, "error", err)
	}

	metrics.WarmUps.WithLabelValues("ok").Inc()
	s.logger.Info("warm-up complete", "audio_duration", res.Duration)
}
