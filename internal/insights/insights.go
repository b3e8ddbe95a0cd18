// Package insights produces short AI-written attendance commentary.
// Every failure path degrades to a fixed message.
package insights

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"classroll/internal/attendance"
)

const (
	// MsgNotConfigured is returned when no generator is configured.
	MsgNotConfigured = "AI insights unavailable: API Key not configured."
	// MsgUnavailable is returned when generation fails.
	MsgUnavailable = "<p>Unable to generate insights at this time.</p>"

	recentLimit = 5
	// AllUsersKey caches the insight over the whole collection.
	AllUsersKey = "all"
)

// Generator turns a prompt into display text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Cache stores generated text.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// Service wraps a Generator with caching and fallbacks.
type Service struct {
	gen     Generator
	cache   Cache
	ttl     time.Duration
	log     zerolog.Logger
	outcome func(string)
}

// Option configures a Service.
type Option func(*Service)

// WithCache caches generated text for ttl.
func WithCache(c Cache, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = c
		s.ttl = ttl
	}
}

// WithOutcomeHook is called with "cached", "generated", "fallback" or "unconfigured".
func WithOutcomeHook(fn func(string)) Option {
	return func(s *Service) {
		if fn != nil {
			s.outcome = fn
		}
	}
}

// NewService builds a Service. A nil gen means generation is not configured.
func NewService(gen Generator, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		gen:     gen,
		log:     log.With().Str("component", "insights").Logger(),
		outcome: func(string) {},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Insight returns the cached insight for key or generates one from records.
// It never fails; errors turn into fallback text.
func (s *Service) Insight(ctx context.Context, key string, records []attendance.Record) string {
	if s.gen == nil {
		s.log.Warn().Msg("No API key configured for insight generation")
		s.outcome("unconfigured")
		return MsgNotConfigured
	}
	if s.cache != nil {
		val, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("Insight cache read failed")
		} else if ok {
			s.outcome("cached")
			return val
		}
	}
	return s.generate(ctx, key, records)
}

// Refresh regenerates and caches the insight for key, ignoring any cached value.
func (s *Service) Refresh(ctx context.Context, key string, records []attendance.Record) string {
	if s.gen == nil {
		s.outcome("unconfigured")
		return MsgNotConfigured
	}
	return s.generate(ctx, key, records)
}

func (s *Service) generate(ctx context.Context, key string, records []attendance.Record) string {
	text, err := s.gen.Generate(ctx, BuildPrompt(records))
	if err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("Insight generation failed")
		s.outcome("fallback")
		return MsgUnavailable
	}
	s.outcome("generated")
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, text, s.ttl); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("Insight cache write failed")
		}
	}
	return text
}

// BuildPrompt renders the fixed analysis prompt for records, which are
// expected most recent first.
func BuildPrompt(records []attendance.Record) string {
	stats := attendance.Summarize(records)
	recent := records
	if len(recent) > recentLimit {
		recent = recent[:recentLimit]
	}
	recentJSON, err := json.MarshalIndent(recent, "", "  ")
	if err != nil {
		recentJSON = []byte("[]")
	}

	var b strings.Builder
	b.WriteString("Analyze the following attendance data for a student/employee.\n\n")
	b.WriteString("Overall Stats:\n")
	fmt.Fprintf(&b, "- Total Recorded Days: %d\n", stats.Total)
	fmt.Fprintf(&b, "- Present: %d\n", stats.Present)
	fmt.Fprintf(&b, "- Absent: %d\n", stats.Absent)
	fmt.Fprintf(&b, "- Late: %d\n", stats.Late)
	fmt.Fprintf(&b, "- Attendance Rate: %.2f%%\n\n", stats.AttendanceRate)
	fmt.Fprintf(&b, "Recent Activity (Last %d records):\n%s\n\n", recentLimit, recentJSON)
	b.WriteString("Please provide:\n")
	b.WriteString("1. A brief summary of their attendance performance.\n")
	b.WriteString("2. One specific constructive piece of advice or observation (e.g., \"Frequent lateness on Mondays\").\n")
	b.WriteString("3. A short, encouraging message.\n\n")
	b.WriteString("Format the output as a clean HTML string (using simple tags like <p>, <strong>, <ul>, <li>) suitable for a card display. Do not use markdown.\n")
	return b.String()
}
