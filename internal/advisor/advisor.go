// Package advisor produces short financial advice from a generative model.
//
// Advise never fails: every problem is reported to the user as one of the
// sentinel strings below.
package advisor

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"unicode/utf8"

	"ahorro/internal/core"
)

const (
	MsgAPIKeyMissing = "ERROR: API_KEY_MISSING. Connect to secure node."
	MsgSystemFailure = "SYSTEM_FAILURE: Connection intercepted. Try again later."
	MsgNoData        = "NO_DATA_RECEIVED"

	maxPromptLength = 2000
)

// Generator sends one prompt with a system instruction to a model.
type Generator interface {
	Generate(ctx context.Context, systemInstruction, prompt string) (string, error)
}

type Advisor interface {
	Advise(ctx context.Context, balance, goal int64, query string) string
}

// Service is the Advisor backed by a Generator. A nil generator means no
// credential was configured.
type Service struct {
	gen Generator
}

var _ Advisor = (*Service)(nil)

func NewService(gen Generator) *Service {
	return &Service{gen: gen}
}

// Configured reports whether a generator is available.
func (s *Service) Configured() bool {
	return s.gen != nil
}

// Advise makes a single attempt; there is no retry.
func (s *Service) Advise(ctx context.Context, balance, goal int64, query string) string {
	if s.gen == nil {
		return MsgAPIKeyMissing
	}
	text, err := s.gen.Generate(ctx, SystemInstruction(balance, goal), sanitize(query))
	if err != nil {
		slog.ErrorContext(ctx, "Advice request failed", "error", err)
		return MsgSystemFailure
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return MsgNoData
	}
	return text
}

// ProgressPercent is balance/goal rounded to a whole percent.
func ProgressPercent(balance, goal int64) int64 {
	if goal <= 0 {
		return 0
	}
	return int64(math.Round(float64(balance) / float64(goal) * 100))
}

// SystemInstruction builds the NetSaver persona prompt for the given figures.
func SystemInstruction(balance, goal int64) string {
	return fmt.Sprintf(`You are an elite AI Cybersecurity Financial Assistant named 'NetSaver v9'.
You are running inside the app 'AR CONTROL AHORRO EDITIONS'.
You speak in a mix of technical hacker jargon (cyberpunk, matrix, computer terminals) and financial wisdom.
Keep responses short, punchy, and helpful.
The user is saving money using a numbered grid method in Mexican Pesos (MXN).
Current progress: %d%%.
Total Saved: %s.
Goal: %s.

Always end with a short system status line like "Encryption: SECURE" or "Saving protocols: ACTIVE".`,
		ProgressPercent(balance, goal), core.FormatMXN(balance), core.FormatMXN(goal))
}

func sanitize(q string) string {
	q = strings.TrimSpace(q)
	if len(q) > maxPromptLength {
		cut := maxPromptLength
		for cut > 0 && !utf8.RuneStart(q[cut]) {
			cut--
		}
		q = q[:cut] + "..."
	}
	return q
}
