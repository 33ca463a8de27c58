// ===== 🎯 上游生成器：模拟与 HTTP 两种后端 =====

package upstream

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/cacheval/config"
)

// Answer is a generated answer together with its token accounting.
type Answer struct {
	Text   string `json:"text"`
	Tokens int    `json:"tokens"`
	Model  string `json:"model"`
}

// Generator produces an answer for a question. Implementations must honor
// context cancellation and return the harness error codes for failures.
type Generator interface {
	Generate(ctx context.Context, question string) (*Answer, error)
	Name() string
}

// New builds the generator selected by configuration.
func New(cfg config.UpstreamConfig, logger *zap.Logger) (Generator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	counter := NewTokenCounter(cfg.Encoding)

	switch cfg.Mode {
	case "simulated", "":
		return NewSimulated(cfg, counter, logger), nil
	case "http":
		return NewHTTPGenerator(cfg, counter, logger)
	default:
		return nil, fmt.Errorf("unsupported upstream mode %q", cfg.Mode)
	}
}
