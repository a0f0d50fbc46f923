package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/yyup/kindergarten-engine/pkg/metrics"
	"github.com/yyup/kindergarten-engine/pkg/models"
	"github.com/yyup/kindergarten-engine/pkg/prompts"
)

// FallbackController wraps semantic and complex execution. When a tier
// fails it degrades to a fixed apology instead of a second model call,
// so one upstream failure cannot cascade into another. Degraded results
// are flagged and must never be cached.
type FallbackController struct {
	direct *DirectResponder
	logger *zap.Logger
}

func NewFallbackController(direct *DirectResponder, logger *zap.Logger) *FallbackController {
	return &FallbackController{
		direct: direct,
		logger: logger.Named("fallback"),
	}
}

// Execute runs the tier executor and degrades on any error. The
// returned result is always non-nil.
func (f *FallbackController) Execute(ctx context.Context, executor TierExecutor, queryText string) *models.ChatResult {
	result, err := executor.Respond(ctx, queryText)
	if err == nil {
		return result
	}

	f.logger.Warn("tier execution failed, serving fallback",
		zap.String("query", queryText), zap.Error(err))
	metrics.FallbacksTotal.Inc()

	degraded := f.direct.RespondFixed(prompts.FallbackResponse)
	degraded.IsFallback = true
	degraded.Warning = "the preferred processing strategy failed; this is a degraded response"
	return degraded
}
