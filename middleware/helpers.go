package middleware

import (
	"context"
	"errors"

	"github.com/Dosada05/tournament-officiating/services"
)

func GetJudgeFromContext(ctx context.Context) (*services.JudgeClaims, error) {
	claims, ok := ctx.Value(judgeContextKey).(*services.JudgeClaims)
	if !ok || claims == nil {
		return nil, errors.New("judge claims not found in context")
	}
	return claims, nil
}

// WithJudge stores claims the way Authenticate does, for handlers under test.
func WithJudge(ctx context.Context, claims *services.JudgeClaims) context.Context {
	return context.WithValue(ctx, judgeContextKey, claims)
}
