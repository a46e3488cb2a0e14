package oracle

import (
	"context"
	"math/rand"
	"strings"

	"github.com/coax-games/coax-api/internal/domain"
)

// RuleOracle is the offline stand-in for the model backends: a small keyword
// heuristic over the user's line plus a canned mood reply. Good enough for
// local development and demos, never used to judge real play.
type RuleOracle struct {
	randInt func(min, max int) int
}

func NewRuleOracle() *RuleOracle {
	return &RuleOracle{
		randInt: func(min, max int) int {
			return rand.Intn(max-min+1) + min
		},
	}
}

// Generate implements domain.ReplyOracle. It never fails.
func (o *RuleOracle) Generate(_ context.Context, in domain.GenerateInput) (*domain.GenerateOutput, error) {
	delta := clampDelta(o.calcDelta(in.UserInput))
	return &domain.GenerateOutput{
		Reply:            moodReply(delta),
		ForgivenessDelta: delta,
	}, nil
}

func (o *RuleOracle) calcDelta(text string) int {
	lower := strings.ToLower(text)
	if strings.Contains(lower, "对不起") || strings.Contains(lower, "抱歉") || strings.Contains(lower, "sorry") {
		return o.randInt(10, 25)
	}
	if strings.Contains(lower, "你错") || strings.Contains(lower, "怪你") {
		return -o.randInt(15, 30)
	}
	return o.randInt(-15, 20)
}

func moodReply(delta int) string {
	switch {
	case delta >= 15:
		return "好吧，态度还不错。"
	case delta >= 5:
		return "嗯，勉强听进去一些。"
	case delta >= 0:
		return "我再听听，你继续说。"
	case delta >= -10:
		return "你这话让我有点生气。"
	default:
		return "你是来气我的吗？"
	}
}
