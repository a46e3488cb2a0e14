package oracle

import (
	"context"
	"testing"

	"github.com/coax-games/coax-api/internal/domain"
)

func TestRuleOracleApologyRaisesMeter(t *testing.T) {
	o := NewRuleOracle()
	o.randInt = func(min, max int) int { return max }

	out, err := o.Generate(context.Background(), domain.GenerateInput{UserInput: "对不起，我错了"})
	if err != nil {
		t.Fatal(err)
	}
	if out.ForgivenessDelta != 25 {
		t.Errorf("delta = %d, want 25", out.ForgivenessDelta)
	}
	if out.Reply == "" {
		t.Error("expected a mood reply")
	}
}

func TestRuleOracleBlameDropsMeter(t *testing.T) {
	o := NewRuleOracle()
	o.randInt = func(min, max int) int { return min }

	out, err := o.Generate(context.Background(), domain.GenerateInput{UserInput: "明明都怪你"})
	if err != nil {
		t.Fatal(err)
	}
	if out.ForgivenessDelta != -15 {
		t.Errorf("delta = %d, want -15", out.ForgivenessDelta)
	}
}

func TestRuleOracleDeltaAlwaysInRange(t *testing.T) {
	o := NewRuleOracle()
	for _, input := range []string{"sorry啦", "都怪你", "今天天气不错", "抱歉抱歉"} {
		for range 50 {
			out, err := o.Generate(context.Background(), domain.GenerateInput{UserInput: input})
			if err != nil {
				t.Fatal(err)
			}
			if out.ForgivenessDelta < domain.MinDelta || out.ForgivenessDelta > domain.MaxDelta {
				t.Fatalf("delta %d out of range for %q", out.ForgivenessDelta, input)
			}
		}
	}
}
