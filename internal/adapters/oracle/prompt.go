// Package oracle provides ReplyOracle implementations: Gemini and Moonshot
// (Kimi) backends plus an offline rule-based one for development.
//
// Both model backends share the same contract: the model is told to answer
// with strict JSON `{"reply": "...", "forgivenessDelta": n}` and anything
// that does not parse into that shape is an error, which the game engine
// turns into a refunded turn.
package oracle

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/coax-games/coax-api/internal/domain"
)

const systemPrompt = `你是情感对话游戏引擎，扮演场景角色。
严格只输出JSON，格式：{"reply":"回复内容","forgivenessDelta":数字}
规则：forgiveness范围0-100，forgivenessDelta范围-50到+30，reply用中文1-3句。`

// buildUserPrompt lays out scene, current state, history and the new user
// line as one flat prompt block.
func buildUserPrompt(in domain.GenerateInput) string {
	var b strings.Builder

	b.WriteString("【场景】\n")
	fmt.Fprintf(&b, "标题：%s\n", in.Scene.Title)
	fmt.Fprintf(&b, "分类：%s\n", in.Scene.Category)
	fmt.Fprintf(&b, "角色：%s\n", in.Scene.Role)
	fmt.Fprintf(&b, "生气原因：%s\n", in.Scene.AngryReason)
	fmt.Fprintf(&b, "难度：%s\n", in.Scene.Difficulty)

	b.WriteString("\n【当前状态】\n")
	fmt.Fprintf(&b, "forgiveness: %d\n", in.Forgiveness)

	b.WriteString("\n【对话历史】\n")
	if len(in.History) == 0 {
		b.WriteString("（无）\n")
	}
	for _, t := range in.History {
		who := "用户"
		if t.Role == "assistant" {
			who = "AI"
		}
		fmt.Fprintf(&b, "%s：%s\n", who, strings.ReplaceAll(t.Content, "\n", " "))
	}

	b.WriteString("\n【用户本轮输入】\n")
	b.WriteString(in.UserInput)

	return b.String()
}

type wireReply struct {
	Reply            string       `json:"reply"`
	ForgivenessDelta *json.Number `json:"forgivenessDelta"`
}

// parseReply extracts the JSON object from a model answer and validates it.
// Models wrap JSON in prose or code fences often enough that we cut from the
// first '{' to the last '}' before decoding. A missing delta counts as 0;
// a missing or empty reply is an error.
func parseReply(content string) (*domain.GenerateOutput, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("model did not answer with JSON: %.80s", content)
	}

	var wire wireReply
	if err := json.Unmarshal([]byte(content[start:end+1]), &wire); err != nil {
		return nil, fmt.Errorf("decoding model JSON: %w", err)
	}

	reply := strings.TrimSpace(wire.Reply)
	if reply == "" {
		return nil, fmt.Errorf("model returned an empty reply")
	}

	delta := 0
	if wire.ForgivenessDelta != nil {
		f, err := wire.ForgivenessDelta.Float64()
		if err != nil {
			return nil, fmt.Errorf("forgivenessDelta is not a number: %w", err)
		}
		delta = int(f)
	}
	delta = clampDelta(delta)

	return &domain.GenerateOutput{Reply: reply, ForgivenessDelta: delta}, nil
}

func clampDelta(d int) int {
	if d < domain.MinDelta {
		return domain.MinDelta
	}
	if d > domain.MaxDelta {
		return domain.MaxDelta
	}
	return d
}
