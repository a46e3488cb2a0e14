package domain

import (
	"testing"
	"time"
)

func TestSnapshotIsDeepCopy(t *testing.T) {
	delta := 10
	sess := &Session{
		ID:               "s1",
		SceneID:          "sc",
		UserID:           "u1",
		Forgiveness:      30,
		StartForgiveness: 20,
		Turn:             1,
		MaxTurns:         10,
		StartedAt:        time.Now(),
		Messages: []*Message{
			{ID: "m1", Role: RoleAI, Text: "你来了", ForgivenessAfter: 20},
			{ID: "m2", Role: RoleUser, Text: "对不起", ForgivenessAfter: 20},
			{ID: "m3", Role: RoleAI, Text: "嗯", ForgivenessDelta: &delta, ForgivenessAfter: 30},
		},
		ForgivenessChanges: []ForgivenessChange{{Round: 1, Change: 10, Final: 30}},
	}

	snap := sess.Snapshot()

	sess.Update(func() {
		sess.Forgiveness = 40
		sess.Turn = 2
		sess.Messages = append(sess.Messages, &Message{ID: "m4", Role: RoleUser})
		sess.Messages[2].Text = "改了"
		*sess.Messages[2].ForgivenessDelta = -5
		sess.ForgivenessChanges[0].Final = 40
		sess.Ended = true
		sess.Outcome = &Outcome{Success: true}
	})

	if snap.Forgiveness != 30 || snap.Turn != 1 || snap.Ended {
		t.Errorf("snapshot tracked live session: %+v", snap)
	}
	if len(snap.Messages) != 3 {
		t.Fatalf("expected 3 messages in snapshot, got %d", len(snap.Messages))
	}
	if snap.Messages[2].Text != "嗯" || *snap.Messages[2].ForgivenessDelta != 10 {
		t.Errorf("message not deep-copied: %+v", snap.Messages[2])
	}
	if snap.ForgivenessChanges[0].Final != 30 {
		t.Errorf("changes not deep-copied: %+v", snap.ForgivenessChanges[0])
	}
	if snap.Outcome != nil {
		t.Errorf("snapshot gained an outcome: %+v", snap.Outcome)
	}
}

func TestSnapshotCopiesOutcome(t *testing.T) {
	sess := &Session{
		ID:      "s1",
		Ended:   true,
		Outcome: &Outcome{Success: true},
	}

	snap := sess.Snapshot()
	snap.Outcome.Success = false

	if !sess.Outcome.Success {
		t.Error("snapshot outcome must not alias the live session")
	}
}
