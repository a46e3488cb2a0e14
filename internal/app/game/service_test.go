package game_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	memstore "github.com/coax-games/coax-api/internal/adapters/storage/memory"
	"github.com/coax-games/coax-api/internal/app/game"
	"github.com/coax-games/coax-api/internal/domain"
)

func newTestService(t *testing.T, oracle domain.ReplyOracle) (*game.Service, *memstore.RecordStore) {
	t.Helper()

	scenes := memstore.NewSceneStore()
	scenes.AddScene(testScene())
	records := memstore.NewRecordStore()

	svc := game.NewService(scenes, oracle, memstore.NewSessionStore(), records)
	return svc, records
}

func TestStartSessionUnknownScene(t *testing.T) {
	svc, _ := newTestService(t, fixedDelta(0))

	_, err := svc.StartSession(context.Background(), game.StartSessionInput{
		UserID:  "u1",
		SceneID: "no-such-scene",
	})
	assert.ErrorIs(t, err, domain.ErrSceneNotFound)
}

func TestPlayThroughSavesRecord(t *testing.T) {
	ctx := context.Background()
	svc, records := newTestService(t, fixedDelta(30))

	start, err := svc.StartSession(ctx, game.StartSessionInput{UserID: "u1", SceneID: "test-scene"})
	require.NoError(t, err)

	// 20 → 50 → 80 → 100(win)
	var last *game.SendMessageOutput
	for turn := 1; turn <= 3; turn++ {
		last, err = svc.SendMessage(ctx, game.SendMessageInput{
			SessionID: start.Session.ID,
			Text:      "真的对不起",
		})
		require.NoError(t, err)
	}

	require.NotNil(t, last.Result.Outcome)
	assert.True(t, last.Result.Outcome.Success)

	saved, err := records.ListRecords(ctx, "u1", domain.RecordFilter{})
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.True(t, saved[0].IsSuccess)
	assert.Equal(t, 100, saved[0].FinalForgiveness)
	assert.Equal(t, 3, saved[0].InteractionCount)
	assert.Equal(t, 20, saved[0].StartForgiveness)
	assert.Len(t, saved[0].ForgivenessChanges, 3)
}

func TestSendMessageUnknownSession(t *testing.T) {
	svc, _ := newTestService(t, fixedDelta(0))

	_, err := svc.SendMessage(context.Background(), game.SendMessageInput{
		SessionID: "missing",
		Text:      "你好",
	})
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestOracleFailureDoesNotSaveRecord(t *testing.T) {
	ctx := context.Background()
	o := &scriptOracle{fn: func(_ context.Context, _ domain.GenerateInput) (*domain.GenerateOutput, error) {
		return nil, context.DeadlineExceeded
	}}
	svc, records := newTestService(t, o)

	start, err := svc.StartSession(ctx, game.StartSessionInput{UserID: "u1", SceneID: "test-scene"})
	require.NoError(t, err)

	out, err := svc.SendMessage(ctx, game.SendMessageInput{SessionID: start.Session.ID, Text: "在吗"})
	require.NoError(t, err)
	assert.True(t, out.Result.OracleFailed)

	saved, err := records.ListRecords(ctx, "u1", domain.RecordFilter{})
	require.NoError(t, err)
	assert.Empty(t, saved)
}

func TestRestartSession(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, fixedDelta(10))

	start, err := svc.StartSession(ctx, game.StartSessionInput{UserID: "u1", SceneID: "test-scene"})
	require.NoError(t, err)

	_, err = svc.SendMessage(ctx, game.SendMessageInput{SessionID: start.Session.ID, Text: "对不起"})
	require.NoError(t, err)

	restarted, err := svc.RestartSession(ctx, game.RestartSessionInput{SessionID: start.Session.ID})
	require.NoError(t, err)

	assert.NotEqual(t, start.Session.ID, restarted.Session.ID)
	assert.Equal(t, 0, restarted.Session.Turn)
	assert.Equal(t, 20, restarted.Session.Forgiveness)

	// old session is gone from the registry
	_, err = svc.GetSession(ctx, start.Session.ID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	// new one is live
	fresh, err := svc.GetSession(ctx, restarted.Session.ID)
	require.NoError(t, err)
	assert.False(t, fresh.Ended)
}

// Reading a session while a turn is in flight must never observe the
// engine's partial writes. Run with -race.
func TestConcurrentReadsDuringTurn(t *testing.T) {
	ctx := context.Background()
	release := make(chan struct{})
	o := &scriptOracle{fn: func(_ context.Context, _ domain.GenerateInput) (*domain.GenerateOutput, error) {
		<-release
		return &domain.GenerateOutput{Reply: "嗯。", ForgivenessDelta: 10}, nil
	}}
	svc, _ := newTestService(t, o)

	start, err := svc.StartSession(ctx, game.StartSessionInput{UserID: "u1", SceneID: "test-scene"})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := svc.SendMessage(ctx, game.SendMessageInput{SessionID: start.Session.ID, Text: "对不起"})
		assert.NoError(t, err)
	}()

	// opening line plus at most the pending user message, never a torn state
	for i := 0; i < 200; i++ {
		snap, err := svc.GetSession(ctx, start.Session.ID)
		require.NoError(t, err)
		require.LessOrEqual(t, len(snap.Messages), 2)
		require.Equal(t, 20, snap.Forgiveness)
	}

	close(release)
	<-done

	final, err := svc.GetSession(ctx, start.Session.ID)
	require.NoError(t, err)
	assert.Len(t, final.Messages, 3)
	assert.Equal(t, 30, final.Forgiveness)
	assert.Equal(t, 1, final.Turn)
}
