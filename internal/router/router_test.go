package router

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shoppulse/dashsvc/internal/messaging"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatchRoutesByKind(t *testing.T) {
	r := New(testLogger())
	var got messaging.Kind
	require.NoError(t, r.Register(messaging.KindNewUser, func(_ context.Context, env *messaging.Envelope) (Outcome, error) {
		got = env.Kind
		return Applied, nil
	}))

	env, err := messaging.DecodeEnvelope([]byte(`{"type":"new_user","email":"a@b.c"}`))
	require.NoError(t, err)

	outcome, err := r.Dispatch(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, Applied, outcome)
	assert.Equal(t, messaging.KindNewUser, got)
}

func TestDispatchUnknownKindSkips(t *testing.T) {
	r := New(testLogger())

	env, err := messaging.DecodeEnvelope([]byte(`{"type":"mystery_event"}`))
	require.NoError(t, err)

	outcome, err := r.Dispatch(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, Skipped, outcome)
}

func TestRegisterRejectsDuplicateKind(t *testing.T) {
	r := New(testLogger())
	fn := func(context.Context, *messaging.Envelope) (Outcome, error) { return Applied, nil }

	require.NoError(t, r.Register(messaging.KindNewOrder, fn))
	require.Error(t, r.Register(messaging.KindNewOrder, fn))
}

func TestDispatchPropagatesHandlerError(t *testing.T) {
	r := New(testLogger())
	boom := errors.New("store down")
	require.NoError(t, r.Register(messaging.KindDeleteUser, func(context.Context, *messaging.Envelope) (Outcome, error) {
		return Skipped, boom
	}))

	env, err := messaging.DecodeEnvelope([]byte(`{"type":"delete_user","userId":"u-1"}`))
	require.NoError(t, err)

	_, err = r.Dispatch(context.Background(), env)
	require.ErrorIs(t, err, boom)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "applied", Applied.String())
	assert.Equal(t, "skipped", Skipped.String())
}
