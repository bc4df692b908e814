package hub_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/warp/points-hub/hub"
	"github.com/warp/points-hub/hub/store"
)

func TestMonitor_StartAndStop(t *testing.T) {
	// GIVEN: A running monitor on a short interval
	// WHEN: It is started twice and stopped twice
	// THEN: Both are idempotent and Stop waits out the in-flight check
	mem := store.NewMemory()
	svc := hub.NewService(mem, mem, hub.ServiceOptions{})
	require.NoError(t, svc.Initialize(context.Background()))

	monitor := hub.NewMonitor(svc, 10*time.Millisecond, zerolog.Nop())
	monitor.Start()
	monitor.Start()

	time.Sleep(35 * time.Millisecond)

	monitor.Stop()
	monitor.Stop()
}

func TestMonitor_NeverCorrectsDrift(t *testing.T) {
	// GIVEN: A drifted ledger being watched
	// WHEN: Several verification cycles pass
	// THEN: The ledger is reported on but never mutated
	mem := store.NewMemory()
	svc := hub.NewService(mem, mem, hub.ServiceOptions{})
	require.NoError(t, svc.Initialize(context.Background()))
	mem.SetAccountBalance("profile-1", 250)

	monitor := hub.NewMonitor(svc, 10*time.Millisecond, zerolog.Nop())
	monitor.Start()
	time.Sleep(35 * time.Millisecond)
	monitor.Stop()

	state, err := svc.State(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(0), state.CirculatingSupply)

	page, err := svc.Logs(context.Background(), hub.LogFilter{Action: hub.ActionReconcile})
	require.NoError(t, err)
	require.Empty(t, page.Entries)
}
