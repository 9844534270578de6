package bridge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func managedBridge(t *testing.T, callSID string) (*Bridge, *fakeConn) {
	t.Helper()
	callerConn := newFakeConn()
	agentConn := newFakeConn()
	b, err := New(callerConn, Params{CallSID: callSID, AgentID: "agent_1"},
		WithAuth(&fakeAuth{url: "wss://agent.test"}),
		WithDialer(&fakeDialer{conn: agentConn}),
	)
	require.NoError(t, err)
	return b, callerConn
}

func TestManagerTracksCalls(t *testing.T) {
	m := NewManager()
	assert.Equal(t, 0, m.Count())

	b1, _ := managedBridge(t, "CA1")
	b2, _ := managedBridge(t, "CA2")
	m.Add(b1)
	m.Add(b2)
	assert.Equal(t, 2, m.Count())

	snapshots := m.Snapshots()
	require.Len(t, snapshots, 2)
	sids := []string{snapshots[0].CallSID, snapshots[1].CallSID}
	assert.ElementsMatch(t, []string{"CA1", "CA2"}, sids)

	m.Remove("CA1")
	assert.Equal(t, 1, m.Count())
	m.Remove("CA1")
	assert.Equal(t, 1, m.Count(), "removing twice is harmless")
}

func TestManagerCloseAll(t *testing.T) {
	m := NewManager()

	b1, conn1 := managedBridge(t, "CA1")
	b2, conn2 := managedBridge(t, "CA2")
	m.Add(b1)
	m.Add(b2)

	done1 := make(chan struct{})
	done2 := make(chan struct{})
	go func() {
		b1.Run(context.Background())
		close(done1)
	}()
	go func() {
		b2.Run(context.Background())
		close(done2)
	}()

	require.Eventually(t, func() bool { return b1.call.Ready() && b2.call.Ready() }, waitFor, tick)

	m.CloseAll()

	for _, done := range []chan struct{}{done1, done2} {
		select {
		case <-done:
		case <-time.After(waitFor):
			t.Fatal("calls did not shut down")
		}
	}
	assert.Equal(t, 1, conn1.closeCount())
	assert.Equal(t, 1, conn2.closeCount())
}
