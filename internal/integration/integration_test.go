// Package integration runs replicas against a live relay end to end.
package integration

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"advisory-canvas/internal/canvas"
	"advisory-canvas/internal/models"
	"advisory-canvas/internal/protocol"
	"advisory-canvas/internal/relay"
	"advisory-canvas/internal/store"
	"advisory-canvas/internal/transport"
)

const (
	waitFor = 3 * time.Second
	tick    = 10 * time.Millisecond
	session = "desk"
)

var (
	chartAAPL = models.ChartKey{Ticker: "AAPL", Period: "1D"}
	chartMSFT = models.ChartKey{Ticker: "MSFT", Period: "1D"}
)

type harness struct {
	t       *testing.T
	srv     *relay.Server
	ts      *httptest.Server
	journal *store.SQLiteJournal
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	journal, err := store.NewSQLiteJournal(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)

	cfg := relay.DefaultConfig()
	cfg.Journal = journal
	srv := relay.NewServer(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	srv.Start(ctx)
	ts := httptest.NewServer(srv.Handler())

	t.Cleanup(func() {
		ts.Close()
		srv.Stop()
		cancel()
		journal.Close()
	})
	return &harness{t: t, srv: srv, ts: ts, journal: journal}
}

// join connects a replica and mounts a controller on chart.
func (h *harness) join(peer string, chart models.ChartKey) (*canvas.Controller, *transport.WebSocketTransport) {
	h.t.Helper()
	tr := transport.NewWebSocketTransport(transport.WebSocketConfig{
		RelayURL:   h.ts.URL,
		Session:    session,
		PeerID:     peer,
		MaxRetries: 3,
		BaseDelay:  10 * time.Millisecond,
		MaxDelay:   50 * time.Millisecond,
		Logger:     zerolog.Nop(),
	})
	require.NoError(h.t, tr.Connect(context.Background()))

	ctrl, err := canvas.Mount(tr, canvas.Options{
		Chart:          chart,
		Surface:        canvas.Surface{Width: 1000, Height: 500},
		Tool:           models.ShapeTrendline,
		DrawingEnabled: true,
		Logger:         zerolog.Nop(),
	})
	require.NoError(h.t, err)
	tr.OnReconnect(func() { ctrl.Resume() })

	h.t.Cleanup(func() {
		ctrl.Dispose()
		tr.Close()
	})
	return ctrl, tr
}

func (h *harness) waitPeers(n int) {
	h.t.Helper()
	require.Eventually(h.t, func() bool {
		return h.srv.Hub().GetSubscriberCount(session) == n
	}, waitFor, tick)
}

// adopted waits until c has adopted at least n sync responses, so a late
// snapshot cannot overwrite changes made afterwards.
func adopted(t *testing.T, c *canvas.Controller, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return c.Stats().SyncsAdopted >= n }, waitFor, tick)
}

func shapeIDs(c *canvas.Controller) map[string]bool {
	ids := make(map[string]bool)
	for _, s := range c.Shapes() {
		ids[s.ID] = true
	}
	return ids
}

func TestSessionConvergence(t *testing.T) {
	h := newHarness(t)
	a, _ := h.join("alice", chartAAPL)
	b, _ := h.join("bob", chartAAPL)
	c, _ := h.join("carol", chartAAPL)
	h.waitPeers(3)
	adopted(t, b, 1)
	adopted(t, c, 2)

	_, err := a.AddShape(models.ShapeRectangle)
	require.NoError(t, err)
	_, err = b.AddShape(models.ShapeArrow)
	require.NoError(t, err)
	_, err = c.AddShape(models.ShapeFibonacci)
	require.NoError(t, err)

	replicas := []*canvas.Controller{a, b, c}
	require.Eventually(t, func() bool {
		for _, r := range replicas {
			if len(r.Shapes()) != 3 {
				return false
			}
		}
		return true
	}, waitFor, tick)

	want := shapeIDs(a)
	assert.Equal(t, want, shapeIDs(b))
	assert.Equal(t, want, shapeIDs(c))

	// Fibonacci guides are derived locally, never replicated.
	assert.Len(t, b.Render(), len(a.Render()))

	require.Eventually(t, func() bool {
		counts, err := h.journal.Counts(context.Background(), session)
		return err == nil && counts[protocol.TypeAdd] == 3
	}, waitFor, tick)
}

func TestChartScopingAcrossRelay(t *testing.T) {
	h := newHarness(t)
	a, _ := h.join("alice", chartAAPL)
	m, _ := h.join("mike", chartMSFT)
	h.waitPeers(2)

	_, err := a.AddShape(models.ShapeTrendline)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return m.Stats().Ignored >= 1 }, waitFor, tick)
	assert.Empty(t, m.Shapes())
	assert.Empty(t, m.ShapesFor(chartAAPL))
	assert.Len(t, a.Shapes(), 1)
}

func TestKickedReplicaResyncs(t *testing.T) {
	h := newHarness(t)
	a, _ := h.join("alice", chartAAPL)
	b, trB := h.join("bob", chartAAPL)
	h.waitPeers(2)
	adopted(t, b, 1)

	req, err := http.NewRequest(http.MethodDelete, h.ts.URL+"/sessions/"+session+"/peers/bob", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	shape, err := a.AddShape(models.ShapeVertical)
	require.NoError(t, err)

	require.Eventually(t, trB.IsConnected, waitFor, tick)
	require.Eventually(t, func() bool { return shapeIDs(b)[shape.ID] }, waitFor, tick)
}

func TestClearReplicatesToLateJoiner(t *testing.T) {
	h := newHarness(t)
	a, _ := h.join("alice", chartAAPL)
	h.waitPeers(1)

	for _, tool := range []models.ShapeType{models.ShapeRectangle, models.ShapeArrow} {
		_, err := a.AddShape(tool)
		require.NoError(t, err)
	}
	require.NoError(t, a.ClearCanvas())

	late, _ := h.join("lena", chartAAPL)
	h.waitPeers(2)

	adopted(t, late, 1)
	assert.Empty(t, late.Shapes())
}
