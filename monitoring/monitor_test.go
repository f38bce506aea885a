package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sarchlab/detnet/sim"
)

type snapshotNode struct {
	sim.NodeBase

	seen int
}

func (n *snapshotNode) React(_ sim.VTime, _ *sim.Delivery) ([]sim.Message, error) {
	n.seen++
	return nil, nil
}

func (n *snapshotNode) Snapshot() interface{} {
	return map[string]int{"seen": n.seen}
}

type plainNode struct {
	sim.NodeBase
}

func (n *plainNode) React(_ sim.VTime, _ *sim.Delivery) ([]sim.Message, error) {
	return nil, nil
}

func setUpMonitor(t *testing.T) (*Monitor, *snapshotNode) {
	t.Helper()

	engine := sim.NewSerialEngine()
	network := sim.NewNetwork("Net", engine, sim.NewRng(1), 1)

	withSnapshot := &snapshotNode{NodeBase: sim.NewNodeBase("A")}
	network.AddNode(withSnapshot)
	network.AddNode(&plainNode{NodeBase: sim.NewNodeBase("B")})

	m := NewMonitor()
	m.RegisterEngine(engine)
	m.RegisterNetwork(network)

	return m, withSnapshot
}

func get(t *testing.T, m *Monitor, path string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	m.router().ServeHTTP(rec, req)

	return rec
}

func TestNodeDetailsPrefersSnapshot(t *testing.T) {
	m, node := setUpMonitor(t)
	node.seen = 3

	rec := get(t, m, "/api/node/0")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"seen":3}`, rec.Body.String())
}

func TestNodeDetailsFallsBackToSerializer(t *testing.T) {
	m, _ := setUpMonitor(t)

	rec := get(t, m, "/api/node/1")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Body.String())
}

func TestNodeDetailsUnknownNode(t *testing.T) {
	m, _ := setUpMonitor(t)

	assert.Equal(t, http.StatusNotFound, get(t, m, "/api/node/77").Code)
	assert.Equal(t, http.StatusNotFound, get(t, m, "/api/node/abc").Code)
}

func TestStateEndpoint(t *testing.T) {
	m, _ := setUpMonitor(t)

	rec := get(t, m, "/api/state")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t,
		`{"state":"idle","now":0,"pending":0,"delivered":0}`,
		rec.Body.String())
}

func TestListNodesEndpoint(t *testing.T) {
	m, _ := setUpMonitor(t)

	rec := get(t, m, "/api/list_nodes")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `["A","B"]`, rec.Body.String())
}
