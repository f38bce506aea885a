// Package monitoring turns a simulation into a small web server so the run
// can be inspected from a browser. The monitor is strictly read-only: it
// reports engine and node state but never mutates the run, so attaching it
// cannot change a simulation's outcome.
package monitoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"time"

	// Enable profiling
	_ "net/http/pprof"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/pkg/browser"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/detnet/sim"
)

// Monitor exposes a simulation over HTTP for external inspection.
type Monitor struct {
	engine     sim.Engine
	network    *sim.Network
	portNumber int
	openDash   bool
}

// NewMonitor creates a new Monitor.
func NewMonitor() *Monitor {
	m := &Monitor{}

	_ = godotenv.Load()
	if p, err := strconv.Atoi(os.Getenv("DETNET_MONITOR_PORT")); err == nil {
		m.portNumber = p
	}

	return m
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n",
			portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithDashboard makes StartServer open the dashboard in a browser.
func (m *Monitor) WithDashboard() *Monitor {
	m.openDash = true
	return m
}

// RegisterEngine registers the engine that is used in the simulation.
func (m *Monitor) RegisterEngine(e sim.Engine) {
	m.engine = e
}

// RegisterNetwork registers the network whose nodes are to be monitored.
func (m *Monitor) RegisterNetwork(n *sim.Network) {
	m.network = n
}

func (m *Monitor) router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/state", m.state)
	r.HandleFunc("/api/list_nodes", m.listNodes)
	r.HandleFunc("/api/node/{id}", m.nodeDetails)
	r.HandleFunc("/api/log", m.deliveryLog)
	r.HandleFunc("/api/errors", m.protocolErrors)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	return r
}

// StartServer starts the monitor as a web server.
func (m *Monitor) StartServer() {
	http.Handle("/", m.router())

	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	fmt.Fprintf(os.Stderr, "Monitoring simulation with %s\n", url)

	go func() {
		err = http.Serve(listener, nil)
		dieOnErr(err)
	}()

	if m.openDash {
		_ = browser.OpenURL(url)
	}
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	fmt.Fprintf(w, "{\"now\":%d}", m.engine.CurrentTime())
}

type stateRsp struct {
	State     string `json:"state"`
	Now       int64  `json:"now"`
	Pending   int    `json:"pending"`
	Delivered int    `json:"delivered"`
	Fault     string `json:"fault,omitempty"`
}

func (m *Monitor) state(w http.ResponseWriter, _ *http.Request) {
	rsp := stateRsp{
		State:     m.engine.State().String(),
		Now:       int64(m.engine.CurrentTime()),
		Pending:   m.engine.Pending(),
		Delivered: len(m.network.DeliveryLog()),
	}
	if fault := m.engine.Fault(); fault != nil {
		rsp.Fault = fault.Error()
	}

	writeJSON(w, rsp)
}

func (m *Monitor) listNodes(w http.ResponseWriter, _ *http.Request) {
	fmt.Fprint(w, "[")
	for i := 0; i < m.network.NumNodes(); i++ {
		if i > 0 {
			fmt.Fprint(w, ",")
		}

		fmt.Fprintf(w, "\"%s\"", m.network.Node(sim.NodeID(i)).Name())
	}
	fmt.Fprint(w, "]")
}

func (m *Monitor) nodeDetails(w http.ResponseWriter, r *http.Request) {
	node := m.findNodeOr404(w, mux.Vars(r)["id"])
	if node == nil {
		return
	}

	// Nodes that expose a snapshot report the same shape here as through
	// the in-process inspection API.
	if s, ok := node.(sim.Snapshotter); ok {
		writeJSON(w, s.Snapshot())
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(node)
	serializer.SetMaxDepth(1)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

func (m *Monitor) deliveryLog(w http.ResponseWriter, _ *http.Request) {
	log := m.network.DeliveryLog()

	fmt.Fprint(w, "[")
	for i, d := range log {
		if i > 0 {
			fmt.Fprint(w, ",")
		}

		fmt.Fprintf(w, "%q", d.String())
	}
	fmt.Fprint(w, "]")
}

func (m *Monitor) protocolErrors(w http.ResponseWriter, _ *http.Request) {
	errs := m.network.ProtocolErrors()

	list := make([]string, 0, len(errs))
	for _, e := range errs {
		list = append(list, e.Error())
	}

	writeJSON(w, list)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	rsp := resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	}

	writeJSON(w, rsp)
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	dieOnErr(err)

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func (m *Monitor) findNodeOr404(
	w http.ResponseWriter,
	idStr string,
) sim.Node {
	id, err := strconv.Atoi(idStr)
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		return nil
	}

	node := m.network.Node(sim.NodeID(id))
	if node == nil {
		w.WriteHeader(http.StatusNotFound)
		return nil
	}

	return node
}

func writeJSON(w http.ResponseWriter, v any) {
	bytes, err := json.Marshal(v)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
