// Package monitoring turns a running testbench into a web server that can
// be inspected and controlled.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/pkg/errors"
	"github.com/sarchlab/socbench/dut"
	"github.com/sarchlab/socbench/monitoring/web"
	"github.com/sarchlab/socbench/sim"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"
)

// Monitor can turn a simulation into a server and allows external monitoring
// controlling of the simulation.
type Monitor struct {
	lock       sync.RWMutex
	engine     sim.Engine
	dut        *dut.Handle
	test       string
	portNumber int

	server   *http.Server
	listener net.Listener

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar

	profileDuration time.Duration
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{
		profileDuration: time.Second,
	}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// RegisterEngine registers the engine of the test that runs now.
func (m *Monitor) RegisterEngine(e sim.Engine) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.engine = e
}

// RegisterDUT registers the DUT whose signals are shown.
func (m *Monitor) RegisterDUT(test string, h *dut.Handle) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.test = test
	m.dut = h
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        sim.GetIDGenerator().Generate(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// Router returns the routes of the monitor.
func (m *Monitor) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/pause", m.pauseEngine)
	r.HandleFunc("/api/continue", m.continueEngine)
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/signals", m.listSignals)
	r.HandleFunc("/api/signal/{name}", m.signalDetails)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

// listenAddr picks the configured port, or any free one when none is set.
func (m *Monitor) listenAddr() string {
	if m.portNumber >= 1000 {
		return ":" + strconv.Itoa(m.portNumber)
	}

	return ":0"
}

// StartServer starts the monitor as a web server and returns its port.
func (m *Monitor) StartServer() (int, error) {
	listener, err := net.Listen("tcp", m.listenAddr())
	if err != nil {
		return 0, errors.Wrap(err, "starting monitor")
	}

	m.listener = listener
	m.server = &http.Server{
		Handler:           m.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	port := listener.Addr().(*net.TCPAddr).Port
	fmt.Fprintf(os.Stderr,
		"Monitoring simulation with http://localhost:%d\n", port)

	go func() {
		err := m.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "monitor stopped: %v\n", err)
		}
	}()

	return port, nil
}

// URL returns the address of the running server.
func (m *Monitor) URL() string {
	if m.listener == nil {
		return ""
	}

	return fmt.Sprintf("http://localhost:%d",
		m.listener.Addr().(*net.TCPAddr).Port)
}

// OpenBrowser opens the monitor page in the default browser.
func (m *Monitor) OpenBrowser() error {
	url := m.URL()
	if url == "" {
		return errors.New("monitor server is not running")
	}

	return errors.Wrap(browser.OpenURL(url), "opening browser")
}

// StopServer shuts the web server down.
func (m *Monitor) StopServer(ctx context.Context) error {
	if m.server == nil {
		return nil
	}

	return errors.Wrap(m.server.Shutdown(ctx), "stopping monitor")
}

func (m *Monitor) currentEngine(w http.ResponseWriter) sim.Engine {
	m.lock.RLock()
	defer m.lock.RUnlock()

	if m.engine == nil {
		http.Error(w, "no simulation is running", http.StatusServiceUnavailable)
	}

	return m.engine
}

func (m *Monitor) pauseEngine(w http.ResponseWriter, _ *http.Request) {
	e := m.currentEngine(w)
	if e == nil {
		return
	}

	e.Pause()
	w.WriteHeader(http.StatusOK)
}

func (m *Monitor) continueEngine(w http.ResponseWriter, _ *http.Request) {
	e := m.currentEngine(w)
	if e == nil {
		return
	}

	e.Continue()
	w.WriteHeader(http.StatusOK)
}

type nowRsp struct {
	Test    string  `json:"test"`
	Now     float64 `json:"now"`
	Display string  `json:"display"`
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	e := m.currentEngine(w)
	if e == nil {
		return
	}

	now := e.CurrentTime()

	m.lock.RLock()
	test := m.test
	m.lock.RUnlock()

	writeJSON(w, nowRsp{
		Test:    test,
		Now:     now.In(sim.SEC),
		Display: now.String(),
	})
}

type signalView struct {
	Name      string `json:"name"`
	Width     int    `json:"width"`
	Direction string `json:"direction"`
	Value     string `json:"value"`
}

func (m *Monitor) signalViews() []signalView {
	m.lock.RLock()
	h := m.dut
	m.lock.RUnlock()

	if h == nil {
		return nil
	}

	views := make([]signalView, 0)
	for _, p := range h.Ports() {
		sig := h.MustSignal(p.Name)
		views = append(views, signalView{
			Name:      p.Name,
			Width:     p.Width,
			Direction: p.Direction.String(),
			Value:     sig.Value().String(),
		})
	}

	return views
}

func (m *Monitor) listSignals(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, m.signalViews())
}

func (m *Monitor) signalDetails(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	for _, v := range m.signalViews() {
		if v.Name != name {
			continue
		}

		serializer := goseth.NewSerializer()
		serializer.SetRoot(&v)
		serializer.SetMaxDepth(1)

		if err := serializer.Serialize(w); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}

		return
	}

	http.Error(w, "Signal not found", http.StatusNotFound)
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	views := make([]progressBarView, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		views = append(views, b.view())
	}
	m.progressBarsLock.Unlock()

	writeJSON(w, views)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	memoryInfo, err := proc.MemoryInfo()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memoryInfo.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	if err := pprof.StartCPUProfile(buf); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	time.Sleep(m.profileDuration)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}
