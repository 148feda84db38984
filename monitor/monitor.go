// Package monitor turns a running core into an HTTP server so that its
// registers, memory, cache and pipeline registers can be inspected and the
// simulation can be stepped from outside.
package monitor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
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
	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/timing/core"
	"github.com/shirou/gopsutil/process"
	"github.com/sirupsen/logrus"
	"github.com/syifan/goseth"
)

// Monitor serves the inspection and control surface of a core over HTTP.
type Monitor struct {
	mu   sync.Mutex
	core *core.Core

	portNumber      int
	profileDuration time.Duration
	logger          logrus.FieldLogger

	server *http.Server
}

// NewMonitor creates a monitor for the given core.
func NewMonitor(c *core.Core) *Monitor {
	return &Monitor{
		core:            c,
		profileDuration: time.Second,
		logger:          logrus.StandardLogger(),
	}
}

// WithPortNumber sets the port number of the monitor. Ports below 1000 are
// refused and a random port is used instead.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		m.logger.Warnf("port %d is not allowed for the monitor, "+
			"using a random port instead", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithLogger sets the logger used by the monitor.
func (m *Monitor) WithLogger(l logrus.FieldLogger) *Monitor {
	m.logger = l
	return m
}

// WithProfileDuration sets how long /api/profile samples the CPU.
func (m *Monitor) WithProfileDuration(d time.Duration) *Monitor {
	m.profileDuration = d
	return m
}

// Router returns the request router of the monitor.
func (m *Monitor) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/registers", m.listRegisters).Methods(http.MethodGet)
	r.HandleFunc("/api/pc", m.pc).Methods(http.MethodGet)
	r.HandleFunc("/api/memory/{addr}", m.readMemory).Methods(http.MethodGet)
	r.HandleFunc("/api/cache", m.listCacheLines).Methods(http.MethodGet)
	r.HandleFunc("/api/pipeline", m.pipelineState).Methods(http.MethodGet)
	r.HandleFunc("/api/stats", m.stats).Methods(http.MethodGet)
	r.HandleFunc("/api/tick", m.tick).Methods(http.MethodPost)
	r.HandleFunc("/api/reset", m.reset).Methods(http.MethodPost)
	r.HandleFunc("/api/register/{index}", m.setRegister).
		Methods(http.MethodPost)
	r.HandleFunc("/api/resource", m.listResources).Methods(http.MethodGet)
	r.HandleFunc("/api/profile", m.collectProfile).Methods(http.MethodGet)

	return r
}

// StartServer starts serving in the background and returns the URL of the
// server.
func (m *Monitor) StartServer() (string, error) {
	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	if err != nil {
		return "", fmt.Errorf("starting monitor: %w", err)
	}

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	m.logger.Infof("monitoring simulation with %s", url)

	m.server = &http.Server{
		Handler:           m.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		err := m.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.WithError(err).Error("monitor stopped")
		}
	}()

	return url, nil
}

// Shutdown stops the server started by StartServer.
func (m *Monitor) Shutdown(ctx context.Context) error {
	if m.server == nil {
		return nil
	}

	return m.server.Shutdown(ctx)
}

// OpenBrowser opens url in the default browser.
func OpenBrowser(url string) error {
	return browser.OpenURL(url)
}

type registersRsp struct {
	Registers [emu.NumRegs]uint32 `json:"registers"`
}

func (m *Monitor) listRegisters(w http.ResponseWriter, _ *http.Request) {
	m.mu.Lock()
	rsp := registersRsp{Registers: m.core.Registers()}
	m.mu.Unlock()

	m.writeJSON(w, rsp)
}

type pcRsp struct {
	PC       uint32 `json:"pc"`
	Finished bool   `json:"finished"`
}

func (m *Monitor) pc(w http.ResponseWriter, _ *http.Request) {
	m.mu.Lock()
	rsp := pcRsp{PC: m.core.PC(), Finished: m.core.IsFinished()}
	m.mu.Unlock()

	m.writeJSON(w, rsp)
}

type memoryRsp struct {
	Addr  uint32 `json:"addr"`
	Bytes []int  `json:"bytes"`
}

func (m *Monitor) readMemory(w http.ResponseWriter, r *http.Request) {
	addr, err := parseUint32(mux.Vars(r)["addr"])
	if err != nil {
		m.badRequest(w, err)
		return
	}

	count := uint64(4)
	if s := r.URL.Query().Get("count"); s != "" {
		count, err = strconv.ParseUint(s, 0, 16)
		if err != nil {
			m.badRequest(w, err)
			return
		}
	}

	rsp := memoryRsp{Addr: addr, Bytes: make([]int, 0, count)}

	m.mu.Lock()
	for i := uint64(0); i < count; i++ {
		rsp.Bytes = append(rsp.Bytes, int(m.core.MemoryByte(addr+uint32(i))))
	}
	m.mu.Unlock()

	m.writeJSON(w, rsp)
}

type cacheLineRsp struct {
	Index int    `json:"index"`
	Valid bool   `json:"valid"`
	Tag   uint32 `json:"tag"`
	Data  []int  `json:"data"`
}

func (m *Monitor) listCacheLines(w http.ResponseWriter, _ *http.Request) {
	m.mu.Lock()
	lines := m.core.CacheLines()
	m.mu.Unlock()

	rsp := make([]cacheLineRsp, 0, len(lines))
	for _, l := range lines {
		rsp = append(rsp, cacheLineRsp{
			Index: l.Index,
			Valid: l.Valid,
			Tag:   l.Tag,
			Data:  toInts(l.Data),
		})
	}

	m.writeJSON(w, rsp)
}

func (m *Monitor) pipelineState(w http.ResponseWriter, _ *http.Request) {
	m.mu.Lock()
	state := m.core.PipelineState()
	m.mu.Unlock()

	serializer := goseth.NewSerializer()
	serializer.SetRoot(&state)
	serializer.SetMaxDepth(2)

	err := serializer.Serialize(w)
	if err != nil {
		m.logger.WithError(err).Error("serializing pipeline state")
	}
}

type statsRsp struct {
	Cycles       uint64  `json:"cycles"`
	Instructions uint64  `json:"instructions"`
	Stalls       uint64  `json:"stalls"`
	Flushes      uint64  `json:"flushes"`
	CPI          float64 `json:"cpi"`
	CacheHits    uint64  `json:"cache_hits"`
	CacheMisses  uint64  `json:"cache_misses"`
	HitRate      float64 `json:"hit_rate"`

	Branches       uint64  `json:"branches"`
	BranchesTaken  uint64  `json:"branches_taken"`
	BranchAccuracy float64 `json:"branch_accuracy"`
}

func (m *Monitor) stats(w http.ResponseWriter, _ *http.Request) {
	m.mu.Lock()
	s := m.core.Stats()
	m.mu.Unlock()

	m.writeJSON(w, statsRsp{
		Cycles:       s.Cycles,
		Instructions: s.Instructions,
		Stalls:       s.Stalls,
		Flushes:      s.Flushes,
		CPI:          s.CPI(),
		CacheHits:    s.Cache.Hits,
		CacheMisses:  s.Cache.Misses,
		HitRate:      s.HitRate(),

		Branches:       s.Branches.Predictions,
		BranchesTaken:  s.Branches.Taken,
		BranchAccuracy: s.Branches.Accuracy(),
	})
}

func (m *Monitor) tick(w http.ResponseWriter, r *http.Request) {
	n := uint64(1)
	if s := r.URL.Query().Get("n"); s != "" {
		var err error
		n, err = strconv.ParseUint(s, 10, 64)
		if err != nil {
			m.badRequest(w, err)
			return
		}
	}

	m.mu.Lock()
	m.core.RunCycles(n)
	rsp := pcRsp{PC: m.core.PC(), Finished: m.core.IsFinished()}
	m.mu.Unlock()

	m.writeJSON(w, rsp)
}

func (m *Monitor) reset(w http.ResponseWriter, _ *http.Request) {
	m.mu.Lock()
	m.core.Reset()
	m.mu.Unlock()

	w.WriteHeader(http.StatusOK)
}

type setRegisterReq struct {
	Value uint32 `json:"value"`
}

func (m *Monitor) setRegister(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		m.badRequest(w, err)
		return
	}

	req := setRegisterReq{}
	err = json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		m.badRequest(w, err)
		return
	}

	m.mu.Lock()
	err = m.core.SetRegister(index, req.Value)
	m.mu.Unlock()

	if err != nil {
		m.badRequest(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		m.internalError(w, err)
		return
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		m.internalError(w, err)
		return
	}

	memInfo, err := proc.MemoryInfo()
	if err != nil {
		m.internalError(w, err)
		return
	}

	m.writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memInfo.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		m.internalError(w, err)
		return
	}

	time.Sleep(m.profileDuration)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		m.internalError(w, err)
		return
	}

	m.writeJSON(w, prof)
}

func (m *Monitor) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		m.logger.WithError(err).Error("writing response")
	}
}

func (m *Monitor) badRequest(w http.ResponseWriter, err error) {
	w.WriteHeader(http.StatusBadRequest)
	fmt.Fprintf(w, "Error: %s", err)
}

func (m *Monitor) internalError(w http.ResponseWriter, err error) {
	m.logger.WithError(err).Error("monitor request failed")
	w.WriteHeader(http.StatusInternalServerError)
	fmt.Fprintf(w, "Error: %s", err)
}

func toInts(data []byte) []int {
	ints := make([]int, len(data))
	for i, b := range data {
		ints[i] = int(b)
	}

	return ints
}

func parseUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, err
	}

	return uint32(v), nil
}
