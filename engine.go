package gocbf

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

// EngineState is the lifecycle state of a diagnostic session engine
type EngineState int32

const (
	StateStarting EngineState = iota
	StateActive
	StateReconnecting
	StateStopped
)

func (s EngineState) String() string {
	switch s {
	case StateStarting:
		return "Starting"
	case StateActive:
		return "Active"
	case StateReconnecting:
		return "Reconnecting"
	default:
		return "Stopped"
	}
}

const (
	defaultReadTimeout     = 1000 * time.Millisecond
	defaultWriteTimeout    = 1000 * time.Millisecond
	defaultTesterInterval  = 2000 * time.Millisecond
	maxPendingExtensions   = 3
)

// EngineConfig parameterizes one diagnostic session
type EngineConfig struct {
	IsoTp IsoTpConfig

	// When set, TesterPresent goes to this address with no reply
	// expected instead of the ECU's request address
	GlobalTesterPresentAddr uint32
	UseGlobalTesterPresent  bool

	ReadTimeout           time.Duration
	WriteTimeout          time.Duration
	TesterPresentInterval time.Duration
}

func (cfg *EngineConfig) applyDefaults() {
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.TesterPresentInterval == 0 {
		cfg.TesterPresentInterval = defaultTesterInterval
	}
}

type command struct {
	sid            byte
	args           []byte
	expectResponse bool
}

type cmdResult struct {
	data []byte
	err  error
}

// DiagEngine is a long-running worker owning the transport for one
// ECU session. It serializes request/response execution and keeps the
// ECU awake with periodic TesterPresent while in a non-default
// session. At most one command is in flight at a time.
type DiagEngine struct {
	transport Transport
	dialect   Dialect
	cfg       EngineConfig

	cmdCh  chan command
	respCh chan cmdResult
	exitCh chan struct{}

	shouldRun   atomic.Bool
	sessionLost atomic.Bool
	state       atomic.Int32

	sessionMu sync.RWMutex
	session   SessionMode

	cmdMu         sync.Mutex
	closeOnce     sync.Once
	transportOnce sync.Once
	wg            sync.WaitGroup
}

// NewDiagEngine opens the transport, installs the ISO-TP filter,
// starts the worker and enters the dialect's diagnostic session. On
// failure the engine is stopped and the initial error returned.
func NewDiagEngine(transport Transport, dialect Dialect, cfg EngineConfig) (*DiagEngine, error) {
	cfg.applyDefaults()
	e := &DiagEngine{
		transport: transport,
		dialect:   dialect,
		cfg:       cfg,
		cmdCh:     make(chan command),
		respCh:    make(chan cmdResult),
		exitCh:    make(chan struct{}),
		session:   dialect.SessionModes()[0],
	}
	e.state.Store(int32(StateStarting))
	e.shouldRun.Store(true)

	if err := transport.Open(); err != nil {
		e.state.Store(int32(StateStopped))
		return nil, &TransportError{Kind: ErrBusUnavailable, Desc: err.Error()}
	}
	if err := transport.Configure(cfg.IsoTp.Baud, cfg.IsoTp.ExtCan, cfg.IsoTp.ExtAddressing); err != nil {
		transport.Close()
		e.state.Store(int32(StateStopped))
		return nil, err
	}
	if err := transport.AddFilter(FilterIsoTp, cfg.IsoTp.RecvID, 0xFFFF, cfg.IsoTp.SendID); err != nil {
		transport.Close()
		e.state.Store(int32(StateStopped))
		return nil, err
	}
	if err := transport.SetIsoTpParams(cfg.IsoTp.StMin, cfg.IsoTp.BlockSize); err != nil {
		transport.Close()
		e.state.Store(int32(StateStopped))
		return nil, err
	}

	e.wg.Add(1)
	go e.worker()
	log.Infof("[%v] diag session worker started", dialect.Name())

	if err := e.SetSessionMode(dialect.DiagnosticSession()); err != nil {
		log.Errorf("[%v] could not enter %v session : %v", dialect.Name(), dialect.DiagnosticSession().Name, err)
		e.Exit()
		return nil, err
	}
	e.state.Store(int32(StateActive))
	return e, nil
}

// State reports the engine lifecycle state
func (e *DiagEngine) State() EngineState {
	return EngineState(e.state.Load())
}

// Session reports the currently active session mode
func (e *DiagEngine) Session() SessionMode {
	e.sessionMu.RLock()
	defer e.sessionMu.RUnlock()
	return e.session
}

// Dialect exposes the protocol tables the engine was built with
func (e *DiagEngine) Dialect() Dialect {
	return e.dialect
}

// SetSessionMode asks the ECU to switch sessions and records the new
// mode on success. On failure the default session is assumed.
func (e *DiagEngine) SetSessionMode(mode SessionMode) error {
	sid, args := e.dialect.EnterSession(mode)
	_, err := e.RunCommand(sid, args)
	e.sessionMu.Lock()
	defer e.sessionMu.Unlock()
	if err != nil {
		e.session = e.dialect.SessionModes()[0]
		return err
	}
	e.session = mode
	return nil
}

// RunCommand executes one request and waits for the correlated
// response. Concurrent callers serialize, the mutex is held for the
// whole round trip including response pending extensions.
func (e *DiagEngine) RunCommand(sid byte, args []byte) ([]byte, error) {
	return e.submit(command{sid: sid, args: args, expectResponse: true})
}

// SendCommand sends a request for which no response is expected
func (e *DiagEngine) SendCommand(sid byte, args []byte) error {
	_, err := e.submit(command{sid: sid, args: args, expectResponse: false})
	return err
}

func (e *DiagEngine) submit(cmd command) ([]byte, error) {
	e.cmdMu.Lock()
	defer e.cmdMu.Unlock()
	if !e.shouldRun.Load() {
		if e.sessionLost.Load() {
			return nil, ErrSessionLost
		}
		return nil, ErrEngineStopped
	}
	select {
	case e.cmdCh <- cmd:
	case <-e.exitCh:
		return nil, ErrEngineStopped
	}
	select {
	case res := <-e.respCh:
		return res.data, res.err
	case <-e.exitCh:
		return nil, ErrEngineStopped
	}
}

// Exit stops the worker, drops pending replies and closes the
// transport. Safe to call multiple times and after the worker died.
func (e *DiagEngine) Exit() {
	e.shouldRun.Store(false)
	e.closeOnce.Do(func() { close(e.exitCh) })
	e.wg.Wait()
	e.transportOnce.Do(func() { e.transport.Close() })
	e.state.Store(int32(StateStopped))
	log.Infof("[%v] diag session worker stopped", e.dialect.Name())
}

// The worker is the only goroutine touching the transport. Commands
// and the TesterPresent timer are consumed from a single event loop,
// so a heartbeat can never interleave a pending response wait.
func (e *DiagEngine) worker() {
	defer e.wg.Done()
	ticker := time.NewTicker(e.cfg.TesterPresentInterval)
	defer ticker.Stop()
	for e.shouldRun.Load() {
		select {
		case cmd := <-e.cmdCh:
			res := e.execute(cmd)
			select {
			case e.respCh <- res:
			case <-e.exitCh:
				return
			}
		case <-ticker.C:
			e.testerPresent()
		case <-e.exitCh:
			return
		}
	}
}

// execute performs one round trip on the bus. A 7F .. 78 reply
// extends the read deadline by another read timeout, at most three
// times.
func (e *DiagEngine) execute(cmd command) cmdResult {
	payload := make([]byte, 0, len(cmd.args)+1)
	payload = append(payload, cmd.sid)
	payload = append(payload, cmd.args...)
	msg := IsoTpMessage{
		ID:            e.cfg.IsoTp.SendID,
		Data:          payload,
		ExtAddressing: e.cfg.IsoTp.ExtAddressing,
	}
	if _, err := e.transport.SendIsoTp([]IsoTpMessage{msg}, e.cfg.WriteTimeout); err != nil {
		return cmdResult{err: err}
	}
	if !cmd.expectResponse {
		return cmdResult{}
	}
	extensions := 0
	for {
		msgs, err := e.transport.RecvIsoTp(1, e.cfg.ReadTimeout)
		if err != nil {
			return cmdResult{err: err}
		}
		if len(msgs) == 0 {
			return cmdResult{err: ErrTimeout}
		}
		data := msgs[0].Data
		if len(data) >= 3 && data[0] == 0x7F && data[2] == nrcResponsePending {
			if extensions >= maxPendingExtensions {
				return cmdResult{err: ErrTimeout}
			}
			extensions++
			log.Debugf("[%v] ECU is processing request, waiting", e.dialect.Name())
			continue
		}
		if len(data) >= 3 && data[0] == 0x7F {
			desc := e.dialect.ClassifyNRC(data[2])
			return cmdResult{err: &EcuError{
				SID:  data[1],
				NRC:  data[2],
				Kind: desc.Kind,
				Name: desc.Name,
				Help: desc.Help,
			}}
		}
		if len(data) >= 1 && data[0] == cmd.sid+0x40 {
			return cmdResult{data: data}
		}
		got := byte(0)
		if len(data) > 0 {
			got = data[0]
		}
		log.Warnf("[%v] response SID mismatch, sent %02X got %02X", e.dialect.Name(), cmd.sid, got)
		return cmdResult{err: &UnexpectedResponseError{Sent: cmd.sid, Got: got}}
	}
}

// testerPresent keeps the session alive. A timeout here means the
// session is gone, one reconnect attempt is made.
func (e *DiagEngine) testerPresent() {
	if e.State() != StateActive {
		return
	}
	defaultMode := e.dialect.SessionModes()[0]
	if e.Session().Code == defaultMode.Code {
		return
	}
	var err error
	if e.cfg.UseGlobalTesterPresent {
		sid, args := e.dialect.TesterPresent(false)
		payload := append([]byte{sid}, args...)
		msg := IsoTpMessage{ID: e.cfg.GlobalTesterPresentAddr, Data: payload}
		_, err = e.transport.SendIsoTp([]IsoTpMessage{msg}, 0)
	} else {
		sid, args := e.dialect.TesterPresent(true)
		res := e.execute(command{sid: sid, args: args, expectResponse: true})
		err = res.err
	}
	if err == nil {
		return
	}
	if errors.Is(err, ErrTimeout) {
		log.Warnf("[%v] lost connection with ECU : %v", e.dialect.Name(), err)
		e.reconnect()
	} else {
		log.Warnf("[%v] ECU did not approve of tester present : %v", e.dialect.Name(), err)
	}
}

// reconnect retries one full session enter. Failure stops the engine.
func (e *DiagEngine) reconnect() {
	e.state.Store(int32(StateReconnecting))
	sid, args := e.dialect.EnterSession(e.dialect.DiagnosticSession())
	res := e.execute(command{sid: sid, args: args, expectResponse: true})
	if res.err != nil {
		log.Errorf("[%v] cannot re-establish ECU connection : %v", e.dialect.Name(), res.err)
		e.sessionLost.Store(true)
		e.shouldRun.Store(false)
		e.closeOnce.Do(func() { close(e.exitCh) })
		e.transportOnce.Do(func() { e.transport.Close() })
		e.state.Store(int32(StateStopped))
		return
	}
	log.Infof("[%v] regained connection to the ECU", e.dialect.Name())
	e.state.Store(int32(StateActive))
}
