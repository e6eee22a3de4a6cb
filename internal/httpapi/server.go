package httpapi

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Server lifecycle states.
const (
	CREATED = uint8(iota)
	STARTING
	READY
	CLOSED
)

// Server control signals.
const (
	CLOSE = uint8(iota)
	ERROR
)

// Option configures one Server instance.
type Option struct {
	Host    string
	Port    int
	Timeout time.Duration
	Allows  []string // CORS origins; empty means allow all
}

// Server wraps a gin router with a signal-driven start/stop
// lifecycle, mirroring how a long-running daemon manages its listener.
// Collaborators that own background state (the task manager's cleanup
// cron, the config store's file watcher) register themselves via
// OnShutdown so a single Stop() releases them instead of leaving
// callers to close each one by hand.
type Server struct {
	router        *gin.Engine
	addr          net.Addr
	signal        chan uint8
	event         chan uint8
	status        uint8
	option        *Option
	log           *logrus.Logger
	shutdownHooks []func()
}

// NewServer builds a Server bound to router, not yet listening.
func NewServer(router *gin.Engine, option Option, log *logrus.Logger) *Server {
	if option.Timeout == 0 {
		option.Timeout = 5 * time.Second
	}
	return &Server{
		router: router,
		option: &option,
		signal: make(chan uint8, 1),
		event:  make(chan uint8, 1),
		status: CREATED,
		log:    log,
	}
}

// OnShutdown registers fn to run, in registration order, once the
// listener has closed during Stop. Use it to stop the task manager's
// cleanup cron, close the config store's watcher, or release any other
// resource that must not outlive the HTTP server.
func (s *Server) OnShutdown(fn func()) {
	s.shutdownHooks = append(s.shutdownHooks, fn)
}

// Event exposes the channel that reports READY/CLOSE transitions to callers.
func (s *Server) Event() chan uint8 { return s.event }

// Port reports the bound TCP port once the server is listening.
func (s *Server) Port() (int, error) {
	if s.addr == nil {
		return 0, fmt.Errorf("httpapi: server is not listening")
	}
	parts := strings.Split(s.addr.String(), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("httpapi: can't parse port from %s", s.addr.String())
	}
	return strconv.Atoi(parts[1])
}

// Ready reports whether the server has finished starting.
func (s *Server) Ready() bool { return s.status == READY }

// Start binds the listener and serves until Stop is signalled or the
// listener fails. It blocks; callers typically run it in a goroutine.
func (s *Server) Start() error {
	switch s.status {
	case READY:
		return fmt.Errorf("httpapi: server already started")
	case STARTING:
		return fmt.Errorf("httpapi: server is starting")
	}

	s.status = STARTING

	addr := fmt.Sprintf("%s:%d", s.option.Host, s.option.Port)
	listener, err := net.Listen("tcp4", addr)
	if err != nil {
		s.logError("listen %s: %s", addr, err)
		s.status = CREATED
		s.event <- ERROR
		return err
	}
	s.addr = listener.Addr()

	srv := &http.Server{Addr: s.addr.String(), Handler: s.router}

	defer func() {
		s.logInfo("%s closed", srv.Addr)
		_ = srv.Close()
		for _, hook := range s.shutdownHooks {
			hook()
		}
		s.status = CLOSED
		select {
		case s.event <- CLOSE:
		default:
		}
	}()

	go func() {
		s.status = READY
		s.event <- READY
		if errSrv := srv.Serve(listener); errSrv != nil && errSrv != http.ErrServerClosed {
			s.logError("serve %s: %s", srv.Addr, errSrv)
			s.signal <- ERROR
		}
	}()

	timer := time.NewTimer(s.option.Timeout)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			if s.Ready() {
				continue
			}
			return fmt.Errorf("httpapi: start canceled after timeout %s", s.option.Timeout)

		case sig := <-s.signal:
			switch sig {
			case READY:
				s.logInfo("%s is ready", srv.Addr)
			case CLOSE:
				if err := listener.Close(); err != nil {
					return err
				}
				return srv.Close()
			case ERROR:
				return fmt.Errorf("httpapi: %s failed", srv.Addr)
			default:
				return fmt.Errorf("httpapi: unknown signal %d", sig)
			}
		}
	}
}

// Stop requests a graceful shutdown; it returns immediately, the actual
// close happens on the Start goroutine.
func (s *Server) Stop() error {
	if s.status != READY {
		return fmt.Errorf("httpapi: server is not ready")
	}
	s.signal <- CLOSE
	return nil
}

func (s *Server) logInfo(format string, args ...interface{}) {
	if s.log != nil {
		s.log.Infof("[httpapi] "+format, args...)
	}
}

func (s *Server) logError(format string, args ...interface{}) {
	if s.log != nil {
		s.log.Errorf("[httpapi] "+format, args...)
	}
}
