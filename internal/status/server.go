// Package status serves the bot's metrics and a read-only view of its
// connections and channel state over HTTP.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/dalnet/ircbot/internal/irc"
)

// Source lists the connections to report on. *irc.Bot implements it.
type Source interface {
	Connections() []*irc.Connection
	Connection(name string) *irc.Connection
}

// ServerStatus is one entry of the /servers listing.
type ServerStatus struct {
	Name      string     `json:"name"`
	Address   string     `json:"address"`
	Nick      string     `json:"nick"`
	Connected bool       `json:"connected"`
	Session   string     `json:"session,omitempty"`
	LastSent  *time.Time `json:"last_sent,omitempty"`
	Channels  int        `json:"channels"`
}

// ChannelStatus is one entry of the /servers/{name}/channels listing.
type ChannelStatus struct {
	Name    string       `json:"name"`
	Members []irc.Member `json:"members"`
}

// Server is the status HTTP server.
type Server struct {
	src    Source
	router *mux.Router
	http   *http.Server
	log    *logrus.Entry
}

// New creates a status server listening on addr.
func New(addr string, src Source, log *logrus.Entry) *Server {
	s := &Server{
		src:    src,
		router: mux.NewRouter(),
		log:    log,
	}

	s.router.Handle("/metrics", promhttp.HandlerFor(irc.Registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})).Methods(http.MethodGet)
	s.router.HandleFunc("/servers", s.handleServers).Methods(http.MethodGet)
	s.router.HandleFunc("/servers/{name}/channels", s.handleChannels).Methods(http.MethodGet)

	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves in a goroutine until Shutdown.
func (s *Server) Start() {
	go func() {
		s.log.Infof("status server listening on %s", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Errorf("status server failed: %v", err)
		}
	}()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleServers(w http.ResponseWriter, r *http.Request) {
	conns := s.src.Connections()
	result := make([]ServerStatus, 0, len(conns))

	for _, c := range conns {
		st := ServerStatus{
			Name:      c.Name,
			Address:   c.Config().Address(),
			Nick:      c.Nick(),
			Connected: c.Connected(),
			Session:   c.Session(),
			Channels:  c.State().Len(),
		}
		if t := c.LastSent(); !t.IsZero() {
			st.LastSent = &t
		}
		result = append(result, st)
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleChannels(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	c := s.src.Connection(name)
	if c == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown server " + name})
		return
	}

	channels := c.State().Channels()
	result := make([]ChannelStatus, 0, len(channels))
	for _, ch := range channels {
		result = append(result, ChannelStatus{Name: ch.Name, Members: ch.Members()})
	}

	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
