// Package adaxtest provides a fake ADAX API server for testing.
package adaxtest

import (
	"encoding/json"
	"net/http"
	"slices"
	"strconv"
	"sync"

	"github.com/clambin/adax-bridge/internal/adax"
)

// Server emulates the ADAX API: it issues tokens, serves the rooms' state and applies control requests.
type Server struct {
	ClientID  string
	Secret    string
	ExpiresIn int
	// Frozen makes the server accept control requests without applying them.
	Frozen bool

	rooms    []adax.Room
	token    string
	tokens   int
	calls    []string
	throttle map[string]int
	bodies   map[string][]byte
	lock     sync.Mutex
}

func New(clientID, secret string, rooms ...adax.Room) *Server {
	return &Server{
		ClientID:  clientID,
		Secret:    secret,
		ExpiresIn: 3600,
		rooms:     slices.Clone(rooms),
		throttle:  make(map[string]int),
		bodies:    make(map[string][]byte),
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.calls = append(s.calls, r.Method+" "+r.URL.Path)

	if remaining := s.throttle[r.URL.Path]; remaining > 0 {
		s.throttle[r.URL.Path] = remaining - 1
		http.Error(w, "slow down", http.StatusTooManyRequests)
		return
	}

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/auth/token":
		s.handleToken(w, r)
	case r.Method == http.MethodGet && r.URL.Path == "/rest/v1/content":
		if s.authorized(w, r) {
			s.handleContent(w)
		}
	case r.Method == http.MethodPost && r.URL.Path == "/rest/v1/control":
		if s.authorized(w, r) {
			s.handleControl(w, r)
		}
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if r.PostForm.Get("grant_type") != "password" ||
		r.PostForm.Get("username") != s.ClientID ||
		r.PostForm.Get("password") != s.Secret {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	s.tokens++
	s.token = "token_" + strconv.Itoa(s.tokens)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token":  s.token,
		"refresh_token": "refresh_" + strconv.Itoa(s.tokens),
		"expires_in":    s.ExpiresIn,
	})
}

func (s *Server) authorized(w http.ResponseWriter, r *http.Request) bool {
	if s.token == "" || r.Header.Get("Authorization") != "Bearer "+s.token {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return false
	}
	return true
}

func (s *Server) handleContent(w http.ResponseWriter) {
	if body, ok := s.bodies["/rest/v1/content"]; ok {
		_, _ = w.Write(body)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(adax.Home{Rooms: s.rooms})
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Rooms []adax.RoomUpdate `json:"rooms"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.bodies["/rest/v1/control"], _ = json.Marshal(request)
	if !s.Frozen {
		for _, update := range request.Rooms {
			if i := slices.IndexFunc(s.rooms, func(room adax.Room) bool { return room.ID == update.ID }); i >= 0 {
				s.rooms[i] = update.Apply(s.rooms[i])
			}
		}
	}
	_, _ = w.Write([]byte("OK"))
}

// Throttle makes the server reject the next count calls to path with HTTP 429.
func (s *Server) Throttle(path string, count int) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.throttle[path] = count
}

// SetBody makes the server return body for path instead of a regular response.
func (s *Server) SetBody(path string, body []byte) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.bodies[path] = body
}

// LastBody returns the last request body received for path.
func (s *Server) LastBody(path string) []byte {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.bodies[path]
}

// Calls returns all calls received, as "<method> <path>".
func (s *Server) Calls() []string {
	s.lock.Lock()
	defer s.lock.Unlock()
	return slices.Clone(s.calls)
}

// ResetCalls clears the recorded calls.
func (s *Server) ResetCalls() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.calls = nil
}

// SetRooms replaces the state of all rooms.
func (s *Server) SetRooms(rooms ...adax.Room) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.rooms = slices.Clone(rooms)
}

// Rooms returns the state of all rooms.
func (s *Server) Rooms() []adax.Room {
	s.lock.Lock()
	defer s.lock.Unlock()
	return slices.Clone(s.rooms)
}

// RevokeToken invalidates the token issued to the client.
func (s *Server) RevokeToken() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.token = ""
}
