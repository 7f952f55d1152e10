package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/tbarrett/upswatch/internal/favorites"
	"github.com/tbarrett/upswatch/internal/nut"
	"github.com/tbarrett/upswatch/internal/status"
)

// sessionState is the GET /session response body.
type sessionState struct {
	Connected bool           `json:"connected"`
	Device    string         `json:"device,omitempty"`
	Status    *status.Status `json:"status,omitempty"`
}

func (s *Server) handleSessionState(w http.ResponseWriter, r *http.Request) {
	state := sessionState{Connected: s.session.IsConnected()}
	if state.Connected {
		state.Device = s.session.Device()
		st := s.session.Status()
		state.Status = &st
	}
	s.writeJSON(w, http.StatusOK, state)
}

// connectRequest names either a stored favorite or inline connection
// parameters. A favorite wins when both are present.
type connectRequest struct {
	Favorite string `json:"favorite,omitempty"`

	Host     string `json:"host,omitempty"`
	Port     uint16 `json:"port,omitempty"`
	UPSName  string `json:"ups,omitempty"`
	Login    string `json:"login,omitempty"`
	Password string `json:"password,omitempty"`
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid JSON body: "+err.Error(), r.URL.Path)
		return
	}

	var profile favorites.Profile
	switch {
	case req.Favorite != "":
		p, ok := s.favorites.Get(req.Favorite)
		if !ok {
			NotFound(w, fmt.Sprintf("favorite %q not found", req.Favorite), r.URL.Path)
			return
		}
		profile = p
	case req.Host != "" && req.UPSName != "":
		profile = favorites.Profile{
			Host:     req.Host,
			Port:     req.Port,
			UPSName:  req.UPSName,
			Auth:     req.Login != "",
			Login:    req.Login,
			Password: req.Password,
		}
		if profile.Port == 0 {
			profile.Port = nut.DefaultPort
		}
	default:
		BadRequest(w, "either favorite or host and ups are required", r.URL.Path)
		return
	}

	if err := s.session.Connect(r.Context(), profile); err != nil {
		writeSessionError(w, err, r.URL.Path)
		return
	}

	st := s.session.Status()
	s.writeJSON(w, http.StatusOK, sessionState{
		Connected: true,
		Device:    s.session.Device(),
		Status:    &st,
	})
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Disconnect(r.Context()); err != nil {
		writeSessionError(w, err, r.URL.Path)
		return
	}
	s.writeJSON(w, http.StatusOK, sessionState{Connected: false})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	vars, err := s.session.Refresh(r.Context())
	if err != nil {
		writeSessionError(w, err, r.URL.Path)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"variables": vars,
		"status":    s.session.Status(),
	})
}

func (s *Server) handleVariables(w http.ResponseWriter, r *http.Request) {
	if !s.session.IsConnected() {
		Conflict(w, "no device connected", r.URL.Path)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"variables": s.session.Variables(),
		"writable":  s.session.WritableVariables(),
	})
}

func (s *Server) handleSetVariable(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var req struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid JSON body: "+err.Error(), r.URL.Path)
		return
	}

	if err := s.session.SetVariable(r.Context(), name, req.Value); err != nil {
		writeSessionError(w, err, r.URL.Path)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"name": name, "value": req.Value})
}

func (s *Server) handleCommands(w http.ResponseWriter, r *http.Request) {
	if !s.session.IsConnected() {
		Conflict(w, "no device connected", r.URL.Path)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"commands": s.session.Commands()})
}

func (s *Server) handleRunCommand(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := s.session.RunCommand(r.Context(), name); err != nil {
		writeSessionError(w, err, r.URL.Path)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"command": name, "result": "ok"})
}

func (s *Server) handleProbe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Host     string `json:"host"`
		Port     uint16 `json:"port,omitempty"`
		Login    string `json:"login,omitempty"`
		Password string `json:"password,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid JSON body: "+err.Error(), r.URL.Path)
		return
	}
	if req.Host == "" {
		BadRequest(w, "host is required", r.URL.Path)
		return
	}

	devices, err := s.session.ListDevices(r.Context(), req.Host, req.Port, req.Login, req.Password)
	if err != nil {
		writeSessionError(w, err, r.URL.Path)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"devices": devices})
}

// favoriteResponse is a Profile without the password.
type favoriteResponse struct {
	Name    string `json:"name"`
	Host    string `json:"host"`
	Port    uint16 `json:"port"`
	UPSName string `json:"ups"`
	Auth    bool   `json:"auth"`
	Login   string `json:"login,omitempty"`
}

func toFavoriteResponse(name string, p favorites.Profile) favoriteResponse {
	return favoriteResponse{
		Name:    name,
		Host:    p.Host,
		Port:    p.Port,
		UPSName: p.UPSName,
		Auth:    p.Auth,
		Login:   p.Login,
	}
}

func (s *Server) handleFavoritesList(w http.ResponseWriter, r *http.Request) {
	all := s.favorites.All()
	out := make([]favoriteResponse, 0, len(all))
	for _, name := range s.favorites.Names() {
		out = append(out, toFavoriteResponse(name, all[name]))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"favorites": out})
}

func (s *Server) handleFavoriteGet(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	p, ok := s.favorites.Get(name)
	if !ok {
		NotFound(w, fmt.Sprintf("favorite %q not found", name), r.URL.Path)
		return
	}
	s.writeJSON(w, http.StatusOK, toFavoriteResponse(name, p))
}

func (s *Server) handleFavoritePut(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var req struct {
		Host     string `json:"host"`
		Port     uint16 `json:"port,omitempty"`
		UPSName  string `json:"ups"`
		Auth     bool   `json:"auth,omitempty"`
		Login    string `json:"login,omitempty"`
		Password string `json:"password,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid JSON body: "+err.Error(), r.URL.Path)
		return
	}
	if req.Host == "" || req.UPSName == "" {
		BadRequest(w, "host and ups are required", r.URL.Path)
		return
	}

	s.favorites.Put(name, favorites.Profile{
		Host:     req.Host,
		Port:     req.Port,
		UPSName:  req.UPSName,
		Auth:     req.Auth,
		Login:    req.Login,
		Password: req.Password,
	})
	if err := s.favorites.Save(); err != nil {
		InternalError(w, "save favorites: "+err.Error(), r.URL.Path)
		return
	}

	p, _ := s.favorites.Get(name)
	s.writeJSON(w, http.StatusOK, toFavoriteResponse(name, p))
}

func (s *Server) handleFavoriteDelete(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if !s.favorites.Delete(name) {
		NotFound(w, fmt.Sprintf("favorite %q not found", name), r.URL.Path)
		return
	}
	if err := s.favorites.Save(); err != nil {
		InternalError(w, "save favorites: "+err.Error(), r.URL.Path)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHistorySamples(w http.ResponseWriter, r *http.Request) {
	device, limit, ok := s.historyQuery(w, r)
	if !ok {
		return
	}
	samples, err := s.history.ListSamples(r.Context(), device, limit)
	if err != nil {
		InternalError(w, "list samples: "+err.Error(), r.URL.Path)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"samples": samples})
}

func (s *Server) handleHistoryTransitions(w http.ResponseWriter, r *http.Request) {
	device, limit, ok := s.historyQuery(w, r)
	if !ok {
		return
	}
	transitions, err := s.history.ListTransitions(r.Context(), device, limit)
	if err != nil {
		InternalError(w, "list transitions: "+err.Error(), r.URL.Path)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"transitions": transitions})
}

func (s *Server) historyQuery(w http.ResponseWriter, r *http.Request) (device string, limit int, ok bool) {
	device = r.URL.Query().Get("device")
	if device == "" {
		BadRequest(w, "device query parameter is required", r.URL.Path)
		return "", 0, false
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			BadRequest(w, "limit must be a positive integer", r.URL.Path)
			return "", 0, false
		}
		limit = n
	}
	return device, limit, true
}
