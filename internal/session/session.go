// Package session owns the live connection to one UPS on a NUT server: it
// drives the protocol client, keeps the current variable and status
// snapshot, and supervises the background poller that refreshes it.
package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tbarrett/upswatch/internal/event"
	"github.com/tbarrett/upswatch/internal/favorites"
	"github.com/tbarrett/upswatch/internal/nut"
	"github.com/tbarrett/upswatch/internal/status"
)

// DefaultPollInterval is the refresh cadence when none is configured.
const DefaultPollInterval = time.Second

// Command is one instant command a device accepts.
type Command struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Device is one entry from a server's device list.
type Device struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

// Session is the single active connection of the process. At most one
// device is attached at a time; Connect fails until Disconnect is called.
//
// The poller goroutine and caller goroutines share the cached snapshot;
// every accessor hands out copies under the state lock, never live maps.
type Session struct {
	dial     nut.Dialer
	bus      *event.Bus
	logger   *zap.Logger
	interval time.Duration

	// lifeMu serializes Connect and Disconnect so teardown can never
	// interleave with setup. It is never held by the poller.
	lifeMu sync.Mutex

	mu        sync.RWMutex
	client    nut.Client
	profile   favorites.Profile
	connected bool
	vars      map[string]string
	rw        map[string]struct{}
	commands  []Command
	status    status.Status
	poller    *poller
}

// New creates a disconnected Session. An interval of zero means
// DefaultPollInterval.
func New(dial nut.Dialer, bus *event.Bus, interval time.Duration, logger *zap.Logger) *Session {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		dial:     dial,
		bus:      bus,
		logger:   logger,
		interval: interval,
	}
}

// Connect dials the server in profile, verifies the named device exists,
// populates the snapshot, and starts the background poller. On any failure
// the session remains fully disconnected.
func (s *Session) Connect(ctx context.Context, profile favorites.Profile) error {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	if s.IsConnected() {
		return ErrAlreadyConnected
	}

	login, password := "", ""
	if profile.Auth {
		login, password = profile.Login, profile.Password
	}
	port := profile.Port
	if port == 0 {
		port = nut.DefaultPort
	}

	client, err := s.dial(ctx, profile.Host, port, login, password)
	if err != nil {
		return fmt.Errorf("connect %s:%d: %w: %w", profile.Host, port, ErrUnreachable, err)
	}

	devices, err := client.ListDevices(ctx)
	if err != nil {
		_ = client.Close()
		return fmt.Errorf("connect %s:%d: %w: %w", profile.Host, port, ErrUnreachable, err)
	}
	if _, ok := devices[profile.UPSName]; !ok {
		_ = client.Close()
		return fmt.Errorf("device %q: %w", profile.UPSName, ErrDeviceNotFound)
	}

	vars, err := client.Variables(ctx, profile.UPSName)
	if err != nil {
		_ = client.Close()
		return fmt.Errorf("fetch variables for %q: %w: %w", profile.UPSName, ErrUnreachable, err)
	}
	rwNames, err := client.WritableVariables(ctx, profile.UPSName)
	if err != nil {
		_ = client.Close()
		return fmt.Errorf("fetch writable variables for %q: %w: %w", profile.UPSName, ErrUnreachable, err)
	}
	cmdMap, err := client.Commands(ctx, profile.UPSName)
	if err != nil {
		_ = client.Close()
		return fmt.Errorf("fetch commands for %q: %w: %w", profile.UPSName, ErrUnreachable, err)
	}

	rw := make(map[string]struct{}, len(rwNames))
	for _, name := range rwNames {
		rw[name] = struct{}{}
	}

	commands := make([]Command, 0, len(cmdMap))
	for name, desc := range cmdMap {
		commands = append(commands, Command{Name: name, Description: desc})
	}
	sort.Slice(commands, func(i, j int) bool { return commands[i].Name < commands[j].Name })

	st := status.Decode(vars[nut.VarUPSStatus], vars)

	s.mu.Lock()
	s.client = client
	s.profile = profile
	s.connected = true
	s.vars = vars
	s.rw = rw
	s.commands = commands
	s.status = st
	s.poller = newPoller(s, profile.UPSName, s.interval, st.Power, s.bus, s.logger)
	p := s.poller
	s.mu.Unlock()

	p.start()

	s.logger.Info("connected to device",
		zap.String("device", profile.UPSName),
		zap.String("host", profile.Host),
		zap.Uint16("port", port),
		zap.Int("variables", len(vars)),
		zap.Int("commands", len(commands)),
	)
	_ = s.bus.Publish(ctx, event.New(event.TopicConnected, "session", ConnectedEvent{
		Device: profile.UPSName,
		Host:   profile.Host,
	}))
	return nil
}

// Disconnect stops the poller, waits for its goroutine to exit, releases
// the protocol client, and clears all cached state. It is idempotent.
func (s *Session) Disconnect(ctx context.Context) error {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return nil
	}
	p := s.poller
	device := s.profile.UPSName
	s.mu.Unlock()

	// The client must stay alive until the poller has observed
	// cancellation; stop blocks until the loop goroutine is gone.
	if p != nil {
		p.stop()
	}

	s.mu.Lock()
	if err := s.client.Close(); err != nil {
		s.logger.Warn("closing protocol client", zap.Error(err))
	}
	s.client = nil
	s.profile = favorites.Profile{}
	s.connected = false
	s.vars = nil
	s.rw = nil
	s.commands = nil
	s.status = status.Status{Power: status.PowerUnknown, Charge: status.ChargeNeither}
	s.poller = nil
	s.mu.Unlock()

	s.logger.Info("disconnected from device", zap.String("device", device))
	_ = s.bus.Publish(ctx, event.New(event.TopicDisconnected, "session", DisconnectedEvent{Device: device}))
	return nil
}

// ListDevices probes a server without touching the active session, for
// pre-connect device discovery. Results are sorted by device ID.
func (s *Session) ListDevices(ctx context.Context, host string, port uint16, login, password string) ([]Device, error) {
	if port == 0 {
		port = nut.DefaultPort
	}
	client, err := s.dial(ctx, host, port, login, password)
	if err != nil {
		return nil, fmt.Errorf("probe %s:%d: %w: %w", host, port, ErrUnreachable, err)
	}
	defer func() { _ = client.Close() }()

	found, err := client.ListDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("probe %s:%d: %w: %w", host, port, ErrUnreachable, err)
	}

	devices := make([]Device, 0, len(found))
	for id, desc := range found {
		devices = append(devices, Device{ID: id, Description: desc})
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].ID < devices[j].ID })
	return devices, nil
}

// RunCommand dispatches a device command by name. The client call runs
// outside the lock, so a concurrent Disconnect can close the connection
// under it; that failure reports ErrNotConnected, not a rejection.
func (s *Session) RunCommand(ctx context.Context, name string) error {
	s.mu.RLock()
	client, device, connected := s.client, s.profile.UPSName, s.connected
	s.mu.RUnlock()

	if !connected {
		return ErrNotConnected
	}
	if err := client.RunCommand(ctx, device, name); err != nil {
		if !s.IsConnected() {
			return fmt.Errorf("command %q on %q: %w", name, device, ErrNotConnected)
		}
		return fmt.Errorf("command %q on %q: %w: %w", name, device, ErrCommandRejected, err)
	}
	s.logger.Info("sent command to device",
		zap.String("device", device),
		zap.String("command", name),
	)
	return nil
}

// SetVariable writes a RW variable. On success the cached value is updated
// immediately so callers see it before the next poll refresh.
func (s *Session) SetVariable(ctx context.Context, name, value string) error {
	s.mu.RLock()
	client, device, connected := s.client, s.profile.UPSName, s.connected
	_, writable := s.rw[name]
	s.mu.RUnlock()

	if !connected {
		return ErrNotConnected
	}
	if !writable {
		return fmt.Errorf("variable %q: %w", name, ErrReadOnlyVariable)
	}
	if err := client.SetVariable(ctx, device, name, value); err != nil {
		// Same unlocked-call race as RunCommand.
		if !s.IsConnected() {
			return fmt.Errorf("variable %q on %q: %w", name, device, ErrNotConnected)
		}
		return fmt.Errorf("variable %q on %q: %w: %w", name, device, ErrVariableRejected, err)
	}

	s.mu.Lock()
	if s.connected {
		s.vars[name] = value
		s.status = status.Decode(s.vars[nut.VarUPSStatus], s.vars)
	}
	s.mu.Unlock()

	s.logger.Info("updated device variable",
		zap.String("device", device),
		zap.String("variable", name),
	)
	return nil
}

// Refresh performs one full variable fetch, recomputes the status snapshot,
// and returns the fresh variable map. It is used both by explicit caller
// refreshes and by every poll tick.
func (s *Session) Refresh(ctx context.Context) (map[string]string, error) {
	s.mu.RLock()
	client, device, connected := s.client, s.profile.UPSName, s.connected
	s.mu.RUnlock()

	if !connected {
		return nil, ErrNotConnected
	}

	vars, err := client.Variables(ctx, device)
	if err != nil {
		return nil, fmt.Errorf("refresh variables for %q: %w", device, err)
	}
	st := status.Decode(vars[nut.VarUPSStatus], vars)

	s.mu.Lock()
	if s.connected {
		s.vars = vars
		s.status = st
	}
	s.mu.Unlock()

	return copyVars(vars), nil
}

// IsConnected reports whether a device is currently attached.
func (s *Session) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// Device returns the attached device ID, empty when disconnected.
func (s *Session) Device() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile.UPSName
}

// Status returns the most recent decoded snapshot.
func (s *Session) Status() status.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Variables returns a copy of the cached variable map.
func (s *Session) Variables() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyVars(s.vars)
}

// WritableVariables returns the sorted names the server permits writing.
func (s *Session) WritableVariables() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.rw))
	for name := range s.rw {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Commands returns the device's commands, sorted by name.
func (s *Session) Commands() []Command {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Command, len(s.commands))
	copy(out, s.commands)
	return out
}

func copyVars(vars map[string]string) map[string]string {
	out := make(map[string]string, len(vars))
	for k, v := range vars {
		out[k] = v
	}
	return out
}
