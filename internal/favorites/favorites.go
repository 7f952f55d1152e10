// Package favorites persists named UPS connection profiles to an INI
// document under the user's configuration directory.
package favorites

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/ini.v1"

	"github.com/tbarrett/upswatch/internal/nut"
)

// dirMode is the required permission set for the favorites directory.
// Earlier installs created it world-readable; Load tightens it before
// touching the file.
const dirMode os.FileMode = 0o700

const fileMode os.FileMode = 0o600

// Profile is a named set of connection parameters for one UPS.
// Password is plaintext in memory and base64 in the document. The encoding
// is reversible, not confidential; it only keeps the file ASCII.
type Profile struct {
	Host     string `json:"host"`
	Port     uint16 `json:"port"`
	UPSName  string `json:"ups_name"`
	Auth     bool   `json:"auth"`
	Login    string `json:"login,omitempty"`
	Password string `json:"-"`
}

// Store loads and saves profiles at a fixed path. Names are unique and
// case-sensitive. All methods are safe for concurrent use.
type Store struct {
	path   string
	logger *zap.Logger

	mu       sync.Mutex
	profiles map[string]Profile
}

// NewStore creates a Store bound to path. Call Load to read the document.
func NewStore(path string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		path:     path,
		logger:   logger,
		profiles: make(map[string]Profile),
	}
}

// Path returns the document path the store is bound to.
func (s *Store) Path() string { return s.path }

// Load reads the favorites document. A missing file yields an empty store.
// Malformed sections are skipped with a diagnostic; an undecodable password
// is dropped but the profile is kept. An existing directory with broader
// than owner-only permissions is corrected before reading.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.profiles = make(map[string]Profile)

	dir := filepath.Dir(s.path)
	if info, err := os.Stat(dir); err == nil {
		// Only permissions beyond owner-only are a problem; a directory
		// narrower than 0700 is left alone.
		if info.Mode().Perm()&^dirMode != 0 {
			if err := os.Chmod(dir, dirMode); err != nil {
				return fmt.Errorf("tighten favorites directory %q: %w", dir, err)
			}
			s.logger.Warn("corrected favorites directory permissions",
				zap.String("dir", dir),
				zap.String("was", info.Mode().Perm().String()),
			)
		}
	}

	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return nil
	}

	doc, err := ini.Load(s.path)
	if err != nil {
		return fmt.Errorf("parse favorites %q: %w", s.path, err)
	}

	for _, sec := range doc.Sections() {
		name := sec.Name()
		if name == ini.DefaultSection {
			continue
		}
		p, ok := s.parseSection(sec)
		if !ok {
			continue
		}
		s.profiles[name] = p
	}
	return nil
}

// parseSection decodes one document section, reporting false when the
// section lacks a mandatory field.
func (s *Store) parseSection(sec *ini.Section) (Profile, bool) {
	if !sec.HasKey("host") || !sec.HasKey("ups") {
		s.logger.Warn("skipping favorite missing host or ups",
			zap.String("section", sec.Name()),
		)
		return Profile{}, false
	}

	p := Profile{
		Host:    sec.Key("host").String(),
		UPSName: sec.Key("ups").String(),
		Port:    nut.DefaultPort,
	}

	if sec.HasKey("port") {
		if port, err := strconv.ParseUint(sec.Key("port").String(), 10, 16); err == nil {
			p.Port = uint16(port)
		} else {
			s.logger.Warn("favorite has unparsable port, using default",
				zap.String("section", sec.Name()),
				zap.String("port", sec.Key("port").String()),
			)
		}
	}

	// Authentication counts only when the section carries all three keys.
	if sec.HasKey("auth") && sec.HasKey("login") && sec.HasKey("password") {
		auth, err := sec.Key("auth").Bool()
		if err != nil || !auth {
			return p, true
		}
		p.Auth = true
		p.Login = sec.Key("login").String()

		raw, err := base64.StdEncoding.DecodeString(sec.Key("password").String())
		if err != nil {
			s.logger.Warn("favorite password is not valid base64, dropping it",
				zap.String("section", sec.Name()),
			)
		} else {
			p.Password = string(raw)
		}
	}

	return p, true
}

// Save writes all profiles back to the document, creating the containing
// directory owner-only if absent. The in-memory set is untouched on failure.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return fmt.Errorf("create favorites directory %q: %w", dir, err)
	}

	doc := ini.Empty()
	for _, name := range s.sortedNames() {
		p := s.profiles[name]
		sec, err := doc.NewSection(name)
		if err != nil {
			return fmt.Errorf("serialize favorite %q: %w", name, err)
		}
		sec.Key("host").SetValue(p.Host)
		sec.Key("port").SetValue(strconv.Itoa(int(p.Port)))
		sec.Key("ups").SetValue(p.UPSName)
		sec.Key("auth").SetValue(strconv.FormatBool(p.Auth))
		if p.Auth {
			sec.Key("login").SetValue(p.Login)
			sec.Key("password").SetValue(base64.StdEncoding.EncodeToString([]byte(p.Password)))
		}
	}

	var buf bytes.Buffer
	if _, err := doc.WriteTo(&buf); err != nil {
		return fmt.Errorf("serialize favorites: %w", err)
	}
	if err := os.WriteFile(s.path, buf.Bytes(), fileMode); err != nil {
		return fmt.Errorf("write favorites %q: %w", s.path, err)
	}
	return nil
}

// Get returns the profile stored under name.
func (s *Store) Get(name string) (Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[name]
	return p, ok
}

// Put adds or replaces a profile. It does not write the document; call Save.
func (s *Store) Put(name string, p Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.Port == 0 {
		p.Port = nut.DefaultPort
	}
	s.profiles[name] = p
}

// Delete removes a profile, reporting whether it existed.
func (s *Store) Delete(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.profiles[name]
	delete(s.profiles, name)
	return ok
}

// Names returns all profile names, sorted for deterministic presentation.
func (s *Store) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedNames()
}

// All returns a copy of every stored profile keyed by name.
func (s *Store) All() map[string]Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Profile, len(s.profiles))
	for name, p := range s.profiles {
		out[name] = p
	}
	return out
}

// Len returns the number of stored profiles.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.profiles)
}

func (s *Store) sortedNames() []string {
	names := make([]string, 0, len(s.profiles))
	for name := range s.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
