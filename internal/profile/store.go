// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package profile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"

	apperrors "airplan/cli/internal/errors"
	"airplan/cli/internal/xdg"
)

// FileName is the profile file name inside the config directory.
const FileName = "profiles.toml"

// SecretStore keeps profile passwords outside the profile file.
// LoadProfilePassword returns "" and a nil error when nothing is stored.
type SecretStore interface {
	LoadProfilePassword(name string) (string, error)
	SaveProfilePassword(name, password string) error
	DeleteProfilePassword(name string) error
}

// record is the on-disk shape of one [[profile]] table.
type record struct {
	Name     string `toml:"name"`
	Driver   string `toml:"driver,omitempty"`
	Host     string `toml:"host"`
	Port     int    `toml:"port,omitempty"`
	User     string `toml:"user,omitempty"`
	Password string `toml:"password,omitempty"`
	TLS      string `toml:"tls,omitempty"`
	Timeout  int    `toml:"timeout,omitempty"` // seconds
	Default  bool   `toml:"default,omitempty"`
	Order    int    `toml:"order"`
}

type document struct {
	Profiles []record `toml:"profile"`
}

// Store is the TOML-backed profile list. Passwords live in the SecretStore
// unless the file carries them inline.
type Store struct {
	path    string
	secrets SecretStore
	mu      sync.Mutex
}

// DefaultPath returns profiles.toml inside the XDG config dir.
func DefaultPath() (string, error) {
	dir, err := xdg.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// NewStore returns a store over path. secrets may be nil, in which case
// passwords are written inline.
func NewStore(path string, secrets SecretStore) *Store {
	return &Store{path: path, secrets: secrets}
}

// Path returns the backing file.
func (s *Store) Path() string { return s.path }

// Profiles loads the ordered list with passwords resolved to plaintext.
// It implements Source; the file is read on every call.
func (s *Store) Profiles(ctx context.Context) ([]Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ps, err := s.List()
	if err != nil {
		return nil, err
	}
	for i := range ps {
		if ps[i].Password != "" || s.secrets == nil {
			continue
		}
		pw, err := s.secrets.LoadProfilePassword(ps[i].Name)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ProfileStore, fmt.Sprintf("load password for %q", ps[i].Name), err)
		}
		ps[i].Password = pw
	}
	return ps, nil
}

// List loads the ordered list without consulting the SecretStore.
func (s *Store) List() ([]Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	ps := make([]Profile, 0, len(doc.Profiles))
	for _, r := range doc.Profiles {
		p := fromRecord(r)
		if err := p.Validate(); err != nil {
			return nil, apperrors.Wrap(apperrors.ProfileStore, s.path, err)
		}
		ps = append(ps, p.WithDefaults())
	}
	Sort(ps)
	return ps, nil
}

// Put adds p or replaces the profile with the same name. When p is marked
// default every other profile loses the flag.
func (s *Store) Put(p Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return err
	}

	r := toRecord(p)
	if s.secrets != nil && p.Password != "" {
		if err := s.secrets.SaveProfilePassword(p.Name, p.Password); err != nil {
			return apperrors.Wrap(apperrors.ProfileStore, fmt.Sprintf("save password for %q", p.Name), err)
		}
		r.Password = ""
	}

	replaced := false
	for i := range doc.Profiles {
		if p.Default {
			doc.Profiles[i].Default = false
		}
		if strings.EqualFold(doc.Profiles[i].Name, p.Name) {
			doc.Profiles[i] = r
			replaced = true
		}
	}
	if !replaced {
		doc.Profiles = append(doc.Profiles, r)
	}
	return s.write(doc)
}

// Remove deletes the named profile and its stored password.
func (s *Store) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return err
	}
	kept := doc.Profiles[:0]
	found := false
	for _, r := range doc.Profiles {
		if strings.EqualFold(r.Name, name) {
			found = true
			continue
		}
		kept = append(kept, r)
	}
	if !found {
		return fmt.Errorf("profile %q not found", name)
	}
	doc.Profiles = kept
	if err := s.write(doc); err != nil {
		return err
	}
	if s.secrets != nil {
		_ = s.secrets.DeleteProfilePassword(name)
	}
	return nil
}

// SetDefault flags the named profile as default and clears the flag elsewhere.
func (s *Store) SetDefault(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return err
	}
	found := false
	for i := range doc.Profiles {
		match := strings.EqualFold(doc.Profiles[i].Name, name)
		doc.Profiles[i].Default = match
		found = found || match
	}
	if !found {
		return fmt.Errorf("profile %q not found", name)
	}
	return s.write(doc)
}

func (s *Store) read() (document, error) {
	var doc document
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return doc, nil
		}
		return doc, apperrors.Wrap(apperrors.ProfileStore, "read "+s.path, err)
	}
	if _, err := toml.Decode(string(data), &doc); err != nil {
		return doc, apperrors.Wrap(apperrors.ProfileStore, "parse "+s.path, err)
	}
	return doc, nil
}

// write replaces the file atomically so a crash never leaves half a profile list.
func (s *Store) write(doc document) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".profiles-*.toml")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := toml.NewEncoder(tmp).Encode(doc); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

func fromRecord(r record) Profile {
	return Profile{
		Name:     strings.TrimSpace(r.Name),
		Driver:   Driver(strings.ToLower(strings.TrimSpace(r.Driver))),
		Host:     strings.TrimSpace(r.Host),
		Port:     r.Port,
		User:     strings.TrimSpace(r.User),
		Password: r.Password,
		TLSMode:  TLSMode(strings.ToLower(strings.TrimSpace(r.TLS))),
		Timeout:  time.Duration(r.Timeout) * time.Second,
		Default:  r.Default,
		Order:    r.Order,
	}
}

func toRecord(p Profile) record {
	return record{
		Name:     p.Name,
		Driver:   string(p.Driver),
		Host:     p.Host,
		Port:     p.Port,
		User:     p.User,
		Password: p.Password,
		TLS:      string(p.TLSMode),
		Timeout:  int(p.Timeout / time.Second),
		Default:  p.Default,
		Order:    p.Order,
	}
}
