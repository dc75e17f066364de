package repository

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/BurntSushi/toml"

	client "github.com/charadev96/gochan/internal/client/domain"
	shared "github.com/charadev96/gochan/internal/shared/domain"
)

const (
	permPins    = 0600
	permPinsDir = 0700
)

// TOMLPinRepository keeps server pins in a TOML file. The file is read
// again whenever it changed on disk since it was last seen, and is created
// on the first Set.
type TOMLPinRepository struct {
	FilePath string

	mu         sync.Mutex
	data       pinFile
	modifiedAt time.Time
}

type pinEntry struct {
	Address   string           `toml:"address"`
	PublicKey shared.PublicKey `toml:"publicKey"`
	PinnedAt  time.Time        `toml:"pinnedAt"`
}

type pinFile struct {
	Servers map[string]*pinEntry `toml:"servers"`
}

func (e *pinEntry) toDomain(id string) client.ServerPin {
	return client.ServerPin{
		ID:        id,
		Address:   e.Address,
		PublicKey: e.PublicKey.Value(),
		PinnedAt:  e.PinnedAt,
	}
}

func (e *pinEntry) fromDomain(pin client.ServerPin) {
	e.Address = pin.Address
	e.PublicKey = shared.NewPublicKey(pin.PublicKey)
	e.PinnedAt = pin.PinnedAt
}

func (r *TOMLPinRepository) Get(id string) (client.ServerPin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.refresh(); err != nil {
		return client.ServerPin{}, err
	}
	entry, ok := r.data.Servers[id]
	if !ok {
		return client.ServerPin{}, fmt.Errorf("failed to get pin '%s': %w", id, shared.ErrNotExist)
	}
	return entry.toDomain(id), nil
}

func (r *TOMLPinRepository) Set(id string, pin client.ServerPin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.refresh(); err != nil {
		return err
	}
	if r.data.Servers == nil {
		r.data.Servers = make(map[string]*pinEntry)
	}
	entry, ok := r.data.Servers[id]
	if !ok {
		entry = &pinEntry{}
		r.data.Servers[id] = entry
	}
	entry.fromDomain(pin)
	return r.save()
}

func (r *TOMLPinRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.refresh(); err != nil {
		return err
	}
	if _, ok := r.data.Servers[id]; !ok {
		return fmt.Errorf("failed to delete pin '%s': %w", id, shared.ErrNotExist)
	}
	delete(r.data.Servers, id)
	return r.save()
}

func (r *TOMLPinRepository) refresh() error {
	info, err := os.Stat(r.FilePath)
	if errors.Is(err, os.ErrNotExist) {
		r.data = pinFile{}
		r.modifiedAt = time.Time{}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read file timestamp: %w", err)
	}
	if info.ModTime().Equal(r.modifiedAt) {
		return nil
	}

	var data pinFile
	if _, err := toml.DecodeFile(r.FilePath, &data); err != nil {
		return fmt.Errorf("failed to load pins: %w", err)
	}
	r.data = data
	r.modifiedAt = info.ModTime()
	return nil
}

func (r *TOMLPinRepository) save() error {
	if err := os.MkdirAll(filepath.Dir(r.FilePath), permPinsDir); err != nil {
		return fmt.Errorf("failed to create pins directory: %w", err)
	}
	file, err := os.OpenFile(r.FilePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, permPins)
	if err != nil {
		return fmt.Errorf("failed to save pins: %w", err)
	}
	defer file.Close()

	enc := toml.NewEncoder(file)
	enc.Indent = ""
	if err := enc.Encode(r.data); err != nil {
		return fmt.Errorf("failed to encode pins: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to save pins: %w", err)
	}
	if info, err := os.Stat(r.FilePath); err == nil {
		r.modifiedAt = info.ModTime()
	}
	return nil
}
