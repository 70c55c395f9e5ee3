package config

import (
	"fmt"
	"sync"
)

// Registry maps GitHub repos and Discord channels to their voting
// configuration. It is built once at startup from the loaded config file and
// replaced wholesale on reload; lookups return copies, never shared pointers.
type Registry struct {
	mu        sync.RWMutex
	byRepo    map[string]ChannelConfig
	byChannel map[int64]ChannelConfig
}

// NewRegistry builds a registry from the given channel configs. Entries with
// missing fields are backfilled from Default. Duplicate repos or channel IDs
// are an error: a repo must resolve to exactly one voting channel.
func NewRegistry(channels []ChannelConfig) (*Registry, error) {
	r := &Registry{}
	if err := r.Reload(channels); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload replaces the registry contents atomically.
func (r *Registry) Reload(channels []ChannelConfig) error {
	byRepo := make(map[string]ChannelConfig, len(channels))
	byChannel := make(map[int64]ChannelConfig, len(channels))
	for _, cfg := range channels {
		cfg = cfg.applyDefaults()
		if cfg.Repo == "" {
			return fmt.Errorf("channel config for channel %d has no repo", cfg.ChannelID)
		}
		if cfg.ChannelID == 0 {
			return fmt.Errorf("channel config for repo %s has no channel_id", cfg.Repo)
		}
		if _, ok := byRepo[cfg.Repo]; ok {
			return fmt.Errorf("duplicate channel config for repo %s", cfg.Repo)
		}
		if _, ok := byChannel[cfg.ChannelID]; ok {
			return fmt.Errorf("duplicate channel config for channel %d", cfg.ChannelID)
		}
		byRepo[cfg.Repo] = cfg
		byChannel[cfg.ChannelID] = cfg
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.byRepo = byRepo
	r.byChannel = byChannel
	return nil
}

// ByRepo looks up the config handling the given "owner/name" repo.
func (r *Registry) ByRepo(fullName string) (ChannelConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.byRepo[fullName]
	return cfg, ok
}

// ByChannel looks up the config for the given Discord channel ID.
func (r *Registry) ByChannel(id int64) (ChannelConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.byChannel[id]
	return cfg, ok
}

// Repos returns the registered repo names.
func (r *Registry) Repos() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	repos := make([]string, 0, len(r.byRepo))
	for repo := range r.byRepo {
		repos = append(repos, repo)
	}
	return repos
}
