package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"pchat/config"
	"pchat/model"

	"github.com/google/uuid"
)

const projectPrefix = "project/"

// Options tune a Store.
type Options struct {
	// WriteDelay batches persistence: mutations within the delay are written
	// once. Zero writes synchronously.
	WriteDelay time.Duration
	Now        func() time.Time
}

// Store is the in-memory project collection. Every mutation clones the
// affected project, applies the change and swaps it in by id, so snapshots
// handed out earlier are never modified. Store implements
// engine.ConversationStore.
type Store struct {
	kv   KV
	opts Options

	mu       sync.RWMutex
	projects []model.Project

	subMu    sync.Mutex
	subs     map[int]func(model.Project)
	nextSub  int
	notifyMu sync.Mutex // held from swap to delivery so snapshots arrive in order

	writeMu    sync.Mutex // serializes persistence
	dirtyMu    sync.Mutex
	dirty      map[string]bool
	flushTimer *time.Timer
	lastErr    error
}

// Open loads every project from kv. Documents that fail to decode are skipped.
func Open(kv KV, opts Options) (*Store, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Store{
		kv:    kv,
		opts:  opts,
		subs:  make(map[int]func(model.Project)),
		dirty: make(map[string]bool),
	}

	keys, err := kv.Keys(projectPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	for _, key := range keys {
		data, err := kv.Get(key)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", key, err)
		}
		var p model.Project
		if err := json.Unmarshal(data, &p); err != nil {
			if config.DebugLog != nil {
				config.DebugLog.Printf("[Storage] Skipping corrupted %s: %v", key, err)
			}
			continue
		}
		s.projects = append(s.projects, p)
	}
	sortProjects(s.projects)

	if config.DebugLog != nil {
		config.DebugLog.Printf("[Storage] Loaded %d projects", len(s.projects))
	}
	return s, nil
}

func sortProjects(projects []model.Project) {
	sort.SliceStable(projects, func(i, j int) bool {
		if projects[i].Order != projects[j].Order {
			return projects[i].Order < projects[j].Order
		}
		return strings.ToLower(projects[i].Name) < strings.ToLower(projects[j].Name)
	})
}

// Projects returns deep copies of all projects in display order.
func (s *Store) Projects() []model.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Project, len(s.projects))
	for i, p := range s.projects {
		out[i] = p.Clone()
	}
	return out
}

// Project returns a deep copy of one project.
func (s *Store) Project(id string) (model.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return model.Project{}, fmt.Errorf("project %s not found", id)
	}
	return s.projects[idx].Clone(), nil
}

func (s *Store) indexOf(id string) int {
	for i, p := range s.projects {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// CreateProject adds an empty project after the existing ones.
func (s *Store) CreateProject(name string, settings model.Settings) (model.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Project{}, errors.New("project name cannot be empty")
	}

	s.mu.Lock()
	order := 0
	for _, p := range s.projects {
		if p.Order >= order {
			order = p.Order + 1
		}
	}
	p := model.Project{
		ID:            uuid.New().String(),
		Name:          name,
		Settings:      settings,
		Conversations: []model.Conversation{},
		Order:         order,
	}
	s.projects = append(s.projects, p.Clone())
	s.notifyMu.Lock()
	s.mu.Unlock()

	s.changed(p)
	s.notifyMu.Unlock()
	return p, s.persistErr(p.ID)
}

// DeleteProject removes a project and all of its conversations.
func (s *Store) DeleteProject(id string) error {
	s.mu.Lock()
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("project %s not found", id)
	}
	s.projects = append(s.projects[:idx:idx], s.projects[idx+1:]...)
	s.mu.Unlock()

	return s.persistErr(id)
}

// RenameProject changes a project's display name.
func (s *Store) RenameProject(id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("project name cannot be empty")
	}
	return s.update(id, func(p *model.Project) error {
		p.Name = name
		return nil
	})
}

// UpdateSettings replaces a project's settings. Writing the settings already
// stored is a no-op.
func (s *Store) UpdateSettings(id string, settings model.Settings) error {
	settings.MCPServers = append([]string(nil), settings.MCPServers...)
	err := s.update(id, func(p *model.Project) error {
		if reflect.DeepEqual(p.Settings, settings) {
			return errUnchanged
		}
		p.Settings = settings
		return nil
	})
	if errors.Is(err, errUnchanged) {
		return nil
	}
	return err
}

// CreateConversation adds an empty conversation to a project.
func (s *Store) CreateConversation(projectID, name string) (model.Conversation, error) {
	if strings.TrimSpace(name) == "" {
		name = "New conversation"
	}
	now := s.opts.Now()
	conv := model.Conversation{
		ID:          uuid.New().String(),
		Name:        name,
		Messages:    model.History{},
		CreatedAt:   now,
		LastUpdated: now,
	}
	err := s.update(projectID, func(p *model.Project) error {
		p.Conversations = append(p.Conversations, conv.Clone())
		return nil
	})
	if err != nil {
		return model.Conversation{}, err
	}
	return conv, nil
}

// DeleteConversation removes one conversation.
func (s *Store) DeleteConversation(projectID, conversationID string) error {
	return s.update(projectID, func(p *model.Project) error {
		for i, c := range p.Conversations {
			if c.ID == conversationID {
				p.Conversations = append(p.Conversations[:i:i], p.Conversations[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("conversation %s not found", conversationID)
	})
}

// Conversation returns copies of a project and one of its conversations.
func (s *Store) Conversation(projectID, conversationID string) (model.Project, model.Conversation, error) {
	p, err := s.Project(projectID)
	if err != nil {
		return model.Project{}, model.Conversation{}, err
	}
	c, ok := p.Conversation(conversationID)
	if !ok {
		return model.Project{}, model.Conversation{}, fmt.Errorf("conversation %s not found in project %s", conversationID, projectID)
	}
	return p, c, nil
}

// UpdateMessages replaces a conversation's messages wholesale and bumps
// LastUpdated. Writing the messages already stored is a no-op.
func (s *Store) UpdateMessages(projectID, conversationID string, messages []model.Message) error {
	next := model.History(messages).Clone()
	return s.updateConversation(projectID, conversationID, func(c *model.Conversation) bool {
		if reflect.DeepEqual(c.Messages, next) {
			return false
		}
		c.Messages = next
		return true
	})
}

// Rename changes a conversation's name.
func (s *Store) Rename(projectID, conversationID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("conversation name cannot be empty")
	}
	return s.updateConversation(projectID, conversationID, func(c *model.Conversation) bool {
		if c.Name == name {
			return false
		}
		c.Name = name
		return true
	})
}

var errUnchanged = errors.New("unchanged")

func (s *Store) updateConversation(projectID, conversationID string, fn func(c *model.Conversation) bool) error {
	err := s.update(projectID, func(p *model.Project) error {
		for i := range p.Conversations {
			if p.Conversations[i].ID != conversationID {
				continue
			}
			if !fn(&p.Conversations[i]) {
				return errUnchanged
			}
			p.Conversations[i].LastUpdated = s.opts.Now()
			return nil
		}
		return fmt.Errorf("conversation %s not found in project %s", conversationID, projectID)
	})
	if errors.Is(err, errUnchanged) {
		return nil
	}
	return err
}

// update applies fn to a clone of the project and swaps the clone in.
func (s *Store) update(projectID string, fn func(p *model.Project) error) error {
	s.mu.Lock()
	idx := s.indexOf(projectID)
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("project %s not found", projectID)
	}
	next := s.projects[idx].Clone()
	if err := fn(&next); err != nil {
		s.mu.Unlock()
		return err
	}
	s.projects[idx] = next
	snapshot := next.Clone()
	s.notifyMu.Lock()
	s.mu.Unlock()

	s.changed(snapshot)
	s.notifyMu.Unlock()
	return s.persistErr(projectID)
}

// Subscribe registers fn to receive a snapshot of every changed project, in
// the order the changes were made. fn must not call back into the Store. The
// returned function unregisters it.
func (s *Store) Subscribe(fn func(model.Project)) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) changed(p model.Project) {
	s.subMu.Lock()
	fns := make([]func(model.Project), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(p.Clone())
	}
}

// persistErr writes the project now, or schedules it when writes are delayed.
func (s *Store) persistErr(projectID string) error {
	if s.opts.WriteDelay <= 0 {
		return s.persist(projectID)
	}

	s.dirtyMu.Lock()
	s.dirty[projectID] = true
	if s.flushTimer == nil {
		s.flushTimer = time.AfterFunc(s.opts.WriteDelay, func() {
			if err := s.Flush(); err != nil && config.DebugLog != nil {
				config.DebugLog.Printf("[Storage] Delayed write failed: %v", err)
			}
		})
	}
	s.dirtyMu.Unlock()
	return nil
}

// persist writes the project's current state, or deletes its document when
// the project no longer exists. Reading the state under writeMu keeps the
// newest version last on disk.
func (s *Store) persist(projectID string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	key := projectPrefix + projectID
	p, err := s.Project(projectID)
	if err != nil {
		return s.kv.Delete(key)
	}

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal project: %w", err)
	}
	if err := s.kv.Put(key, data); err != nil {
		return fmt.Errorf("failed to save project %s: %w", projectID, err)
	}
	return nil
}

// Flush writes every project with pending delayed writes.
func (s *Store) Flush() error {
	s.dirtyMu.Lock()
	ids := make([]string, 0, len(s.dirty))
	for id := range s.dirty {
		ids = append(ids, id)
	}
	s.dirty = make(map[string]bool)
	if s.flushTimer != nil {
		s.flushTimer.Stop()
		s.flushTimer = nil
	}
	s.dirtyMu.Unlock()

	var errs []error
	for _, id := range ids {
		if err := s.persist(id); err != nil {
			errs = append(errs, err)
		}
	}
	err := errors.Join(errs...)

	s.dirtyMu.Lock()
	if err != nil {
		s.lastErr = err
	}
	s.dirtyMu.Unlock()
	return err
}

// Err returns the last error from a delayed write.
func (s *Store) Err() error {
	s.dirtyMu.Lock()
	defer s.dirtyMu.Unlock()
	return s.lastErr
}

// Close flushes pending writes and closes the backend.
func (s *Store) Close() error {
	flushErr := s.Flush()
	return errors.Join(flushErr, s.kv.Close())
}
