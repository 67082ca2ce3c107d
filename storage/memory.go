package storage

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/storyreel/backend/models"
)

// MemoryPrimaryStore is an in-process PrimaryStore used by tests and by
// local development without postgres. FailUpsert/FailDelete inject
// failures for exercising the engine's compensation paths.
type MemoryPrimaryStore struct {
	mu        sync.Mutex
	projects  map[string]models.Project
	stories   map[string]models.Story
	scenarios map[string]models.Scenario
	prompts   map[string]models.Prompt
	videos    map[string]models.VideoGeneration

	FailUpsert func(item Item) error
	FailDelete func(kind EntityKind, id string) error

	UpsertCalls int
	ListCalls   int
}

// NewMemoryPrimaryStore creates an empty in-memory primary store.
func NewMemoryPrimaryStore() *MemoryPrimaryStore {
	return &MemoryPrimaryStore{
		projects:  make(map[string]models.Project),
		stories:   make(map[string]models.Story),
		scenarios: make(map[string]models.Scenario),
		prompts:   make(map[string]models.Prompt),
		videos:    make(map[string]models.VideoGeneration),
	}
}

func (s *MemoryPrimaryStore) Upsert(ctx context.Context, item Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.UpsertCalls++

	if s.FailUpsert != nil {
		if err := s.FailUpsert(item); err != nil {
			return err
		}
	}

	switch item.Kind {
	case KindStory:
		s.stories[item.Story.ID] = *item.Story
	case KindScenario:
		s.scenarios[item.Scenario.ID] = *item.Scenario
	case KindPrompt:
		s.prompts[item.Prompt.ID] = *item.Prompt
	case KindVideo:
		s.videos[item.Video.ID] = *item.Video
	case KindProject:
		s.projects[item.Project.ID] = *item.Project
	}
	return nil
}

func (s *MemoryPrimaryStore) Delete(ctx context.Context, kind EntityKind, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailDelete != nil {
		if err := s.FailDelete(kind, id); err != nil {
			return err
		}
	}

	switch kind {
	case KindStory:
		delete(s.stories, id)
	case KindScenario:
		delete(s.scenarios, id)
	case KindPrompt:
		delete(s.prompts, id)
	case KindVideo:
		delete(s.videos, id)
	case KindProject:
		delete(s.projects, id)
	}
	return nil
}

func (s *MemoryPrimaryStore) FindProject(ctx context.Context, id string) (*models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (s *MemoryPrimaryStore) FindStory(ctx context.Context, id string) (*models.Story, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.stories[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &v, nil
}

func (s *MemoryPrimaryStore) FindScenario(ctx context.Context, id string) (*models.Scenario, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.scenarios[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &v, nil
}

func (s *MemoryPrimaryStore) FindPrompt(ctx context.Context, id string) (*models.Prompt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.prompts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &v, nil
}

func (s *MemoryPrimaryStore) FindVideo(ctx context.Context, id string) (*models.VideoGeneration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.videos[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &v, nil
}

func (s *MemoryPrimaryStore) ListProjects(ctx context.Context, q ProjectQuery) ([]models.Project, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ListCalls++

	var matched []models.Project
	for _, p := range s.projects {
		if p.UserID != q.UserID {
			continue
		}
		if q.Status != "" && string(p.Status) != q.Status {
			continue
		}
		if q.Search != "" {
			term := strings.ToLower(q.Search)
			if !strings.Contains(strings.ToLower(p.Title), term) &&
				!strings.Contains(strings.ToLower(p.Description), term) {
				continue
			}
		}
		matched = append(matched, p)
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		var less bool
		switch q.SortBy {
		case "title":
			less = a.Title < b.Title
		case "created_at":
			less = a.CreatedAt.Before(b.CreatedAt)
		default:
			less = a.UpdatedAt.Before(b.UpdatedAt)
		}
		if strings.ToLower(q.SortOrder) == "asc" {
			return less
		}
		return !less
	})

	total := int64(len(matched))
	start := (q.Page - 1) * q.Limit
	if start > len(matched) {
		start = len(matched)
	}
	end := start + q.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (s *MemoryPrimaryStore) CountProjectsByTitle(ctx context.Context, userID, title string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, p := range s.projects {
		if p.UserID == userID && p.Title == title {
			count++
		}
	}
	return count, nil
}

func (s *MemoryPrimaryStore) TouchLastAccessed(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return ErrNotFound
	}
	p.LastAccessedAt = &at
	s.projects[id] = p
	return nil
}

// MemorySecondaryStore is an in-process SecondaryStore used by tests and
// mock environments. FailUpsert injects per-collection failures.
type MemorySecondaryStore struct {
	mu   sync.Mutex
	data map[string]map[string]interface{} // collection -> id -> doc

	Disabled    bool
	Incomplete  bool
	FailUpsert  func(collection string) error
	UpsertCalls int
}

// NewMemorySecondaryStore creates an empty in-memory secondary store.
func NewMemorySecondaryStore() *MemorySecondaryStore {
	return &MemorySecondaryStore{data: make(map[string]map[string]interface{})}
}

func (s *MemorySecondaryStore) Enabled() bool {
	return !s.Disabled
}

func (s *MemorySecondaryStore) Configured() bool {
	return !s.Disabled && !s.Incomplete
}

func (s *MemorySecondaryStore) Upsert(ctx context.Context, collection, id string, doc interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.UpsertCalls++

	if s.FailUpsert != nil {
		if err := s.FailUpsert(collection); err != nil {
			return err
		}
	}

	if s.data[collection] == nil {
		s.data[collection] = make(map[string]interface{})
	}
	s.data[collection][id] = doc
	return nil
}

func (s *MemorySecondaryStore) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data[collection] != nil {
		delete(s.data[collection], id)
	}
	return nil
}

func (s *MemorySecondaryStore) Get(ctx context.Context, collection, id string, dest interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs, ok := s.data[collection]
	if !ok {
		return ErrNotFound
	}
	doc, ok := docs[id]
	if !ok {
		return ErrNotFound
	}

	// Round-trip through JSON so dest gets an independent typed copy.
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

// Doc returns the raw stored document, for test assertions.
func (s *MemorySecondaryStore) Doc(collection, id string) (interface{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs, ok := s.data[collection]
	if !ok {
		return nil, false
	}
	doc, ok := docs[id]
	return doc, ok
}
