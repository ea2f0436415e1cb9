package progress

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/kalambet/careerpath/internal/roadmap"
)

// --- Mock blob store ---

type mockBlobs struct {
	mu      sync.Mutex
	data    map[string][]byte
	getErr  error
	putErr  error
	delErr  error
	puts    int
	deletes int
}

func newMockBlobs() *mockBlobs {
	return &mockBlobs{data: make(map[string][]byte)}
}

func (m *mockBlobs) GetCompletion(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *mockBlobs) PutCompletion(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if m.putErr != nil {
		return m.putErr
	}
	m.data[key] = data
	return nil
}

func (m *mockBlobs) DeleteCompletion(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	if m.delErr != nil {
		return m.delErr
	}
	delete(m.data, key)
	return nil
}

var ctx = context.Background()

var skillA = roadmap.SkillKey{PhaseID: "core", Skill: "Data modeling"}

func TestStore_LoadEmpty(t *testing.T) {
	s := NewStore(NewMemoryRepository())
	m := s.Load(ctx, "k")
	if m == nil || len(m) != 0 {
		t.Errorf("Load on fresh key = %v, want empty non-nil map", m)
	}
}

func TestStore_TogglePersists(t *testing.T) {
	blobs := newMockBlobs()
	s := NewStore(NewBlobRepository(blobs))

	m := s.Toggle(ctx, "k", skillA)
	if !m.Done(skillA) {
		t.Fatal("skill should be done after first toggle")
	}

	// A fresh store over the same backend sees the persisted map.
	reloaded := NewStore(NewBlobRepository(blobs)).Load(ctx, "k")
	if !reloaded.Done(skillA) {
		t.Error("toggle was not persisted")
	}
}

func TestStore_ToggleRoundTrip(t *testing.T) {
	s := NewStore(NewMemoryRepository())
	s.Toggle(ctx, "k", skillA)
	m := s.Toggle(ctx, "k", skillA)
	if m.Done(skillA) {
		t.Error("toggling twice should restore not-done")
	}
}

func TestStore_ReturnedMapIsACopy(t *testing.T) {
	s := NewStore(NewMemoryRepository())
	m := s.Toggle(ctx, "k", skillA)
	m[skillA] = false

	if !s.Load(ctx, "k").Done(skillA) {
		t.Error("mutating the returned map changed the store")
	}
}

func TestStore_MalformedDataLoadsEmpty(t *testing.T) {
	blobs := newMockBlobs()
	blobs.data["k"] = []byte("{not json")
	s := NewStore(NewBlobRepository(blobs))

	m := s.Load(ctx, "k")
	if len(m) != 0 {
		t.Errorf("Load of malformed data = %v, want empty", m)
	}

	// The store stays usable after the fallback.
	if !s.Toggle(ctx, "k", skillA).Done(skillA) {
		t.Error("toggle after malformed load failed")
	}
}

func TestStore_WriteFailuresKeepMemoryState(t *testing.T) {
	blobs := newMockBlobs()
	blobs.putErr = errors.New("quota exceeded")
	blobs.delErr = errors.New("connection refused")
	s := NewStore(NewBlobRepository(blobs))

	m := s.Toggle(ctx, "k", skillA)
	if !m.Done(skillA) {
		t.Error("in-memory map should update even when persisting fails")
	}
	if blobs.puts != 1 {
		t.Errorf("puts = %d, want 1", blobs.puts)
	}
	if !s.Load(ctx, "k").Done(skillA) {
		t.Error("in-memory state lost after failed persist")
	}

	s.Reset(ctx, "k")
	if len(s.Load(ctx, "k")) != 0 {
		t.Error("reset should clear the in-memory map even when delete fails")
	}
}

// flakyRepo fails the first failLoads calls to Load.
type flakyRepo struct {
	*MemoryRepository
	failLoads int
}

func (r *flakyRepo) Load(ctx context.Context, key string) (CompletionMap, error) {
	if r.failLoads > 0 {
		r.failLoads--
		return nil, errors.New("i/o timeout")
	}
	return r.MemoryRepository.Load(ctx, key)
}

func TestStore_ReadFailureDoesNotOverwriteStoredData(t *testing.T) {
	skillB := roadmap.SkillKey{PhaseID: "core", Skill: "Auth & sessions"}
	repo := &flakyRepo{MemoryRepository: NewMemoryRepository(), failLoads: 1}
	repo.Save(ctx, "k", CompletionMap{skillA: true})
	s := NewStore(repo)

	if m := s.Load(ctx, "k"); len(m) != 0 {
		t.Fatalf("Load during outage = %v, want empty", m)
	}

	m := s.Toggle(ctx, "k", skillB)
	if !m.Done(skillA) || !m.Done(skillB) {
		t.Errorf("Toggle after outage = %v, want both skills done", m)
	}
	persisted, _ := repo.MemoryRepository.Load(ctx, "k")
	if !persisted.Done(skillA) || !persisted.Done(skillB) {
		t.Errorf("persisted = %v, want both skills done", persisted)
	}
}

func TestStore_ToggleDuringOutageIsNotSaved(t *testing.T) {
	repo := &flakyRepo{MemoryRepository: NewMemoryRepository(), failLoads: 1}
	repo.Save(ctx, "k", CompletionMap{skillA: true})
	s := NewStore(repo)

	s.Toggle(ctx, "k", roadmap.SkillKey{PhaseID: "core", Skill: "Auth & sessions"})

	persisted, _ := repo.MemoryRepository.Load(ctx, "k")
	if len(persisted) != 1 || !persisted.Done(skillA) {
		t.Errorf("persisted = %v, want the original map untouched", persisted)
	}
	if !s.Load(ctx, "k").Done(skillA) {
		t.Error("Load after outage should re-read the stored map")
	}
}

func TestBlobRepository_MalformedIsMarked(t *testing.T) {
	blobs := newMockBlobs()
	blobs.data["k"] = []byte("{not json")

	_, err := NewBlobRepository(blobs).Load(ctx, "k")
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("Load error = %v, want ErrMalformed", err)
	}

	blobs.getErr = errors.New("connection refused")
	_, err = NewBlobRepository(blobs).Load(ctx, "k")
	if err == nil || errors.Is(err, ErrMalformed) {
		t.Errorf("Load error = %v, want a read error that is not ErrMalformed", err)
	}
}

func TestStore_Reset(t *testing.T) {
	blobs := newMockBlobs()
	s := NewStore(NewBlobRepository(blobs))
	s.Toggle(ctx, "k", skillA)

	s.Reset(ctx, "k")

	if len(s.Load(ctx, "k")) != 0 {
		t.Error("in-memory map not cleared")
	}
	if _, ok := blobs.data["k"]; ok {
		t.Error("persisted entry not removed")
	}
	if blobs.deletes != 1 {
		t.Errorf("deletes = %d, want 1", blobs.deletes)
	}
}

func TestStore_KeysAreIndependent(t *testing.T) {
	s := NewStore(NewMemoryRepository())
	s.Toggle(ctx, "a", skillA)
	if s.Load(ctx, "b").Done(skillA) {
		t.Error("toggle on key a leaked into key b")
	}
	s.Reset(ctx, "b")
	if !s.Load(ctx, "a").Done(skillA) {
		t.Error("reset of key b cleared key a")
	}
}

func TestStore_Mark(t *testing.T) {
	blobs := newMockBlobs()
	s := NewStore(NewBlobRepository(blobs))

	s.Mark(ctx, "k", skillA, true)
	s.Mark(ctx, "k", skillA, true)
	if blobs.puts != 1 {
		t.Errorf("puts = %d, want 1 (second mark is a no-op)", blobs.puts)
	}
	if s.Mark(ctx, "k", skillA, false).Done(skillA) {
		t.Error("mark false did not clear the flag")
	}
}

func TestStore_ConcurrentTogglesDoNotLoseUpdates(t *testing.T) {
	repo := NewMemoryRepository()
	s := NewStore(repo)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Toggle(ctx, "k", roadmap.SkillKey{PhaseID: "core", Skill: fmt.Sprintf("skill-%d", i)})
		}(i)
	}
	wg.Wait()

	if got := len(s.Load(ctx, "k")); got != n {
		t.Errorf("in-memory entries = %d, want %d", got, n)
	}
	persisted, _ := repo.Load(ctx, "k")
	if len(persisted) != n {
		t.Errorf("persisted entries = %d, want %d", len(persisted), n)
	}
}
