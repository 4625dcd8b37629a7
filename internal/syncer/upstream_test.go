package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mrlokans/catalogmirror/internal/config"
	"github.com/mrlokans/catalogmirror/internal/database"
	"github.com/mrlokans/catalogmirror/internal/database/catalog"
	"github.com/mrlokans/catalogmirror/internal/database/jobs"
	"github.com/mrlokans/catalogmirror/internal/pokeapi"
	"github.com/mrlokans/catalogmirror/internal/watchdog"
)

// fakeUpstream serves listings and details for a configurable catalog. Item
// ids run from 1 to the kind's count.
type fakeUpstream struct {
	mu          sync.Mutex
	counts      map[Kind]int
	failDetails map[string]bool // "kind/id"
	failLists   map[Kind]bool
	bodies      map[string]string // "kind/id" -> body override
	requests    map[Kind]int

	server *httptest.Server
}

func newFakeUpstream(t *testing.T, counts map[Kind]int) *fakeUpstream {
	t.Helper()
	f := &fakeUpstream{
		counts:      counts,
		failDetails: map[string]bool{},
		failLists:   map[Kind]bool{},
		bodies:      map[string]string{},
		requests:    map[Kind]int{},
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeUpstream) url(kind Kind, id int) string {
	return fmt.Sprintf("%s/%s/%d/", f.server.URL, kind, id)
}

func (f *fakeUpstream) failDetail(kind Kind, id int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failDetails[fmt.Sprintf("%s/%d", kind, id)] = true
}

func (f *fakeUpstream) setFailList(kind Kind, fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failLists[kind] = fail
}

func (f *fakeUpstream) setBody(kind Kind, id int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bodies[fmt.Sprintf("%s/%d", kind, id)] = body
}

func (f *fakeUpstream) serve(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	kind := Kind(parts[0])

	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests[kind]++

	count, ok := f.counts[kind]
	if !ok {
		http.NotFound(w, r)
		return
	}

	if len(parts) == 1 {
		if f.failLists[kind] {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		list := pokeapi.ResourceList{Count: count}
		for id := offset + 1; id <= min(offset+limit, count); id++ {
			list.Results = append(list.Results, pokeapi.NamedResource{
				Name: fmt.Sprintf("%s-%d", kind, id),
				URL:  f.url(kind, id),
			})
		}
		_ = json.NewEncoder(w).Encode(list)
		return
	}

	id, _ := strconv.Atoi(parts[1])
	key := fmt.Sprintf("%s/%d", kind, id)
	if f.failDetails[key] || id < 1 || id > count {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if body, ok := f.bodies[key]; ok {
		fmt.Fprint(w, body)
		return
	}
	_ = json.NewEncoder(w).Encode(f.defaultBody(kind, id))
}

func (f *fakeUpstream) defaultBody(kind Kind, id int) map[string]any {
	body := map[string]any{"id": id, "name": fmt.Sprintf("%s-%d", kind, id)}
	ref := func(k Kind, refID int) map[string]any {
		return map[string]any{"name": fmt.Sprintf("%s-%d", k, refID), "url": f.url(k, refID)}
	}
	switch kind {
	case KindMove:
		body["type"] = ref(KindType, 1)
		body["power"] = 40
	case KindSpecies:
		body["generation"] = ref(KindGeneration, 1)
		body["color"] = ref(KindColor, 1)
		body["growth_rate"] = ref(KindGrowthRate, 1)
	case KindPokemon:
		body["species"] = ref(KindSpecies, id)
		body["types"] = []map[string]any{{"slot": 1, "type": ref(KindType, 1)}}
		body["abilities"] = []map[string]any{{"slot": 1, "is_hidden": false, "ability": ref(KindAbility, 1)}}
		body["stats"] = []map[string]any{{"base_stat": 45, "effort": 0, "stat": ref(KindStat, 1)}}
	}
	return body
}

// testEnv is a full sync engine on a temporary sqlite database.
type testEnv struct {
	db           *gorm.DB
	jobs         *jobs.Repository
	catalog      *catalog.Repository
	upstream     *fakeUpstream
	processor    *Processor
	orchestrator *Orchestrator
}

func newTestEnv(t *testing.T, counts map[Kind]int) *testEnv {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "sync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	upstream := newFakeUpstream(t, counts)
	client := pokeapi.NewClient(pokeapi.Config{
		BaseURL:        upstream.server.URL,
		Concurrency:    8,
		MaxRetries:     0,
		RetryBaseDelay: 1,
	}, nil)

	jobRepo := jobs.NewRepository(db.DB, nil)
	catalogRepo := catalog.NewRepository(db.DB)
	processor := NewProcessor(jobRepo, client, catalogRepo, nil, nil)
	orchestrator := NewOrchestrator(jobRepo, processor, watchdog.New(jobRepo, config.Watchdog{}, nil), config.Sync{
		ChunkSize:         100,
		CriticalChunkSize: 100,
	})

	return &testEnv{
		db:           db.DB,
		jobs:         jobRepo,
		catalog:      catalogRepo,
		upstream:     upstream,
		processor:    processor,
		orchestrator: orchestrator,
	}
}

func (e *testEnv) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.WithContext(context.Background()).Model(model).Count(&n).Error)
	return n
}
