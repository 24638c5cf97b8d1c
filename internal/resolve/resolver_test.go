package resolve

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"screenscape/discoveryservice/internal/domain"
)

type fakeSearcher struct {
	mu      sync.Mutex
	calls   []string
	results map[string][]domain.Entity
	fail    map[string]error
}

func newFakeSearcher() *fakeSearcher {
	return &fakeSearcher{
		results: make(map[string][]domain.Entity),
		fail:    make(map[string]error),
	}
}

func (f *fakeSearcher) SearchEntities(_ context.Context, kind domain.EntityKind, query string) ([]domain.Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := string(kind) + ":" + query
	f.calls = append(f.calls, key)
	if err := f.fail[key]; err != nil {
		return nil, err
	}
	return f.results[key], nil
}

func (f *fakeSearcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestAliasNormalizeIsIdempotent(t *testing.T) {
	aliases := NewAliasTable(nil)
	if got := aliases.Normalize("Marvel"); got != "marvel studios" {
		t.Fatalf("Normalize(Marvel) = %q", got)
	}
	if got := aliases.Normalize("marvel studios"); got != "marvel studios" {
		t.Fatalf("Normalize(marvel studios) = %q", got)
	}
	for key, canonical := range defaultCompanyAliases {
		once := aliases.Normalize(key)
		if once != canonical {
			t.Fatalf("Normalize(%q) = %q, want %q", key, once, canonical)
		}
		if twice := aliases.Normalize(once); twice != once {
			t.Fatalf("Normalize not idempotent for %q: %q then %q", key, once, twice)
		}
	}
}

func TestAliasNormalizeKeepsUnknownInput(t *testing.T) {
	aliases := NewAliasTable(map[string]string{"  Hammer ": "Hammer Film Productions"})
	if got := aliases.Normalize("  Neon "); got != "Neon" {
		t.Fatalf("expected unknown company unchanged, got %q", got)
	}
	if got := aliases.Normalize("HAMMER"); got != "hammer film productions" {
		t.Fatalf("expected extra alias, got %q", got)
	}
}

func TestAliasedCompanyNamesShareCacheEntry(t *testing.T) {
	searcher := newFakeSearcher()
	searcher.results["company:marvel studios"] = []domain.Entity{{ID: 420, Name: "Marvel Studios"}}
	resolver := NewResolver(searcher)

	first, ok := resolver.Resolve(context.Background(), "Marvel", domain.EntityCompany)
	if !ok || first != 420 {
		t.Fatalf("Resolve(Marvel) = %d, %v", first, ok)
	}
	second, ok := resolver.Resolve(context.Background(), "Marvel Studios", domain.EntityCompany)
	if !ok || second != 420 {
		t.Fatalf("Resolve(Marvel Studios) = %d, %v", second, ok)
	}
	if searcher.callCount() != 1 {
		t.Fatalf("expected one catalog call, got %v", searcher.calls)
	}
}

func TestResolvePreservesFullName(t *testing.T) {
	searcher := newFakeSearcher()
	searcher.results["person:Robert Downey Jr."] = []domain.Entity{{ID: 3223}}
	resolver := NewResolver(searcher)

	if id, ok := resolver.Resolve(context.Background(), "Robert Downey Jr.", domain.EntityPerson); !ok || id != 3223 {
		t.Fatalf("unexpected result %d %v", id, ok)
	}
	if !reflect.DeepEqual(searcher.calls, []string{"person:Robert Downey Jr."}) {
		t.Fatalf("expected full name in lookup, got %v", searcher.calls)
	}
}

func TestResolveCachesSuccessOnly(t *testing.T) {
	searcher := newFakeSearcher()
	searcher.results["person:Chris Evans"] = []domain.Entity{{ID: 16828}, {ID: 1}}
	resolver := NewResolver(searcher)

	for _, name := range []string{"Chris Evans", "chris  evans", "CHRIS EVANS"} {
		id, ok := resolver.Resolve(context.Background(), name, domain.EntityPerson)
		if !ok || id != 16828 {
			t.Fatalf("Resolve(%q) = %d, %v", name, id, ok)
		}
	}
	if searcher.callCount() != 1 {
		t.Fatalf("expected a single catalog call, got %v", searcher.calls)
	}

	for i := 0; i < 2; i++ {
		if _, ok := resolver.Resolve(context.Background(), "Nobody Atall", domain.EntityPerson); ok {
			t.Fatal("expected miss")
		}
	}
	if searcher.callCount() != 3 {
		t.Fatalf("misses must not be cached, calls=%v", searcher.calls)
	}
}

func TestResolveFailureIsNotCached(t *testing.T) {
	searcher := newFakeSearcher()
	searcher.fail["person:Zendaya"] = errors.New("catalog request failed: 503")
	resolver := NewResolver(searcher)

	if _, ok := resolver.Resolve(context.Background(), "Zendaya", domain.EntityPerson); ok {
		t.Fatal("expected failure to resolve as miss")
	}
	delete(searcher.fail, "person:Zendaya")
	searcher.results["person:Zendaya"] = []domain.Entity{{ID: 505710}}

	id, ok := resolver.Resolve(context.Background(), "Zendaya", domain.EntityPerson)
	if !ok || id != 505710 {
		t.Fatalf("expected retry after failure, got %d %v", id, ok)
	}
}

func TestResolveSeparatesKinds(t *testing.T) {
	searcher := newFakeSearcher()
	searcher.results["person:A24"] = []domain.Entity{{ID: 1}}
	searcher.results["company:A24"] = []domain.Entity{{ID: 41077}}
	resolver := NewResolver(searcher)

	person, _ := resolver.Resolve(context.Background(), "A24", domain.EntityPerson)
	company, _ := resolver.Resolve(context.Background(), "A24", domain.EntityCompany)
	if person != 1 || company != 41077 {
		t.Fatalf("expected kind-scoped cache, got person=%d company=%d", person, company)
	}
}

func TestResolveAllKeepsOrderAndSurvivesFailures(t *testing.T) {
	searcher := newFakeSearcher()
	searcher.results["person:Chris Evans"] = []domain.Entity{{ID: 16828}}
	searcher.results["person:Scarlett Johansson"] = []domain.Entity{{ID: 1245}}
	searcher.results["person:Chris  Evans"] = []domain.Entity{{ID: 16828}}
	searcher.fail["person:Broken Name"] = errors.New("boom")
	resolver := NewResolver(searcher, WithMaxConcurrency(2))

	ids := resolver.ResolveAll(context.Background(), []string{
		"Chris Evans",
		"Broken Name",
		"Unknown Person",
		"Scarlett Johansson",
	}, domain.EntityPerson)
	if !reflect.DeepEqual(ids, []int64{16828, 1245}) {
		t.Fatalf("unexpected ids %v", ids)
	}
}

func TestResolveAllCollapsesDuplicates(t *testing.T) {
	searcher := newFakeSearcher()
	searcher.results["person:Tom Holland"] = []domain.Entity{{ID: 1136406}}
	resolver := NewResolver(searcher)

	ids := resolver.ResolveAll(context.Background(), []string{"Tom Holland", "Tom Holland"}, domain.EntityPerson)
	if !reflect.DeepEqual(ids, []int64{1136406}) {
		t.Fatalf("unexpected ids %v", ids)
	}
}

func TestResolveAllEmpty(t *testing.T) {
	resolver := NewResolver(newFakeSearcher())
	if ids := resolver.ResolveAll(context.Background(), nil, domain.EntityKeyword); ids != nil {
		t.Fatalf("expected nil, got %v", ids)
	}
}

func TestCacheEntriesExpire(t *testing.T) {
	current := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	searcher := newFakeSearcher()
	searcher.results["keyword:heist"] = []domain.Entity{{ID: 10051}}
	resolver := NewResolver(searcher, WithCacheTTL(time.Hour), WithClock(func() time.Time { return current }))

	resolver.Resolve(context.Background(), "heist", domain.EntityKeyword)
	current = current.Add(30 * time.Minute)
	resolver.Resolve(context.Background(), "heist", domain.EntityKeyword)
	if searcher.callCount() != 1 {
		t.Fatalf("expected fresh entry to be served from cache, calls=%v", searcher.calls)
	}
	current = current.Add(31 * time.Minute)
	resolver.Resolve(context.Background(), "heist", domain.EntityKeyword)
	if searcher.callCount() != 2 {
		t.Fatalf("expected expired entry to be refetched, calls=%v", searcher.calls)
	}
}

func TestCacheIsBounded(t *testing.T) {
	current := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	searcher := newFakeSearcher()
	for i := 0; i < 10; i++ {
		searcher.results[fmt.Sprintf("keyword:k%d", i)] = []domain.Entity{{ID: int64(i + 1)}}
	}
	resolver := NewResolver(searcher, WithCacheMaxEntries(4), WithClock(func() time.Time { return current }))

	for i := 0; i < 10; i++ {
		current = current.Add(time.Second)
		resolver.Resolve(context.Background(), fmt.Sprintf("k%d", i), domain.EntityKeyword)
	}
	if got := resolver.cache.len(); got != 4 {
		t.Fatalf("expected cache bounded to 4, got %d", got)
	}

	before := searcher.callCount()
	resolver.Resolve(context.Background(), "k9", domain.EntityKeyword)
	resolver.Resolve(context.Background(), "k0", domain.EntityKeyword)
	if searcher.callCount() != before+1 {
		t.Fatalf("expected newest kept and oldest evicted, calls=%v", searcher.calls[before:])
	}
}
