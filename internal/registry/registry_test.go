package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestAddSetDefaultRemoveLeavesEmptyRegistry(t *testing.T) {
	req := require.New(t)
	r := New()

	req.NoError(r.Add(Entry{Label: "A", ID: 100, AccessHash: 7, Kind: KindPublic, Username: "alice"}))
	req.NoError(r.SetDefault("A"))
	req.NoError(r.Remove("A"))

	req.Equal(0, r.Len())
	req.Empty(r.DefaultLabel())
	_, ok := r.Default()
	req.False(ok)
}

func TestRemoveNonDefaultKeepsDefault(t *testing.T) {
	req := require.New(t)
	r := New()
	req.NoError(r.Add(Entry{Label: "a", ID: 1}))
	req.NoError(r.Add(Entry{Label: "b", ID: 2}))
	req.NoError(r.SetDefault("a"))

	req.NoError(r.Remove("b"))
	req.Equal("a", r.DefaultLabel())
}

func TestErrors(t *testing.T) {
	req := require.New(t)
	r := New()
	req.NoError(r.Add(Entry{Label: "a", ID: 1}))

	req.ErrorIs(r.Add(Entry{Label: "a", ID: 2}), ErrDuplicateLabel)
	req.ErrorIs(r.Add(Entry{Label: "  "}), ErrInvalidLabel)
	req.ErrorIs(r.Remove("missing"), ErrNotFound)
	req.ErrorIs(r.SetDefault("missing"), ErrNotFound)

	e, ok := r.Lookup("a")
	req.True(ok)
	req.Equal(int64(1), e.ID, "duplicate add must not overwrite")
}

func TestDefaultAlwaysNamesLiveEntry(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	labels := []string{"a", "b", "c", "d"}

	for run := 0; run < 50; run++ {
		r := New()
		for step := 0; step < 40; step++ {
			label := labels[rng.Intn(len(labels))]
			switch rng.Intn(3) {
			case 0:
				_ = r.Add(Entry{Label: label, ID: int64(step)})
			case 1:
				_ = r.Remove(label)
			case 2:
				_ = r.SetDefault(label)
			}

			if def := r.DefaultLabel(); def != "" {
				_, ok := r.Lookup(def)
				require.True(t, ok, "run %d step %d: default %q points at nothing", run, step, def)
			}
		}
	}
}

func TestJSONKeepsOrderAndLegacyLayout(t *testing.T) {
	req := require.New(t)

	raw := `{"channels":{"zeta":{"id":3,"hash":30},"alpha":{"id":1,"hash":10,"username":"alpha_ch"}},"default":"alpha"}`
	var r Registry
	req.NoError(json.Unmarshal([]byte(raw), &r))

	req.Equal([]string{"zeta", "alpha"}, r.Labels())
	req.Equal("alpha", r.DefaultLabel())
	a, _ := r.Lookup("alpha")
	req.Equal(KindPublic, a.Kind)
	z, _ := r.Lookup("zeta")
	req.Equal(KindPrivate, z.Kind)
	req.Equal(int64(30), z.AccessHash)

	out, err := json.Marshal(&r)
	req.NoError(err)
	var again Registry
	req.NoError(json.Unmarshal(out, &again))
	req.Equal(r.Entries(), again.Entries())
	req.Equal("alpha", again.DefaultLabel())
}

func TestJSONDropsDanglingDefault(t *testing.T) {
	var r Registry
	require.NoError(t, json.Unmarshal([]byte(`{"channels":{},"default":"gone"}`), &r))
	require.Empty(t, r.DefaultLabel())

	out, err := json.Marshal(&r)
	require.NoError(t, err)
	require.JSONEq(t, `{"channels":{},"default":null}`, string(out))
}

func TestLabelsMatchAfterTrimming(t *testing.T) {
	req := require.New(t)
	r := New()

	req.NoError(r.Add(Entry{Label: " news ", ID: 1, AccessHash: 1, Kind: KindPrivate}))
	req.Equal([]string{"news"}, r.Labels())
	req.ErrorIs(r.Add(Entry{Label: "news", ID: 2, AccessHash: 2, Kind: KindPrivate}), ErrDuplicateLabel)

	e, ok := r.Lookup(" news")
	req.True(ok)
	req.Equal(int64(1), e.ID)

	req.NoError(r.SetDefault("news "))
	req.Equal("news", r.DefaultLabel())

	req.NoError(r.Remove("\tnews"))
	req.Zero(r.Len())
	req.Empty(r.DefaultLabel())
}

func TestJSONTrimsLabels(t *testing.T) {
	var r Registry
	doc := `{"channels":{" news ":{"id":1,"hash":2}},"default":"news "}`
	require.NoError(t, json.Unmarshal([]byte(doc), &r))
	require.Equal(t, []string{"news"}, r.Labels())
	require.Equal(t, "news", r.DefaultLabel())
}

func newTestService() *Service {
	logger := zerolog.Nop()
	return NewService(NewMemoryStorage(), &logger)
}

func TestServiceConcurrentAddsAreNotLost(t *testing.T) {
	req := require.New(t)
	svc := newTestService()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = svc.Add(ctx, Entry{Label: fmt.Sprintf("ch%d", i), ID: int64(i)})
		}(i)
	}
	wg.Wait()

	snap, err := svc.Snapshot(ctx)
	req.NoError(err)
	req.Equal(20, snap.Len())
}

type failingStorage struct {
	*MemoryStorage
	saveErr error
}

func (f failingStorage) Save(context.Context, *Registry) error { return f.saveErr }

func TestServiceSurfacesSaveErrors(t *testing.T) {
	logger := zerolog.Nop()
	boom := errors.New("disk full")
	svc := NewService(failingStorage{MemoryStorage: NewMemoryStorage(), saveErr: boom}, &logger)

	err := svc.Add(context.Background(), Entry{Label: "a", ID: 1})
	require.ErrorIs(t, err, boom)

	_, ok, err := svc.Default(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestServiceDefault(t *testing.T) {
	req := require.New(t)
	svc := newTestService()
	ctx := context.Background()

	req.NoError(svc.Add(ctx, Entry{Label: "main", ID: 9, AccessHash: 90}))
	req.NoError(svc.SetDefault(ctx, "main"))

	e, ok, err := svc.Default(ctx)
	req.NoError(err)
	req.True(ok)
	req.Equal(int64(9), e.Ref().ID)

	req.NoError(svc.Remove(ctx, "main"))
	_, ok, err = svc.Default(ctx)
	req.NoError(err)
	req.False(ok)
}
