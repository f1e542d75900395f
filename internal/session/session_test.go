package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesdash/internal/dataset"
)

func TestLRUCache_EvictsOldest(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	_, _ = c.Get("a")
	c.Set("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok, "b was least recently used")
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 2, c.Size())
}

func TestLRUCache_TTL(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRUCache[string](10, time.Minute)
	c.now = func() time.Time { return now }

	c.Set("a", "x")
	c.Set("b", "y")

	now = now.Add(50 * time.Second)
	_, ok := c.Get("a") // refreshes a
	assert.True(t, ok)

	now = now.Add(30 * time.Second)
	assert.Equal(t, 1, c.CleanExpired())
	_, ok = c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Size())
}

func TestManager_ID(t *testing.T) {
	m := NewManager(dataset.NewLoader(nil, 0), Options{}, nil)

	t.Run("issues cookie", func(t *testing.T) {
		rec := httptest.NewRecorder()
		id := m.ID(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		_, err := uuid.Parse(id)
		require.NoError(t, err)
		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, CookieName, cookies[0].Name)
		assert.Equal(t, id, cookies[0].Value)
		assert.True(t, cookies[0].HttpOnly)
	})

	t.Run("reuses valid cookie", func(t *testing.T) {
		existing := uuid.New().String()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: CookieName, Value: existing})
		rec := httptest.NewRecorder()

		assert.Equal(t, existing, m.ID(rec, req))
		assert.Empty(t, rec.Result().Cookies())
	})

	t.Run("replaces garbage cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: CookieName, Value: "../../etc"})
		rec := httptest.NewRecorder()

		assert.NotEqual(t, "../../etc", m.ID(rec, req))
		assert.Len(t, rec.Result().Cookies(), 1)
	})
}

func TestManager_Dataset(t *testing.T) {
	ctx := context.Background()
	m := NewManager(dataset.NewLoader(nil, 0), Options{MaxSessions: 4}, nil)

	ds, fallback, err := m.Dataset(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, fallback)
	assert.Equal(t, dataset.SampleName, ds.Source)

	upload, err := dataset.New("mine.csv", dataset.FormatDelimited, []string{"Region"}, [][]string{{"East"}})
	require.NoError(t, err)
	m.Put("s1", upload)

	got, fallback, err := m.Dataset(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, fallback)
	assert.Same(t, upload, got)
	assert.Equal(t, 1, m.Len())

	other, fallback, err := m.Dataset(ctx, "s2")
	require.NoError(t, err)
	assert.True(t, fallback)
	assert.Same(t, ds, other, "fallback is shared")

	m.Reset("s1")
	_, fallback, err = m.Dataset(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, fallback)
}

func TestManager_FallbackLoadedOnce(t *testing.T) {
	m := NewManager(dataset.NewLoader(nil, 0), Options{}, nil)

	var wg sync.WaitGroup
	results := make([]*dataset.Dataset, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ds, err := m.Fallback(context.Background())
			assert.NoError(t, err)
			results[i] = ds
		}(i)
	}
	wg.Wait()

	first, err := m.Fallback(context.Background())
	require.NoError(t, err)
	for _, ds := range results {
		assert.Same(t, first, ds)
	}
}
