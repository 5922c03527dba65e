package cart

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newLoaded(t *testing.T, kv KV) *Service {
	t.Helper()
	s := NewService(kv, "", zap.NewNop())
	require.NoError(t, s.Load(context.Background()))
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func item(id, restaurant, price string, extras ...Extra) LineItem {
	return LineItem{ID: id, Name: id, RestaurantID: restaurant, UnitPrice: dec(price), Extras: extras}
}

func TestService_MutationsBeforeLoad(t *testing.T) {
	s := NewService(NewMemoryKV(), "", zap.NewNop())
	defer s.Close(context.Background())

	assert.ErrorIs(t, s.Add(item("a", "r1", "10"), 1), ErrNotLoaded)
	_, err := s.Remove("a", nil)
	assert.ErrorIs(t, err, ErrNotLoaded)
	assert.ErrorIs(t, s.Clear(), ErrNotLoaded)
	assert.ErrorIs(t, s.ConfirmReplace(), ErrNotLoaded)
}

func TestService_AddTwiceRemoveTwice(t *testing.T) {
	s := newLoaded(t, NewMemoryKV())

	require.NoError(t, s.Add(item("a", "r1", "10"), 1))
	require.NoError(t, s.Add(item("a", "r1", "10"), 1))
	assert.True(t, s.Total().Equal(dec("20.00")))
	assert.Len(t, s.Items(), 1)
	assert.Equal(t, 2, s.Count())

	ok, err := s.Remove("a", nil)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = s.Remove("a", nil)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Empty(t, s.Items())
	assert.True(t, s.Total().IsZero())
	assert.Equal(t, "", s.RestaurantID())
}

func TestService_RemoveMissIsNoop(t *testing.T) {
	s := newLoaded(t, NewMemoryKV())
	require.NoError(t, s.Add(item("a", "r1", "10"), 2))

	ok, err := s.Remove("zzz", nil)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 2, s.Count())
}

func TestService_ExtrasMakeDistinctLines(t *testing.T) {
	s := newLoaded(t, NewMemoryKV())
	cheese := Extra{ID: 1, Name: "queso", AdditionalPrice: dec("1.50")}
	bacon := Extra{ID: 2, Name: "tocineta", AdditionalPrice: dec("2")}

	require.NoError(t, s.Add(item("burger", "r1", "5"), 1))
	require.NoError(t, s.Add(item("burger", "r1", "5", cheese), 1))
	require.NoError(t, s.Add(item("burger", "r1", "5", bacon, cheese), 1))
	require.NoError(t, s.Add(item("burger", "r1", "5", cheese, bacon), 1))

	items := s.Items()
	require.Len(t, items, 3)
	assert.Equal(t, 2, items[2].Quantity)

	// 5 + 6.5 + 2*8.5
	assert.True(t, s.Total().Equal(dec("28.5")), "total = %s", s.Total())

	ok, err := s.Remove("burger", []int{2, 1})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, s.Items()[2].Quantity)
}

func TestService_DiscountPrecedence(t *testing.T) {
	s := newLoaded(t, NewMemoryKV())
	it := item("a", "r1", "10")
	it.DiscountedPrice = decPtr("7.5")

	require.NoError(t, s.Add(it, 2))
	assert.True(t, s.Total().Equal(dec("15")))
}

func TestService_CrossRestaurantReplace(t *testing.T) {
	s := newLoaded(t, NewMemoryKV())
	require.NoError(t, s.Add(item("a", "r1", "10"), 3))

	err := s.Add(item("b", "r2", "4"), 2)
	require.ErrorIs(t, err, ErrReplaceRequired)

	// cart untouched until confirmed
	assert.Equal(t, "r1", s.RestaurantID())
	assert.Equal(t, 3, s.Count())
	pending, ok := s.PendingReplacement()
	require.True(t, ok)
	assert.Equal(t, "b", pending.ID)

	require.NoError(t, s.ConfirmReplace())
	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "b", items[0].ID)
	assert.Equal(t, 2, items[0].Quantity)
	assert.Equal(t, "r2", s.RestaurantID())

	assert.ErrorIs(t, s.ConfirmReplace(), ErrNoPendingReplace)
}

func TestService_CancelReplaceKeepsCart(t *testing.T) {
	s := newLoaded(t, NewMemoryKV())
	require.NoError(t, s.Add(item("a", "r1", "10"), 1))
	require.ErrorIs(t, s.Add(item("b", "r2", "4"), 1), ErrReplaceRequired)

	assert.True(t, s.CancelReplace())
	assert.False(t, s.CancelReplace())
	assert.Equal(t, "r1", s.RestaurantID())
	_, ok := s.PendingReplacement()
	assert.False(t, ok)
}

func TestService_CartChangeDropsParkedReplacement(t *testing.T) {
	s := newLoaded(t, NewMemoryKV())
	require.NoError(t, s.Add(item("a", "r1", "10"), 1))
	require.ErrorIs(t, s.Add(item("b", "r2", "4"), 1), ErrReplaceRequired)

	removed, err := s.Remove("a", nil)
	require.NoError(t, err)
	require.True(t, removed)
	_, ok := s.PendingReplacement()
	assert.False(t, ok)

	require.NoError(t, s.Add(item("c", "r3", "6"), 1))
	assert.ErrorIs(t, s.ConfirmReplace(), ErrNoPendingReplace)
	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "c", items[0].ID)
	assert.Equal(t, "r3", s.RestaurantID())

	require.ErrorIs(t, s.Add(item("b", "r2", "4"), 1), ErrReplaceRequired)
	require.NoError(t, s.Add(item("c", "r3", "6"), 1))
	_, ok = s.PendingReplacement()
	assert.False(t, ok)
	assert.Equal(t, 2, s.Count())
}

func TestService_RejectsBadInput(t *testing.T) {
	s := newLoaded(t, NewMemoryKV())

	assert.ErrorIs(t, s.Add(item("a", "r1", "10"), 0), ErrInvalidQuantity)
	assert.ErrorIs(t, s.Add(item("a", "r1", "10"), -2), ErrInvalidQuantity)

	bad := item("a", "r1", "10")
	bad.DiscountedPrice = decPtr("11")
	assert.ErrorIs(t, s.Add(bad, 1), ErrInvalidItem)
	assert.Empty(t, s.Items())
}

func TestService_SingleRestaurantInvariant(t *testing.T) {
	s := newLoaded(t, NewMemoryKV())
	adds := []LineItem{
		item("a", "r1", "1"),
		item("b", "r2", "1"),
		item("c", "r1", "1"),
		item("d", "r3", "1"),
	}
	for _, it := range adds {
		err := s.Add(it, 1)
		if err != nil && !errors.Is(err, ErrReplaceRequired) {
			t.Fatalf("Add(%s): %v", it.ID, err)
		}
		restaurants := map[string]bool{}
		for _, line := range s.Items() {
			restaurants[line.RestaurantID] = true
			assert.GreaterOrEqual(t, line.Quantity, 1)
		}
		assert.LessOrEqual(t, len(restaurants), 1)
	}
}

func TestService_PersistsAndReloads(t *testing.T) {
	kv := NewMemoryKV()
	s := newLoaded(t, kv)
	ctx := context.Background()

	require.NoError(t, s.Add(item("a", "r1", "3.25"), 2))
	require.NoError(t, s.Flush(ctx))

	raw, ok, err := kv.Get(ctx, DefaultKey)
	require.NoError(t, err)
	require.True(t, ok)
	var stored []LineItem
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	require.Len(t, stored, 1)

	reloaded := newLoaded(t, kv)
	require.Len(t, reloaded.Items(), 1)
	assert.Equal(t, "a", reloaded.Items()[0].ID)
	assert.Equal(t, 2, reloaded.Count())
	assert.True(t, reloaded.Total().Equal(dec("6.5")))
}

func TestService_ClearErasesBlob(t *testing.T) {
	kv := NewMemoryKV()
	s := newLoaded(t, kv)
	ctx := context.Background()

	require.NoError(t, s.Add(item("a", "r1", "3"), 1))
	require.NoError(t, s.Clear())
	require.NoError(t, s.Flush(ctx))

	_, ok, err := kv.Get(ctx, DefaultKey)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, s.Items())
}

func TestService_LoadMalformedBlobYieldsEmpty(t *testing.T) {
	kv := NewMemoryKV()
	require.NoError(t, kv.Set(context.Background(), DefaultKey, "{not json"))

	s := newLoaded(t, kv)
	assert.Empty(t, s.Items())
	require.NoError(t, s.Add(item("a", "r1", "1"), 1))
}

type failingKV struct {
	MemoryKV
	getErr error
}

func (f *failingKV) Get(ctx context.Context, key string) (string, bool, error) {
	if f.getErr != nil {
		return "", false, f.getErr
	}
	return f.MemoryKV.Get(ctx, key)
}

func TestService_LoadErrorKeepsUnloaded(t *testing.T) {
	kv := &failingKV{MemoryKV: MemoryKV{data: map[string]string{}}, getErr: errors.New("disk gone")}
	s := NewService(kv, "", zap.NewNop())
	defer s.Close(context.Background())

	require.Error(t, s.Load(context.Background()))
	assert.False(t, s.Loaded())
	assert.ErrorIs(t, s.Add(item("a", "r1", "1"), 1), ErrNotLoaded)
}

func TestService_ConcurrentAddsLastWriteWins(t *testing.T) {
	kv := NewMemoryKV()
	s := newLoaded(t, kv)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Add(item("a", "r1", "1"), 1)
		}()
	}
	wg.Wait()
	require.NoError(t, s.Flush(ctx))

	raw, ok, err := kv.Get(ctx, DefaultKey)
	require.NoError(t, err)
	require.True(t, ok)
	var stored []LineItem
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	require.Len(t, stored, 1)
	assert.Equal(t, 50, stored[0].Quantity)
}
