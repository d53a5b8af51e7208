package cogito_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/m-mizutani/cogito"
	"github.com/m-mizutani/cogito/mock"
	"github.com/m-mizutani/gt"
)

func newAction(name string, final bool) cogito.Action {
	return cogito.NewAction(cogito.ActionSpec{Name: name, Description: name + " action", Final: final},
		func(ctx context.Context, actx *cogito.ActionContext) (map[string]any, error) {
			return map[string]any{"action": name}, nil
		})
}

func TestRegistryRegister(t *testing.T) {
	reg, err := cogito.NewRegistry(newAction("search", false), newAction("respond", true))
	gt.NoError(t, err)

	err = reg.Register(newAction("search", false))
	gt.True(t, errors.Is(err, cogito.ErrActionNameConflict))

	err = reg.Register(newAction("", false))
	gt.True(t, errors.Is(err, cogito.ErrInvalidAction))

	_, err = cogito.NewRegistry(newAction("a", false), newAction("a", false))
	gt.True(t, errors.Is(err, cogito.ErrActionNameConflict))
}

func TestRegistryLookupAndEnabled(t *testing.T) {
	reg, err := cogito.NewRegistry(newAction("search", false), newAction("fetch", false), newAction("respond", true))
	gt.NoError(t, err)

	specs := reg.Enabled()
	gt.A(t, specs).Length(3)
	gt.Equal(t, specs[0].Name, "fetch")
	gt.Equal(t, specs[2].Name, "search")

	gt.NoError(t, reg.SetEnabled("fetch", false))
	gt.A(t, reg.Enabled()).Length(2)

	action, enabled, found := reg.Lookup("fetch")
	gt.True(t, found)
	gt.False(t, enabled)
	gt.Equal(t, action.Spec().Name, "fetch")

	_, _, found = reg.Lookup("missing")
	gt.False(t, found)

	gt.True(t, errors.Is(reg.SetEnabled("missing", true), cogito.ErrUnknownAction))
}

func TestRegistryUpsert(t *testing.T) {
	reg, err := cogito.NewRegistry(newAction("search", false))
	gt.NoError(t, err)
	gt.NoError(t, reg.SetEnabled("search", false))

	replacement := cogito.NewAction(cogito.ActionSpec{Name: "search", Description: "v2"},
		func(ctx context.Context, actx *cogito.ActionContext) (map[string]any, error) {
			return nil, nil
		})
	gt.NoError(t, reg.Upsert(replacement))
	gt.NoError(t, reg.Upsert(newAction("fetch", false)))

	action, enabled, found := reg.Lookup("search")
	gt.True(t, found)
	gt.False(t, enabled)
	gt.Equal(t, action.Spec().Description, "v2")
	gt.A(t, reg.Names()).Length(2)
}

func TestRegistryRemove(t *testing.T) {
	reg, err := cogito.NewRegistry(newAction("search", false))
	gt.NoError(t, err)

	gt.True(t, reg.Remove("search"))
	gt.False(t, reg.Remove("search"))
	gt.A(t, reg.Enabled()).Length(0)
}

func TestRegistryRegisterSet(t *testing.T) {
	reg, err := cogito.NewRegistry(newAction("search", false))
	gt.NoError(t, err)

	set := &mock.ActionSetMock{
		ActionsFunc: func(ctx context.Context) ([]cogito.Action, error) {
			return []cogito.Action{newAction("mcp_a", false), newAction("mcp_b", false)}, nil
		},
	}
	gt.NoError(t, reg.RegisterSet(context.Background(), set))
	gt.A(t, reg.Enabled()).Length(3)

	t.Run("conflict registers nothing", func(t *testing.T) {
		conflicting := &mock.ActionSetMock{
			ActionsFunc: func(ctx context.Context) ([]cogito.Action, error) {
				return []cogito.Action{newAction("mcp_c", false), newAction("search", false)}, nil
			},
		}
		err := reg.RegisterSet(context.Background(), conflicting)
		gt.True(t, errors.Is(err, cogito.ErrActionNameConflict))
		_, _, found := reg.Lookup("mcp_c")
		gt.False(t, found)
	})

	t.Run("set error", func(t *testing.T) {
		failing := &mock.ActionSetMock{
			ActionsFunc: func(ctx context.Context) ([]cogito.Action, error) {
				return nil, errors.New("server down")
			},
		}
		gt.Error(t, reg.RegisterSet(context.Background(), failing))
	})
}

func TestRegistryConcurrentAccess(t *testing.T) {
	reg, err := cogito.NewRegistry(newAction("search", false))
	gt.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = reg.SetEnabled("search", i%2 == 0)
		}()
		go func() {
			defer wg.Done()
			reg.Enabled()
			reg.Lookup("search")
		}()
	}
	wg.Wait()
}
