package registry_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aretw0/leadflow/pkg/domain"
	"github.com/aretw0/leadflow/pkg/registry"
	"github.com/aretw0/leadflow/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterAndPerform(t *testing.T) {
	reg := registry.NewRegistry()
	reg.RegisterFunc("ping", func(ctx context.Context, req domain.ActionRequest) (domain.ActionOutcome, error) {
		return domain.ActionOutcome{Message: "pong from " + req.StepID}, nil
	},
		registry.WithDescription("replies pong"),
		registry.WithParamsSchema(schema.Schema{"loud": schema.Optional(schema.Bool())}),
		registry.WithOutputs("pong"),
	)

	def, ok := reg.Lookup("ping")
	require.True(t, ok)
	assert.Equal(t, "replies pong", def.Description)
	assert.Equal(t, []string{"pong"}, def.Outputs)
	assert.Contains(t, def.Params, "loud")

	out, err := reg.Perform(context.Background(), domain.ActionRequest{Name: "ping", StepID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, "pong from s1", out.Message)
}

func TestRegistry_UnknownAction(t *testing.T) {
	reg := registry.NewRegistry()
	_, err := reg.Perform(context.Background(), domain.ActionRequest{Name: "nope"})
	assert.ErrorIs(t, err, domain.ErrUnknownAction)
	assert.False(t, reg.Has("nope"))
}

func TestRegistry_OverwriteAndNames(t *testing.T) {
	reg := registry.NewRegistry()
	first := registry.HandlerFunc(func(ctx context.Context, req domain.ActionRequest) (domain.ActionOutcome, error) {
		return domain.ActionOutcome{}, errors.New("first")
	})
	second := registry.HandlerFunc(func(ctx context.Context, req domain.ActionRequest) (domain.ActionOutcome, error) {
		return domain.ActionOutcome{Message: "second"}, nil
	})

	reg.Register("b", first)
	reg.Register("a", first)
	reg.Register("b", second)

	assert.Equal(t, []string{"a", "b"}, reg.Names())
	defs := reg.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "a", defs[0].Name)

	out, err := reg.Perform(context.Background(), domain.ActionRequest{Name: "b"})
	require.NoError(t, err)
	assert.Equal(t, "second", out.Message)
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	reg := registry.NewRegistry()
	noop := registry.HandlerFunc(func(ctx context.Context, req domain.ActionRequest) (domain.ActionOutcome, error) {
		return domain.ActionOutcome{}, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			reg.Register("noop", noop)
		}()
		go func() {
			defer wg.Done()
			_ = reg.Names()
			_, _ = reg.Lookup("noop")
		}()
	}
	wg.Wait()
	assert.True(t, reg.Has("noop"))
}
