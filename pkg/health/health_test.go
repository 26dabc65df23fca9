package health

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticChecker struct {
	name string
	err  error
}

func (c *staticChecker) Name() string                    { return c.name }
func (c *staticChecker) Check(ctx context.Context) error { return c.err }

func TestCheckerRegistry_AllHealthy(t *testing.T) {
	registry := NewCheckerRegistry()
	registry.Register(&staticChecker{name: "redis"})
	registry.Register(&staticChecker{name: "postgresql"})

	h := registry.Check(context.Background())
	assert.Equal(t, StatusHealthy, h.Status)
	require.Len(t, h.Checks, 2)
	assert.Equal(t, StatusHealthy, h.Checks["redis"].Status)
}

func TestCheckerRegistry_OneUnhealthy(t *testing.T) {
	registry := NewCheckerRegistry()
	registry.Register(&staticChecker{name: "redis"})
	registry.Register(&staticChecker{name: "postgresql", err: fmt.Errorf("connection refused")})

	h := registry.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, h.Status)
	assert.Equal(t, StatusHealthy, h.Checks["redis"].Status)
	assert.Equal(t, StatusUnhealthy, h.Checks["postgresql"].Status)
	assert.Contains(t, h.Checks["postgresql"].Message, "connection refused")
}

func TestConsumerChecker(t *testing.T) {
	running := false
	checker := NewConsumerChecker("orders-consumer", func() bool { return running })

	assert.Equal(t, "orders-consumer", checker.Name())
	require.Error(t, checker.Check(context.Background()))

	running = true
	require.NoError(t, checker.Check(context.Background()))
}
