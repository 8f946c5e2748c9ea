package timeq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddFiresOnExactDeadline(t *testing.T) {
	q := New()
	fired := false
	var to Timo
	to.Set(func(arg any) { fired = true }, nil)
	q.Add(&to, 10)

	q.Advance(9)
	assert.False(t, fired)
	assert.True(t, to.Armed())

	q.Advance(1)
	assert.True(t, fired)
	assert.False(t, to.Armed())
}

func TestFiresInDeadlineOrderNotInsertionOrder(t *testing.T) {
	q := New()
	var order []int
	var a, b, c Timo
	a.Set(func(arg any) { order = append(order, 1) }, nil)
	b.Set(func(arg any) { order = append(order, 2) }, nil)
	c.Set(func(arg any) { order = append(order, 3) }, nil)

	q.Add(&c, 30)
	q.Add(&a, 10)
	q.Add(&b, 20)

	q.Advance(30)
	require.Equal(t, []int{1, 2, 3}, order)
}

func TestDelBeforeFireIsHonored(t *testing.T) {
	q := New()
	fired := false
	var to Timo
	to.Set(func(arg any) { fired = true }, nil)
	q.Add(&to, 10)
	q.Del(&to)
	assert.False(t, to.Armed())

	q.Advance(100)
	assert.False(t, fired)
}

func TestDelAfterFireIsNoop(t *testing.T) {
	q := New()
	var to Timo
	to.Set(func(arg any) {}, nil)
	q.Add(&to, 5)
	q.Advance(5)
	assert.False(t, to.Armed())

	assert.NotPanics(t, func() { q.Del(&to) })
}

func TestCallbackArmingNewTimeoutOnlyFiresLater(t *testing.T) {
	q := New()
	var follow Timo
	followFired := false
	follow.Set(func(arg any) { followFired = true }, nil)

	var lead Timo
	lead.Set(func(arg any) { q.Add(&follow, 1) }, nil)
	q.Add(&lead, 5)

	q.Advance(5)
	assert.False(t, followFired, "a timeout armed from within a callback must not fire in the same Advance")

	q.Advance(1)
	assert.True(t, followFired)
}

func TestAdvanceSurvivesClockWraparound(t *testing.T) {
	q := New()
	q.abstime = ^uint32(0) - 2 // two units from wrapping
	fired := false
	var to Timo
	to.Set(func(arg any) { fired = true }, nil)
	q.Add(&to, 5)

	q.Advance(4)
	assert.False(t, fired)
	q.Advance(1)
	assert.True(t, fired)
}

func TestDelOnWrongQueueIsNoop(t *testing.T) {
	q1, q2 := New(), New()
	var to Timo
	to.Set(func(arg any) {}, nil)
	q1.Add(&to, 10)

	q2.Del(&to)
	assert.True(t, to.Armed())
}
