package enrollment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreHoldsOneSession(t *testing.T) {
	st := NewStore()

	_, ok := st.Current()
	assert.False(t, ok)

	first := st.Open(User{Username: "alice"}, []string{"phone"})
	second := st.Open(User{Username: "bob"}, nil)

	cur, ok := st.Current()
	require.True(t, ok)
	assert.Same(t, second, cur)
	assert.False(t, st.isCurrent(first))
	assert.True(t, st.isCurrent(second))

	st.Close()
	_, ok = st.Current()
	assert.False(t, ok)
	assert.False(t, st.isCurrent(second))

	// closing twice is harmless
	st.Close()
}

func TestStoreDevicesAreSnapshot(t *testing.T) {
	devices := []string{"phone", "laptop"}
	st := NewStore()
	s := st.Open(User{Username: "alice"}, devices)

	devices[0] = "changed"
	assert.Equal(t, []string{"phone", "laptop"}, s.Devices())

	got := s.Devices()
	got[1] = "changed"
	assert.Equal(t, []string{"phone", "laptop"}, s.Devices())
	assert.Equal(t, StepStartChoice, s.Step().Kind())
	_, ok := s.Enrollment()
	assert.False(t, ok)
}

func TestStoreReset(t *testing.T) {
	st := NewStore()

	_, ok := st.Reset()
	assert.False(t, ok)

	first := st.Open(User{Username: "alice"}, []string{"phone"})
	first.step = ManualSetup{Form: ManualForm{LocationID: 3}}

	reset, ok := st.Reset()
	require.True(t, ok)
	assert.NotEqual(t, first.ID, reset.ID)
	assert.Equal(t, "alice", reset.User.Username)
	assert.Equal(t, []string{"phone"}, reset.Devices())
	assert.Equal(t, StepStartChoice, reset.Step().Kind())
	assert.False(t, st.isCurrent(first))
}

func TestRegistryIsolatesOperators(t *testing.T) {
	created := 0
	reg := NewRegistry(func() *Controller {
		created++
		return NewController(Dependencies{}, Options{})
	})

	a, releaseA := reg.Acquire("op-a")
	again, releaseAgain := reg.Acquire("op-a")
	assert.Same(t, a, again)
	b, releaseB := reg.Acquire("op-b")
	assert.NotSame(t, a, b)
	assert.Equal(t, 2, created)

	a.store.Open(User{Username: "alice"}, nil)
	_, err := b.View()
	assert.ErrorIs(t, err, ErrNoSession)

	releaseA()
	releaseAgain()
	releaseB()

	reg.CloseAll()
	_, err = a.View()
	assert.ErrorIs(t, err, ErrNoSession)
	assert.Zero(t, reg.Len())
}

func TestRegistryDropsControllerAfterSessionCloses(t *testing.T) {
	reg := NewRegistry(func() *Controller {
		return NewController(Dependencies{}, Options{})
	})

	c, release := reg.Acquire("op-a")
	release()
	assert.Zero(t, reg.Len(), "controller without a session is dropped")

	c, release = reg.Acquire("op-a")
	c.store.Open(User{Username: "alice"}, nil)
	release()
	release()
	assert.Equal(t, 1, reg.Len(), "open session keeps its controller")

	kept, release := reg.Acquire("op-a")
	assert.Same(t, c, kept)
	kept.Close()
	assert.Equal(t, 1, reg.Len(), "entry held by a request stays")
	release()
	assert.Zero(t, reg.Len())

	fresh, release := reg.Acquire("op-a")
	defer release()
	assert.NotSame(t, c, fresh)
}
