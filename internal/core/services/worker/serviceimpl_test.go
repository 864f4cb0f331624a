package worker

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/arbfn-2025.net/internal/adapter/logging"
	"gitlab.com/arbfn-2025.net/internal/domain"
	"gitlab.com/arbfn-2025.net/internal/static/errs"
)

func newRegistry(t *testing.T, policy domain.Policy) *WorkerRegistry {
	t.Helper()
	r, err := NewWorkerRegistry(policy, logging.NewNopLogger())
	require.NoError(t, err)
	return r
}

func TestNewWorkerRegistryRejectsUnknownPolicy(t *testing.T) {
	_, err := NewWorkerRegistry("sometimes", logging.NewNopLogger())
	assert.Error(t, err)
}

func TestIdentifiedFirstRegisterGetsOne(t *testing.T) {
	r := newRegistry(t, domain.PolicyIdentified)

	w, err := r.Register(1)
	require.NoError(t, err)
	require.NotNil(t, w.UID)
	assert.Equal(t, uint64(1), *w.UID)
	assert.Equal(t, 1, r.ActiveCount())
}

func TestIdentifiedReusesFreedID(t *testing.T) {
	r := newRegistry(t, domain.PolicyIdentified)

	a, _ := r.Register(1)
	b, _ := r.Register(2)
	assert.Equal(t, uint64(1), *a.UID)
	assert.Equal(t, uint64(2), *b.UID)

	_, err := r.Deregister(1, a.UID)
	require.NoError(t, err)

	c, _ := r.Register(3)
	assert.Equal(t, uint64(1), *c.UID)
	assert.Equal(t, 2, r.ActiveCount())
}

func TestIdentifiedAlwaysPicksSmallestFreeID(t *testing.T) {
	r := newRegistry(t, domain.PolicyIdentified)
	for i := 1; i <= 5; i++ {
		_, err := r.Register(domain.Address(i))
		require.NoError(t, err)
	}

	_, err := r.Deregister(4, domain.UIDOf(4))
	require.NoError(t, err)
	_, err = r.Deregister(2, domain.UIDOf(2))
	require.NoError(t, err)

	w, _ := r.Register(6)
	assert.Equal(t, uint64(2), *w.UID)
	w, _ = r.Register(7)
	assert.Equal(t, uint64(4), *w.UID)
	w, _ = r.Register(8)
	assert.Equal(t, uint64(6), *w.UID)
}

func TestIdentifiedDeregisterErrors(t *testing.T) {
	r := newRegistry(t, domain.PolicyIdentified)
	_, _ = r.Register(1)

	_, err := r.Deregister(1, nil)
	assert.ErrorIs(t, err, errs.ErrMalformedMessage)

	_, err = r.Deregister(1, domain.UIDOf(9))
	assert.ErrorIs(t, err, errs.ErrProtocolViolation)

	assert.Equal(t, 1, r.ActiveCount())
}

func TestIdentifiedCheck(t *testing.T) {
	r := newRegistry(t, domain.PolicyIdentified)
	w, _ := r.Register(1)

	assert.NoError(t, r.Check(1, w.UID))
	assert.ErrorIs(t, r.Check(1, nil), errs.ErrMalformedMessage)
	assert.ErrorIs(t, r.Check(1, domain.UIDOf(2)), errs.ErrProtocolViolation)
}

func TestAnonymousCountsSessions(t *testing.T) {
	r := newRegistry(t, domain.PolicyAnonymous)

	w, err := r.Register(1)
	require.NoError(t, err)
	assert.Nil(t, w.UID)
	_, _ = r.Register(1)
	_, _ = r.Register(2)
	assert.Equal(t, 3, r.ActiveCount())

	assert.NoError(t, r.Check(5, nil))

	_, err = r.Deregister(1, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, r.ActiveCount())
}

func TestAnonymousDeregisterWithoutSessionIsViolation(t *testing.T) {
	r := newRegistry(t, domain.PolicyAnonymous)

	_, err := r.Deregister(1, nil)
	assert.ErrorIs(t, err, errs.ErrProtocolViolation)
	assert.Equal(t, 0, r.ActiveCount())
}

func TestReleaseDropsEverySessionOfSource(t *testing.T) {
	r := newRegistry(t, domain.PolicyIdentified)
	_, _ = r.Register(1)
	_, _ = r.Register(2)
	_, _ = r.Register(1)

	released := r.Release(1)
	assert.Len(t, released, 2)
	assert.Equal(t, 1, r.ActiveCount())
	assert.Empty(t, r.Release(1))

	w, _ := r.Register(3)
	assert.Equal(t, uint64(1), *w.UID)
}

func TestActiveIsOrdered(t *testing.T) {
	r := newRegistry(t, domain.PolicyIdentified)
	for _, src := range []domain.Address{3, 1, 2} {
		_, _ = r.Register(src)
	}

	active := r.Active()
	require.Len(t, active, 3)
	for i, w := range active {
		assert.Equal(t, uint64(i+1), *w.UID)
	}
}

// TestRegistryIdentityProperties drives random register/deregister sequences and checks
// that active ids stay unique and positive, and that every new id is the smallest free one.
func TestRegistryIdentityProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("active ids are unique, positive and minimal", prop.ForAll(
		func(ops []int) bool {
			r, _ := NewWorkerRegistry(domain.PolicyIdentified, logging.NewNopLogger())
			live := map[uint64]bool{}

			for i, op := range ops {
				if op%3 != 0 || len(live) == 0 {
					w, err := r.Register(domain.Address(i + 1))
					if err != nil || w.UID == nil || *w.UID == 0 || live[*w.UID] {
						return false
					}
					for id := uint64(1); id < *w.UID; id++ {
						if !live[id] {
							return false
						}
					}
					live[*w.UID] = true
				} else {
					var victim uint64
					for id := range live {
						if victim == 0 || id%7 == uint64(op)%7 {
							victim = id
						}
					}
					if _, err := r.Deregister(0, domain.UIDOf(victim)); err != nil {
						return false
					}
					delete(live, victim)
				}
				if r.ActiveCount() != len(live) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 100)),
	))

	properties.Property("anonymous count never goes negative", prop.ForAll(
		func(ops []bool) bool {
			r, _ := NewWorkerRegistry(domain.PolicyAnonymous, logging.NewNopLogger())
			expected := 0
			for _, register := range ops {
				if register {
					_, _ = r.Register(1)
					expected++
					continue
				}
				_, err := r.Deregister(1, nil)
				if expected == 0 {
					if err == nil {
						return false
					}
				} else {
					expected--
				}
				if r.ActiveCount() < 0 || r.ActiveCount() != expected {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Bool()),
	))

	properties.TestingRun(t)
}
