package dispatch_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"gitlab.com/arbfn-2025.net/internal/adapter/logging"
	"gitlab.com/arbfn-2025.net/internal/core/services/dispatch"
	"gitlab.com/arbfn-2025.net/internal/domain"
)

type fakeMembers struct {
	policy domain.Policy
	active int
}

func (f *fakeMembers) Policy() domain.Policy { return f.policy }
func (f *fakeMembers) ActiveCount() int      { return f.active }

func TestDampingScenario(t *testing.T) {
	d := dispatch.NewDispatcher(dispatch.Damping(0.99), &fakeMembers{policy: domain.PolicyIdentified, active: 1}, logging.NewNopLogger())

	replies, err := d.Dispatch(1, domain.NewRequest(domain.UIDOf(1), []domain.AtomForce{{FX: 1}}))
	require.NoError(t, err)
	require.Len(t, replies, 1)

	resp := replies[0].Message
	assert.Equal(t, domain.Address(1), replies[0].To)
	assert.Equal(t, domain.MsgResponse, resp.Type)
	require.NotNil(t, resp.UID)
	assert.Equal(t, uint64(1), *resp.UID)
	require.Len(t, resp.Corrections, 1)
	assert.InDelta(t, -0.99, resp.Corrections[0].DFX, 1e-12)
	assert.Zero(t, resp.Corrections[0].DFY)
	assert.Zero(t, resp.Corrections[0].DFZ)
}

func TestEmptyRequestGetsEmptyResponse(t *testing.T) {
	d := dispatch.NewDispatcher(dispatch.Damping(0.99), &fakeMembers{policy: domain.PolicyIdentified, active: 1}, logging.NewNopLogger())

	replies, err := d.Dispatch(1, domain.NewRequest(domain.UIDOf(1), []domain.AtomForce{}))
	require.NoError(t, err)
	assert.NotNil(t, replies[0].Message.Corrections)
	assert.Empty(t, replies[0].Message.Corrections)
}

func TestAnonymousResponseHasNoUID(t *testing.T) {
	d := dispatch.NewDispatcher(dispatch.Echo, &fakeMembers{policy: domain.PolicyAnonymous, active: 1}, logging.NewNopLogger())

	replies, err := d.Dispatch(4, domain.NewRequest(domain.UIDOf(3), []domain.AtomForce{{FX: 2, FY: 3, FZ: 4}}))
	require.NoError(t, err)
	assert.Nil(t, replies[0].Message.UID)
	assert.Equal(t, domain.AtomCorrection{DFX: 2, DFY: 3, DFZ: 4}, replies[0].Message.Corrections[0])
}

func TestDispatchRejectsNonRequest(t *testing.T) {
	d := dispatch.NewDispatcher(dispatch.Zero, &fakeMembers{policy: domain.PolicyAnonymous, active: 1}, logging.NewNopLogger())
	_, err := d.Dispatch(1, domain.NewWaiting())
	assert.Error(t, err)
}

func TestPropertyResponseMirrorsRequest(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		k := rapid.Float64Range(-2, 2).Draw(t, "k")
		n := rapid.IntRange(0, 64).Draw(t, "n")
		forces := make([]domain.AtomForce, n)
		for i := range forces {
			forces[i] = domain.AtomForce{
				FX: rapid.Float64Range(-1e3, 1e3).Draw(t, "fx"),
				FY: rapid.Float64Range(-1e3, 1e3).Draw(t, "fy"),
				FZ: rapid.Float64Range(-1e3, 1e3).Draw(t, "fz"),
			}
		}

		d := dispatch.NewDispatcher(dispatch.Damping(k), &fakeMembers{policy: domain.PolicyIdentified, active: 1}, logging.NewNopLogger())
		replies, err := d.Dispatch(1, domain.NewRequest(domain.UIDOf(7), forces))
		if err != nil {
			t.Fatalf("dispatch: %v", err)
		}
		fixes := replies[0].Message.Corrections
		if len(fixes) != n {
			t.Fatalf("expected %d corrections, got %d", n, len(fixes))
		}
		for i, f := range forces {
			if fixes[i].DFX != -k*f.FX || fixes[i].DFY != -k*f.FY || fixes[i].DFZ != -k*f.FZ {
				t.Fatalf("atom %d: %+v is not -k*%+v", i, fixes[i], f)
			}
		}
	})
}

func TestNewCorrection(t *testing.T) {
	for _, name := range []string{dispatch.CorrectionDamping, dispatch.CorrectionEcho, dispatch.CorrectionZero, dispatch.CorrectionWalls} {
		c, err := dispatch.NewCorrection(name, dispatch.DefaultDampingK)
		require.NoError(t, err, name)
		assert.NotNil(t, c)
	}

	_, err := dispatch.NewCorrection("antigravity", 1)
	assert.Error(t, err)
	_, err = dispatch.NewCorrection(dispatch.CorrectionDamping, math.NaN())
	assert.Error(t, err)
}

func TestWallsIsBounded(t *testing.T) {
	fix := dispatch.Walls(domain.AtomForce{X: 9.99, Y: 0, FX: 0.01})
	assert.LessOrEqual(t, math.Abs(fix.DFX), 0.1)
	assert.Zero(t, fix.DFZ)

	fix = dispatch.Walls(domain.AtomForce{X: 10})
	assert.False(t, math.IsNaN(fix.DFX))
	assert.InDelta(t, 0.1, math.Abs(fix.DFX), 1e-12)
}

func TestGravityPullsTowardCentroid(t *testing.T) {
	out := dispatch.Gravity(0.1)([][]domain.AtomForce{
		{{X: -1, Y: 0}},
		{{X: 1, Y: 0}, {X: 0, Y: 0}},
	})

	require.Len(t, out, 2)
	assert.InDelta(t, 0.1, out[0][0].DFX, 1e-12)
	assert.InDelta(t, -0.1, out[1][0].DFX, 1e-12)
	assert.Equal(t, domain.AtomCorrection{}, out[1][1])
	assert.Zero(t, out[0][0].DFZ)
}

func TestBulkWaitsForEverySession(t *testing.T) {
	members := &fakeMembers{policy: domain.PolicyIdentified, active: 2}
	d := dispatch.NewDispatcher(dispatch.Zero, members, logging.NewNopLogger(), dispatch.WithBulk(nil))
	assert.Equal(t, domain.ModeBulk, d.Mode())

	replies, err := d.Dispatch(1, domain.NewRequest(domain.UIDOf(1), []domain.AtomForce{{X: -1, FX: 1}}))
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, domain.MsgWaiting, replies[0].Message.Type)

	// a repeated request replaces the buffered one
	replies, err = d.Dispatch(1, domain.NewRequest(domain.UIDOf(1), []domain.AtomForce{{X: -1, FX: 1}}))
	require.NoError(t, err)
	assert.Equal(t, domain.MsgWaiting, replies[0].Message.Type)

	replies, err = d.Dispatch(2, domain.NewRequest(domain.UIDOf(2), []domain.AtomForce{{X: 1, FX: 1}}))
	require.NoError(t, err)
	require.Len(t, replies, 2)
	assert.Equal(t, domain.Address(1), replies[0].To)
	assert.Equal(t, domain.Address(2), replies[1].To)
	for _, r := range replies {
		assert.Equal(t, domain.MsgResponse, r.Message.Type)
		assert.Len(t, r.Message.Corrections, 1)
	}
	assert.Equal(t, uint64(1), *replies[0].Message.UID)
	assert.InDelta(t, 0.1, replies[0].Message.Corrections[0].DFX, 1e-12)
}

func TestBulkForgetReleasesRemainingSessions(t *testing.T) {
	members := &fakeMembers{policy: domain.PolicyIdentified, active: 3}
	d := dispatch.NewDispatcher(dispatch.Zero, members, logging.NewNopLogger(), dispatch.WithBulk(dispatch.Gravity(0.1)))

	_, _ = d.Dispatch(1, domain.NewRequest(domain.UIDOf(1), []domain.AtomForce{{X: 0}}))
	_, _ = d.Dispatch(2, domain.NewRequest(domain.UIDOf(2), []domain.AtomForce{{X: 2}}))

	// session 3 leaves without reporting
	members.active = 2
	replies := d.Forget([]domain.WorkerInfo{{UID: domain.UIDOf(3), Source: 3}})
	require.Len(t, replies, 2)

	// session 2 leaves while session 1 is buffered
	_, _ = d.Dispatch(1, domain.NewRequest(domain.UIDOf(1), nil))
	members.active = 1
	replies = d.Forget([]domain.WorkerInfo{{UID: domain.UIDOf(2), Source: 2}})
	require.Len(t, replies, 1)
	assert.Equal(t, domain.Address(1), replies[0].To)
}

func TestImmediateForgetIsNoop(t *testing.T) {
	d := dispatch.NewDispatcher(dispatch.Zero, &fakeMembers{policy: domain.PolicyIdentified, active: 0}, logging.NewNopLogger())
	assert.Nil(t, d.Forget([]domain.WorkerInfo{{Source: 1}}))
}
