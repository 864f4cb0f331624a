package dispatch

import (
	"fmt"
	"math"

	"gitlab.com/arbfn-2025.net/internal/domain"
)

// Correction maps the forces on one atom to the delta a worker applies to it.
// Corrections must be stateless.
type Correction func(domain.AtomForce) domain.AtomCorrection

// BatchCorrection computes one correction list per request of a complete
// timestep. The result mirrors the input shape.
type BatchCorrection func(batch [][]domain.AtomForce) [][]domain.AtomCorrection

const (
	CorrectionDamping = "damping"
	CorrectionEcho    = "echo"
	CorrectionZero    = "zero"
	CorrectionWalls   = "walls"

	DefaultDampingK     = 0.99
	DefaultGravityLimit = 0.1
	wallBound           = 10.0
	wallMinFix          = 0.1
)

// Damping opposes the reported force: d = -k*f.
func Damping(k float64) Correction {
	return func(f domain.AtomForce) domain.AtomCorrection {
		return domain.AtomCorrection{DFX: -k * f.FX, DFY: -k * f.FY, DFZ: -k * f.FZ}
	}
}

// Echo returns the reported force unchanged.
func Echo(f domain.AtomForce) domain.AtomCorrection {
	return domain.AtomCorrection{DFX: f.FX, DFY: f.FY, DFZ: f.FZ}
}

func Zero(domain.AtomForce) domain.AtomCorrection {
	return domain.AtomCorrection{}
}

// Walls pushes atoms back from the planes x=±10 and y=±10. Each component is
// bounded by max(0.1, 1.5*|f|) in magnitude.
func Walls(f domain.AtomForce) domain.AtomCorrection {
	dfx := math.Pow(f.X-wallBound, -7) + math.Pow(f.X+wallBound, -7)
	dfy := math.Pow(f.Y-wallBound, -7) + math.Pow(f.Y+wallBound, -7)
	return domain.AtomCorrection{
		DFX: clampSigned(dfx, math.Max(wallMinFix, 1.5*math.Abs(f.FX))),
		DFY: clampSigned(dfy, math.Max(wallMinFix, 1.5*math.Abs(f.FY))),
	}
}

// NewCorrection resolves a correction by name. k is only used by damping.
func NewCorrection(name string, k float64) (Correction, error) {
	switch name {
	case CorrectionDamping, "":
		if math.IsNaN(k) || math.IsInf(k, 0) {
			return nil, fmt.Errorf("damping factor must be finite, got %v", k)
		}
		return Damping(k), nil
	case CorrectionEcho:
		return Echo, nil
	case CorrectionZero:
		return Zero, nil
	case CorrectionWalls:
		return Walls, nil
	}
	return nil, fmt.Errorf("unknown correction %q", name)
}

// Gravity pulls every atom toward the x/y centroid of the whole timestep.
// Each component is clamped to ±limit; an atom on the centroid gets no pull.
func Gravity(limit float64) BatchCorrection {
	return func(batch [][]domain.AtomForce) [][]domain.AtomCorrection {
		var sumX, sumY float64
		var count int
		for _, atoms := range batch {
			for _, a := range atoms {
				sumX += a.X
				sumY += a.Y
				count++
			}
		}

		out := make([][]domain.AtomCorrection, len(batch))
		if count == 0 {
			for i := range batch {
				out[i] = []domain.AtomCorrection{}
			}
			return out
		}
		meanX, meanY := sumX/float64(count), sumY/float64(count)

		for i, atoms := range batch {
			fixes := make([]domain.AtomCorrection, len(atoms))
			for j, a := range atoms {
				dx, dy := meanX-a.X, meanY-a.Y
				distance := math.Hypot(dx, dy)
				if distance == 0 {
					continue
				}
				fixes[j] = domain.AtomCorrection{
					DFX: clamp(dx/distance, limit),
					DFY: clamp(dy/distance, limit),
				}
			}
			out[i] = fixes
		}
		return out
	}
}

func clamp(v, limit float64) float64 {
	return math.Max(-limit, math.Min(limit, v))
}

func clampSigned(v, bound float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Copysign(math.Min(math.Abs(v), bound), v)
}
