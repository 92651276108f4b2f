package qpath

import (
	"github.com/vmihailenco/msgpack/v5"
)

// StepRecord is the wire form of a trajectory step.
type StepRecord struct {
	Index       int       `msgpack:"index"`
	Time        float64   `msgpack:"time"`
	Real        []float64 `msgpack:"real"`
	Imag        []float64 `msgpack:"imag"`
	Populations []float64 `msgpack:"populations"`
	Phase       float64   `msgpack:"phase"`
}

type TrajectoryRecord struct {
	Direction string       `msgpack:"direction"`
	Dt        float64      `msgpack:"dt"`
	Steps     []StepRecord `msgpack:"steps"`
}

type SummaryRecord struct {
	ID                  string  `msgpack:"id"`
	Dim                 int     `msgpack:"dim"`
	Error               float64 `msgpack:"error"`
	PopulationError     float64 `msgpack:"population_error"`
	PhaseError          float64 `msgpack:"phase_error"`
	GapUniformity       float64 `msgpack:"gap_uniformity"`
	Fidelity            float64 `msgpack:"fidelity"`
	FidelityUncertainty float64 `msgpack:"fidelity_uncertainty"`
}

type SearchRecord struct {
	ID          string      `msgpack:"id"`
	Best        []float64   `msgpack:"best"`
	Cost        float64     `msgpack:"cost"`
	Fidelity    float64     `msgpack:"fidelity"`
	NearOptimal [][]float64 `msgpack:"near_optimal"`
	Converged   bool        `msgpack:"converged"`
}

// Record flattens the trajectory, splitting amplitudes into real and imaginary parts.
func (t Trajectory) Record() TrajectoryRecord {
	rec := TrajectoryRecord{
		Direction: t.Direction.String(),
		Dt:        t.Dt,
		Steps:     make([]StepRecord, len(t.Steps)),
	}
	for i, s := range t.Steps {
		re := make([]float64, len(s.State))
		im := make([]float64, len(s.State))
		for j, a := range s.State {
			re[j], im[j] = real(a), imag(a)
		}
		rec.Steps[i] = StepRecord{
			Index:       s.Index,
			Time:        s.Time,
			Real:        re,
			Imag:        im,
			Populations: s.Populations,
			Phase:       s.Phase,
		}
	}
	return rec
}

// State rebuilds the amplitudes of a step record.
func (r StepRecord) State() State {
	s := make(State, len(r.Real))
	for i := range s {
		s[i] = complex(r.Real[i], r.Imag[i])
	}
	return s
}

func (s Summary) Record() SummaryRecord {
	return SummaryRecord{
		ID:                  s.ID,
		Dim:                 s.Config.Dim,
		Error:               s.Error,
		PopulationError:     s.PopulationError,
		PhaseError:          s.PhaseError,
		GapUniformity:       s.GapUniformity,
		Fidelity:            s.Fidelity,
		FidelityUncertainty: s.FidelityUncertainty,
	}
}

func (r SearchReport) Record() SearchRecord {
	near := make([][]float64, len(r.NearOptimal))
	for i, n := range r.NearOptimal {
		near[i] = n.X
	}
	return SearchRecord{
		ID:          r.ID,
		Best:        r.Best.X,
		Cost:        r.Best.Cost,
		Fidelity:    r.Best.Fidelity,
		NearOptimal: near,
		Converged:   r.Converged,
	}
}

// Encode serializes a record with msgpack.
func Encode(record any) ([]byte, error) {
	return msgpack.Marshal(record)
}

// Decode is the inverse of Encode.
func Decode(data []byte, record any) error {
	return msgpack.Unmarshal(data, record)
}
