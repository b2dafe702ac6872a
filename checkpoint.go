package rankgen_go

import (
	"encoding/gob"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Checkpoint layout: a gob-encoded map of learnable node name to its dense
// value. Written once per epoch regardless of the training outcome.

// SaveCheckpoint Persists current values of all provided learnables.
func SaveCheckpoint(fname string, learnables gorgonia.Nodes) error {
	params := make(map[string]*tensor.Dense, len(learnables))
	for _, n := range learnables {
		v, ok := n.Value().(*tensor.Dense)
		if !ok {
			return fmt.Errorf("Learnable '%s' holds no dense value", n.Name())
		}
		if _, ok := params[n.Name()]; ok {
			return fmt.Errorf("Learnable name '%s' is not unique", n.Name())
		}
		params[n.Name()] = v.Clone().(*tensor.Dense)
	}
	f, err := os.Create(fname)
	if err != nil {
		return errors.Wrap(err, "Can't create checkpoint file")
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(params); err != nil {
		return errors.Wrap(err, "Can't encode checkpoint")
	}
	return nil
}

// LoadCheckpoint Restores learnable values from a snapshot produced by
// SaveCheckpoint. The snapshot must cover every learnable by name with a
// matching shape; a corrupt or mismatched snapshot is fatal to the run.
func LoadCheckpoint(fname string, learnables gorgonia.Nodes) error {
	f, err := os.Open(fname)
	if err != nil {
		return errors.Wrap(err, "Can't open checkpoint file")
	}
	defer f.Close()
	params := make(map[string]*tensor.Dense)
	if err := gob.NewDecoder(f).Decode(&params); err != nil {
		return errors.Wrap(err, "Can't decode checkpoint")
	}
	for _, n := range learnables {
		v, ok := params[n.Name()]
		if !ok {
			return fmt.Errorf("Checkpoint '%s' has no entry for learnable '%s'", fname, n.Name())
		}
		if !v.Shape().Eq(n.Shape()) {
			return fmt.Errorf("Checkpoint entry '%s' has shape %v, but model expects %v", n.Name(), v.Shape(), n.Shape())
		}
		if err := gorgonia.Let(n, v); err != nil {
			return errors.Wrap(err, fmt.Sprintf("Can't assign checkpoint entry '%s'", n.Name()))
		}
	}
	return nil
}
