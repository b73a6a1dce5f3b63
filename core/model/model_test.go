package model

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/YuminosukeSato/co2stack/pkg/errors"
)

func TestStateManager(t *testing.T) {
	s := NewStateManager()
	if s.IsFitted() {
		t.Fatal("new StateManager should not be fitted")
	}

	err := s.RequireFitted("Ridge", "Predict")
	var nf *errors.NotFittedError
	if !errors.As(err, &nf) || nf.ModelName != "Ridge" || nf.Method != "Predict" {
		t.Fatalf("RequireFitted = %v, want NotFittedError", err)
	}

	s.SetDimensions(3, 80)
	s.SetFitted()
	if err := s.RequireFitted("Ridge", "Predict"); err != nil {
		t.Errorf("unexpected error %v", err)
	}
	if err := s.RequireFeatures("Predict", 3); err != nil {
		t.Errorf("unexpected error %v", err)
	}
	var de *errors.DimensionError
	if err := s.RequireFeatures("Predict", 4); !errors.As(err, &de) {
		t.Errorf("RequireFeatures(4) = %v, want DimensionError", err)
	}

	s.Reset()
	if f, n := s.GetDimensions(); s.IsFitted() || f != 0 || n != 0 {
		t.Error("Reset should clear state")
	}
}

type persisted struct {
	State  *StateManager
	Coef   []float64
	Labels []string
}

func TestPersistenceRoundTrip(t *testing.T) {
	in := persisted{State: NewStateManager(), Coef: []float64{1.5, -2.25, 1e-300}, Labels: []string{"a", "b"}}
	in.State.SetDimensions(3, 10)
	in.State.SetFitted()

	var buf bytes.Buffer
	if err := SaveModelToWriter(&in, &buf); err != nil {
		t.Fatal(err)
	}
	var out persisted
	if err := LoadModelFromReader(&out, &buf); err != nil {
		t.Fatal(err)
	}
	if !out.State.IsFitted() || out.State.NFeatures != 3 || out.State.NSamples != 10 {
		t.Errorf("state not restored: %+v", out.State)
	}
	for i := range in.Coef {
		if in.Coef[i] != out.Coef[i] {
			t.Errorf("Coef[%d] = %v, want %v", i, out.Coef[i], in.Coef[i])
		}
	}
}

func TestSaveModelFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing directory is not created", func(t *testing.T) {
		path := filepath.Join(dir, "absent", "m.gob")
		if err := SaveModel(&persisted{State: NewStateManager()}, path); err == nil {
			t.Fatal("expected error for missing parent directory")
		}
		if _, err := os.Stat(filepath.Join(dir, "absent")); !os.IsNotExist(err) {
			t.Error("SaveModel must not create the parent directory")
		}
	})

	t.Run("round trip", func(t *testing.T) {
		path := filepath.Join(dir, "m.gob")
		in := persisted{State: NewStateManager(), Coef: []float64{42}}
		if err := SaveModel(&in, path); err != nil {
			t.Fatal(err)
		}
		var out persisted
		if err := LoadModel(&out, path); err != nil {
			t.Fatal(err)
		}
		if len(out.Coef) != 1 || out.Coef[0] != 42 {
			t.Errorf("got %v", out.Coef)
		}
	})

	t.Run("load missing file", func(t *testing.T) {
		var out persisted
		err := LoadModel(&out, filepath.Join(dir, "nope.gob"))
		if !errors.Is(err, errors.ErrNotFound) {
			t.Errorf("LoadModel = %v, want ErrNotFound", err)
		}
	})
}
