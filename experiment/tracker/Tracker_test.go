package tracker

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"

	ts "github.com/samuelfneumann/goa2c/timestep"
)

// trackEpisode sends one synthetic episode with the argument rewards
// through a Tracker. The first reward is seen on the episode's first
// timestep, which carries no reward in practice, so rewards[0] should
// usually be 0.
func trackEpisode(t *testing.T, tr Tracker, rewards []float64) {
	t.Helper()

	obs := mat.NewVecDense(1, nil)
	for i, reward := range rewards {
		stepType := ts.Mid
		if i == 0 {
			stepType = ts.First
		}
		if i == len(rewards)-1 {
			stepType = ts.Last
		}
		tr.Track(ts.New(stepType, reward, 0.9, obs, i))
	}
}

func TestReturnAccumulatesPerEpisode(t *testing.T) {
	r := NewReturn(filepath.Join(t.TempDir(), "returns.bin"))

	trackEpisode(t, r, []float64{0, -0.1, -0.1, 1.0})
	trackEpisode(t, r, []float64{0, -0.1, -0.1, -0.1, 1.0})

	returns := r.Returns()
	if len(returns) != 2 {
		t.Fatalf("expected 2 episodic returns, got %v", len(returns))
	}
	if math.Abs(returns[0]-0.8) > 1e-12 {
		t.Errorf("expected first episodic return 0.8, got %v", returns[0])
	}
	if math.Abs(returns[1]-0.7) > 1e-12 {
		t.Errorf("expected second episodic return 0.7, got %v", returns[1])
	}
}

func TestReturnPanicsOnNonSequentialTimesteps(t *testing.T) {
	r := NewReturn(filepath.Join(t.TempDir(), "returns.bin"))

	obs := mat.NewVecDense(1, nil)
	r.Track(ts.New(ts.First, 0, 0.9, obs, 0))

	defer func() {
		if recover() == nil {
			t.Error("expected a panic for non-sequential timesteps")
		}
	}()
	r.Track(ts.New(ts.Mid, 0, 0.9, obs, 5))
}

func TestReturnSaveRoundTrip(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "returns.bin")
	r := NewReturn(filename)

	trackEpisode(t, r, []float64{0, 1.0, 2.0})
	r.Save()

	data, err := LoadData(filename)
	if err != nil {
		t.Fatalf("could not load saved data: %v", err)
	}
	if len(data) != 1 || math.Abs(data[0]-3.0) > 1e-12 {
		t.Errorf("expected saved returns [3], got %v", data)
	}
}

func TestMeanReturnWindow(t *testing.T) {
	m := NewMeanReturn(filepath.Join(t.TempDir(), "means.bin"), 2)

	trackEpisode(t, m, []float64{0, 1.0})
	trackEpisode(t, m, []float64{0, 3.0})
	trackEpisode(t, m, []float64{0, 5.0})

	means := m.Means()
	if len(means) != 3 {
		t.Fatalf("expected 3 mean returns, got %v", len(means))
	}

	// Episode 1: mean(1) = 1; episode 2: mean(1, 3) = 2;
	// episode 3: mean(3, 5) = 4
	expected := []float64{1.0, 2.0, 4.0}
	for i := range expected {
		if math.Abs(means[i]-expected[i]) > 1e-12 {
			t.Errorf("expected mean return %v after episode %v, got %v",
				expected[i], i+1, means[i])
		}
	}
}

func TestCurveSavesImage(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "curve.png")
	c := NewCurve(filename, 100, 60)

	trackEpisode(t, c, []float64{0, 1.0, -1.0})
	trackEpisode(t, c, []float64{0, 2.0})
	c.Save()

	info, err := os.Stat(filename)
	if err != nil {
		t.Fatalf("could not stat learning curve file: %v", err)
	}
	if info.Size() == 0 {
		t.Error("learning curve file is empty")
	}
}
