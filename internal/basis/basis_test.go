package basis

import (
	"math"
	"testing"
)

func TestShellCount(t *testing.T) {
	tests := []struct {
		number int
		want   int
	}{
		{1, 1},
		{2, 1},
		{3, 2},
		{10, 2},
		{11, 3},
		{18, 3},
		{26, 4},
		{54, 5},
	}
	s, _ := NewSet(Gauss)
	for _, tt := range tests {
		if got := s.ShellCount(tt.number); got != tt.want {
			t.Errorf("ShellCount(%d) = %d, want %d", tt.number, got, tt.want)
		}
	}
}

func TestInitialAmplitudesSumToElectronCount(t *testing.T) {
	s, _ := NewSet(Gauss)
	for _, z := range []int{1, 6, 8, 9, 14, 26} {
		amps := s.InitialAmplitudes(z)
		sum := 0.0
		for _, a := range amps {
			sum += a
		}
		if math.Abs(sum-float64(z)) > 1e-12 {
			t.Errorf("Z=%d: amplitudes sum to %g", z, sum)
		}
	}
}

func TestWidthsEvenTempered(t *testing.T) {
	s, _ := NewSet(Slater)
	w := s.Widths(8)
	if len(w) != 2 {
		t.Fatalf("expected 2 widths for oxygen, got %d", len(w))
	}
	if w[0] != 16.0 {
		t.Errorf("innermost width should be 2*Z, got %g", w[0])
	}
	if math.Abs(w[len(w)-1]-2.0) > 1e-12 {
		t.Errorf("outermost width should be 2.0, got %g", w[len(w)-1])
	}

	g, _ := NewSet(Gauss)
	gw := g.Widths(8)
	for i := range w {
		if math.Abs(gw[i]-w[i]*w[i]) > 1e-12 {
			t.Errorf("gauss width %d should be the slater width squared", i)
		}
	}
}

func TestShellDensityNormalization(t *testing.T) {
	// trapezoid quadrature on a log grid
	n := 300
	rmin, rmax := 1e-5, 30.0
	h := math.Log(rmax/rmin) / float64(n-1)
	r := make([]float64, n)
	w := make([]float64, n)
	for i := range r {
		r[i] = rmin * math.Exp(float64(i)*h)
		w[i] = r[i] * h
	}
	w[0] *= 0.5
	w[n-1] *= 0.5

	integrate := func(f []float64) float64 {
		total := 0.0
		for i := range f {
			total += 4 * math.Pi * r[i] * r[i] * w[i] * f[i]
		}
		return total
	}

	for _, kind := range []Kind{Gauss, Slater} {
		s, _ := NewSet(kind)
		for _, width := range []float64{0.5, 2.0, 16.0} {
			f := s.ShellDensity(2.5, width, r)
			got := integrate(f)
			if math.Abs(got-2.5) > 1e-3 {
				t.Errorf("%s width %g: integrates to %g, want 2.5", kind, width, got)
			}
		}
	}
}

func TestProAtomDensityLengthMismatch(t *testing.T) {
	s, _ := NewSet(Gauss)
	if _, err := s.ProAtomDensity(8, []float64{1}, []float64{0.1}); err == nil {
		t.Error("expected error for wrong amplitude count")
	}
}

func TestNewSetUnknownKind(t *testing.T) {
	if _, err := NewSet(Kind("cubic")); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestMBISInitial(t *testing.T) {
	pars := MBISInitial(8)
	if len(pars) != 4 {
		t.Fatalf("expected 2 interleaved pairs for oxygen, got %d values", len(pars))
	}
	popSum := pars[0] + pars[2]
	if math.Abs(popSum-8) > 1e-12 {
		t.Errorf("populations sum to %g, want 8", popSum)
	}
	if pars[1] != 16.0 {
		t.Errorf("innermost width should be 16, got %g", pars[1])
	}
	if pars[1] <= pars[3] {
		t.Error("widths should decrease outward")
	}
}

func TestMBISDensityMatchesSlaterShell(t *testing.T) {
	s, _ := NewSet(Slater)
	r := []float64{0.1, 0.5, 1.0, 2.0}
	want := s.ShellDensity(1.5, 2.0, r)
	got := MBISDensity([]float64{1.5, 2.0}, r)
	for i := range r {
		if math.Abs(got[i]-want[i]) > 1e-14 {
			t.Errorf("r=%g: got %g want %g", r[i], got[i], want[i])
		}
	}
}
