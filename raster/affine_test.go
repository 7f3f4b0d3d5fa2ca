package raster

import (
	"testing"

	"github.com/soypat/glgl/math/ms3"
)

func TestBuildAffineAcceptsOrthographicGrid(t *testing.T) {
	corners := cubeCorners(ms3.Vec{X: 0, Y: 0, Z: 10}, 4)
	g := NewRootGrid(corners, 1, false)
	if !IsApproximatelyAffine(g, 0.01, 1, false) {
		t.Fatal("an orthographic projection should always pass the affine test")
	}
	m, ok := BuildAffine(g, 0.01, 1, false)
	if !ok {
		t.Fatal("BuildAffine failed on orthographic grid")
	}
	if m.X.X <= 0 || m.Y.Y <= 0 {
		t.Fatalf("expected positive half-extent axes, got X=%+v Y=%+v", m.X, m.Y)
	}
}

func TestBuildAffineRejectsStrongPerspectiveDistortionCloseUp(t *testing.T) {
	// A cube whose near face is very close to the camera (z from 1 to 9)
	// projects with heavy perspective distortion; a tight tolerance should
	// reject it.
	corners := cubeCorners(ms3.Vec{X: 0, Y: 0, Z: 5}, 4)
	g := NewRootGrid(corners, 1, true)
	if IsApproximatelyAffine(g, 1e-6, 1, true) {
		t.Fatal("expected strongly perspective-distorted grid to fail a near-zero tolerance")
	}
}

func TestIsApproximatelyAffineMonotoneInTolerance(t *testing.T) {
	corners := cubeCorners(ms3.Vec{X: 0, Y: 0, Z: 5}, 4)
	g := NewRootGrid(corners, 1, true)

	const steps = 32
	sawFail, sawPass := false, false
	oncePassed := false
	for i := 0; i <= steps; i++ {
		tol := float32(i) * (2.0 / steps)
		pass := IsApproximatelyAffine(g, tol, 1, true)
		if pass {
			sawPass = true
			oncePassed = true
		} else {
			sawFail = true
			if oncePassed {
				t.Fatalf("tolerance %v failed after a smaller tolerance already passed: not monotone", tol)
			}
		}
	}
	if !sawFail || !sawPass {
		t.Fatal("test setup did not exercise both a failing and a passing tolerance")
	}
}

func TestBuildAffineFarNodePassesTightTolerance(t *testing.T) {
	// A cube far from the camera subtends a tiny angle, so perspective
	// distortion across it is negligible even at a tight tolerance.
	corners := cubeCorners(ms3.Vec{X: 0, Y: 0, Z: 10000}, 4)
	g := NewRootGrid(corners, 1, true)
	if !IsApproximatelyAffine(g, 0.001, 1, true) {
		t.Fatal("expected a distant, narrow-angle grid to pass a tight tolerance")
	}
}
