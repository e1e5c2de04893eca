package settings

import "testing"

func TestComputeSettingsFieldsDefaults(t *testing.T) {
	s := PipelineSettings{CCADim: 30}
	s = s.ComputeSettingsFields()
	if s.WindowSize != 3 {
		t.Errorf("expected default window size 3 but got %d", s.WindowSize)
	}
	if s.NumClusters != 30 {
		t.Errorf("expected cluster count to default to the cca dimension, got %d", s.NumClusters)
	}
}

func TestComputeSettingsFieldsKeepsExplicitValues(t *testing.T) {
	s := PipelineSettings{WindowSize: 5, CCADim: 30, NumClusters: 7}
	s = s.ComputeSettingsFields()
	if s.WindowSize != 5 {
		t.Errorf("expected window size 5 but got %d", s.WindowSize)
	}
	if s.NumClusters != 7 {
		t.Errorf("expected cluster count 7 but got %d", s.NumClusters)
	}
}

func TestSignatureVersionsEscalate(t *testing.T) {
	s := PipelineSettings{
		RareCutoff:      0,
		WindowSize:      2,
		SentencePerLine: false,
		CCADim:          2,
		SmoothingTerm:   1.0,
		NumClusters:     2,
	}
	expected := map[int]string{
		0: "rare0",
		1: "rare0_window2_sentfalse",
		2: "rare0_window2_sentfalse_dim2_smooth1",
		3: "rare0_window2_sentfalse_dim2_smooth1_clusters2",
	}
	for version, want := range expected {
		if got := s.Signature(version); got != want {
			t.Errorf("expected signature %q at version %d but got %q", want, version, got)
		}
	}
}

// Two runs that differ only in a later-version parameter must share the
// earlier-version signatures, so count artifacts are reused across
// different decomposition settings.
func TestEarlySignaturesIgnoreLaterParameters(t *testing.T) {
	a := PipelineSettings{RareCutoff: 1, WindowSize: 3, CCADim: 10, SmoothingTerm: 1.0}
	b := a
	b.CCADim = 50
	b.SmoothingTerm = 0.5
	if a.Signature(1) != b.Signature(1) {
		t.Errorf("version 1 signatures should match: %q vs %q", a.Signature(1), b.Signature(1))
	}
	if a.Signature(2) == b.Signature(2) {
		t.Errorf("version 2 signatures should differ, both are %q", a.Signature(2))
	}
}

func TestSignatureFormatsFractionalSmoothing(t *testing.T) {
	s := PipelineSettings{RareCutoff: 0, WindowSize: 2, CCADim: 2, SmoothingTerm: 0.5}
	want := "rare0_window2_sentfalse_dim2_smooth0.5"
	if got := s.Signature(2); got != want {
		t.Errorf("expected signature %q but got %q", want, got)
	}
}
