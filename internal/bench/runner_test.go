package bench

import "testing"

func TestParseSamples_GoBenchOutput(t *testing.T) {
	out := `goos: linux
goarch: amd64
BenchmarkEncode-8   	 1000000	      1234 ns/op
BenchmarkDecode-8   	  500000	      2468.5 ns/op
PASS
`
	samples := ParseSamples(out)
	if len(samples) != 2 {
		t.Fatalf("sample count = %d, want 2", len(samples))
	}
	if samples[0].Value != 1234 || samples[0].Unit != "ns/op" {
		t.Errorf("sample[0] = %+v", samples[0])
	}
	if samples[1].Value != 2468.5 {
		t.Errorf("sample[1] = %+v", samples[1])
	}
}

func TestParseSamples_BareLines(t *testing.T) {
	out := "42.5 ms\n40 ms\nnoise line\n39.8 ms\n"
	samples := ParseSamples(out)
	if len(samples) != 3 {
		t.Fatalf("sample count = %d, want 3", len(samples))
	}
	for _, sm := range samples {
		if sm.Unit != "ms" {
			t.Errorf("unit = %q, want ms", sm.Unit)
		}
	}
}

func TestParseSamples_NoMatches(t *testing.T) {
	if samples := ParseSamples("nothing to see here\n"); len(samples) != 0 {
		t.Errorf("samples = %v, want none", samples)
	}
}
