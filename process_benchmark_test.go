// process_benchmark_test.go - Block loop throughput benchmarks

package rack

import "testing"

// =============================================================================
// Render Benchmark Suite
// Measures block processing throughput at typical patch sizes
// Run with: go test -bench=BenchmarkRenderBlock -benchmem -run="^$" ./...
// =============================================================================

func setupBenchPatch(b *testing.B, voices int) *Engine {
	e := NewEngine(SAMPLE_RATE, MAX_BLOCK_SIZE)
	out, _ := e.AddModule("output")
	mix, _ := e.AddModule("mixer4")
	if err := e.Connect(mix, 0, out, 0); err != nil {
		b.Fatal(err)
	}
	for v := 0; v < voices && v < 4; v++ {
		lfo, _ := e.AddModule("lfo")
		osc, _ := e.AddModule("osc")
		g, _ := e.AddModule("gain")
		if err := e.Connect(lfo, 0, osc, 0); err != nil {
			b.Fatal(err)
		}
		if err := e.Connect(osc, 0, g, 0); err != nil {
			b.Fatal(err)
		}
		if err := e.Connect(g, 0, mix, v); err != nil {
			b.Fatal(err)
		}
	}
	if err := e.CommitChanges(); err != nil {
		b.Fatal(err)
	}
	e.Play()
	return e
}

func benchRender(b *testing.B, voices, block int) {
	e := setupBenchPatch(b, voices)
	dst := make([][]float32, OUTPUT_CHANNELS)
	for ch := range dst {
		dst[ch] = make([]float32, block)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.RenderBlock(dst, block)
	}
	b.SetBytes(int64(block * 4 * OUTPUT_CHANNELS))
}

func BenchmarkRenderBlock_1Voice_64(b *testing.B)   { benchRender(b, 1, 64) }
func BenchmarkRenderBlock_1Voice_512(b *testing.B)  { benchRender(b, 1, 512) }
func BenchmarkRenderBlock_4Voices_64(b *testing.B)  { benchRender(b, 4, 64) }
func BenchmarkRenderBlock_4Voices_512(b *testing.B) { benchRender(b, 4, 512) }

// BenchmarkCommit measures a structural commit against a standing patch, the
// cost a host pays for a live edit.
func BenchmarkCommit(b *testing.B) {
	e := setupBenchPatch(b, 4)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		id, _ := e.AddModule("const")
		if err := e.CommitChanges(); err != nil {
			b.Fatal(err)
		}
		_ = e.RemoveModule(id)
		if err := e.CommitChanges(); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkCaptureFifo measures the producer/consumer hot path.
func BenchmarkCaptureFifo(b *testing.B) {
	f := NewCaptureFifo(4096)
	batch := make([]float32, 256)
	dst := make([]float32, 256)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		f.Write(batch)
		f.Read(dst)
	}
	b.SetBytes(int64(len(batch) * 4))
}
