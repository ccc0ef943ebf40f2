package features

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// MemoryAllocationMetrics captures memory statistics for benchmarking
type MemoryAllocationMetrics struct {
	Allocs     uint64
	TotalAlloc uint64
	NumGC      uint32
}

func getMemoryMetrics() MemoryAllocationMetrics {
	var m runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&m)
	return MemoryAllocationMetrics{
		Allocs:     m.Mallocs,
		TotalAlloc: m.TotalAlloc,
		NumGC:      m.NumGC,
	}
}

// newChainSession registers f0 <- f1 <- ... <- f(depth-1) and returns the
// last feature of the chain.
func newChainSession(b *testing.B, depth int) (*Session, *EntityType, AnyFeature) {
	b.Helper()

	node := NewEntityType("node")
	s := NewSession()
	chain := chainFeatures(node, depth)
	if err := s.AddEntityType(node); err != nil {
		b.Fatal(err)
	}
	for _, f := range chain {
		if err := s.AddFeature(f); err != nil {
			b.Fatal(err)
		}
	}
	return s, node, chain[len(chain)-1]
}

// BenchmarkColdResolution resolves a whole chain on a fresh entity each time
func BenchmarkColdResolution(b *testing.B) {
	for _, depth := range []int{1, 10, 100} {
		b.Run(fmt.Sprintf("depth=%d", depth), func(b *testing.B) {
			s, node, last := newChainSession(b, depth)
			defer s.Close()

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				e := s.MustEntity(node, fmt.Sprint(i))
				if _, err := e.Get(last); err != nil {
					b.Fatalf("resolution failed: %v", err)
				}
			}
		})
	}
}

// BenchmarkCachedResolution measures the cache hit path
func BenchmarkCachedResolution(b *testing.B) {
	s, node, last := newChainSession(b, 10)
	defer s.Close()

	e := s.MustEntity(node, "n")
	if _, err := e.Get(last); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if _, err := e.Get(last); err != nil {
			b.Fatalf("resolution failed: %v", err)
		}
	}
}

func BenchmarkConcurrentResolutions(b *testing.B) {
	s, node, last := newChainSession(b, 5)
	defer s.Close()

	entities := make([]*Entity, 10)
	for i := range entities {
		entities[i] = s.MustEntity(node, fmt.Sprint(i))
	}

	b.ResetTimer()
	b.ReportAllocs()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			for _, e := range entities {
				if _, err := e.Get(last); err != nil {
					b.Errorf("resolution failed: %v", err)
					return
				}
			}
		}
	})
}

// BenchmarkHydrate measures a CSV scan stipulating two features per row
func BenchmarkHydrate(b *testing.B) {
	var sb strings.Builder
	sb.WriteString("rectangle_id,w_col,len_col\n")
	for i := 0; i < 1000; i++ {
		fmt.Fprintf(&sb, "r%d,%d.5,%d\n", i, i%17, i%13+1)
	}
	path := filepath.Join(b.TempDir(), "sizes.csv")
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		b.Fatal(err)
	}

	rect := NewEntityType("rectangle")
	width := Stipulated[float64](rect, "width")
	length := Stipulated[float64](rect, "length")

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		b.StopTimer()
		s := NewSession()
		_ = s.AddEntityType(rect)
		_ = s.AddFeature(width)
		_ = s.AddFeature(length)
		ds := NewCSVDataSource("sizes", path, DefaultDialect)
		ds.AddMapping(width, "w_col", "rectangle_id")
		ds.AddMapping(length, "len_col", "rectangle_id")
		_ = s.AddDataSource(ds)
		b.StartTimer()

		if _, err := s.HydrateType(context.Background(), rect); err != nil {
			b.Fatalf("hydration failed: %v", err)
		}
		s.Close()
	}
}

// BenchmarkMemoryUsageProfile reports allocations per cold resolution for
// several graph shapes
func BenchmarkMemoryUsageProfile(b *testing.B) {
	scenarios := []struct {
		name     string
		entities int
		depth    int
	}{
		{"few-entities-deep", 10, 100},
		{"many-entities-shallow", 1000, 3},
	}

	for _, sc := range scenarios {
		b.Run(sc.name, func(b *testing.B) {
			before := getMemoryMetrics()

			for i := 0; i < b.N; i++ {
				s, node, last := newChainSession(b, sc.depth)
				for j := 0; j < sc.entities; j++ {
					if _, err := s.MustEntity(node, fmt.Sprint(j)).Get(last); err != nil {
						b.Fatalf("resolution failed: %v", err)
					}
				}
				s.Close()
			}

			after := getMemoryMetrics()
			b.ReportMetric(float64(after.Allocs-before.Allocs)/float64(b.N), "allocs/session")
			b.ReportMetric(float64(after.TotalAlloc-before.TotalAlloc)/float64(b.N), "bytes/session")
		})
	}
}
