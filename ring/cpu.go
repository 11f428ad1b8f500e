package ring

import "github.com/klauspost/cpuid/v2"

// CPUFeatures summarizes the CPU capabilities relevant to the NTT and
// AES-GCM hot paths (wide-multiply throughput and AES-NI), returned by
// DetectCPUFeatures for diagnostics; nothing in this module calls it. It
// never changes correctness or control flow — the reduction code in
// scalar.go and ntt.go is written to be
// correct on any amd64/arm64 target — it only lets a caller's logs explain
// why a benchmark run is fast or slow on a given machine.
type CPUFeatures struct {
	Name      string
	HasAESNI  bool
	HasAVX2   bool
	LogicalCores int
}

// DetectCPUFeatures reports the current CPU's capabilities via cpuid.
func DetectCPUFeatures() CPUFeatures {
	c := cpuid.CPU
	return CPUFeatures{
		Name:         c.BrandName,
		HasAESNI:     c.Supports(cpuid.AESNI),
		HasAVX2:      c.Supports(cpuid.AVX2),
		LogicalCores: c.LogicalCores,
	}
}
