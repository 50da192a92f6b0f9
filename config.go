package gpuhal

// Validation selects the level of API validation a backend enables.
type Validation int

// Validation levels.
const (
	ValidationOff Validation = iota
	ValidationOn
	ValidationOnExtended
	ValidationOnExtendedDRED
)

// PresentMode selects the swapchain present mode translated to the
// API-native equivalent by the backend.
type PresentMode int

// Present modes.
const (
	PresentAllowTearing PresentMode = iota
	PresentSynced
)

// AdapterPreference selects how a backend chooses a physical adapter
// when more than one is available.
type AdapterPreference int

// Adapter preferences.
const (
	AdapterFirst AdapterPreference = iota
	AdapterIntegrated
	AdapterHighestVRAM
	AdapterHighestFeatureLevel
	AdapterExplicitIndex
)

// Config holds backend initialization parameters. It is immutable for
// the lifetime of the Backend it configures.
type Config struct {
	Validation      Validation
	PresentMode     PresentMode
	AdapterPref     AdapterPreference
	ExplicitAdapter int

	EnableRaytracing        bool
	PresentFromComputeQueue bool
	NumBackbuffers          int // 2..6

	// NumThreads is the strict upper bound on the number of distinct
	// threads that will call into the Backend concurrently. Per-thread
	// state (command-allocator bundles, translators) is indexed by a
	// thread-id -> slot mapping established on first touch and sized
	// to this bound.
	NumThreads int

	// Pool capacity ceilings. Exceeding any of these at runtime is a
	// fatal contract violation (fixed pool capacity).
	MaxResources             int
	MaxPipelineStates        int
	MaxRaytracePipelineStates int
	MaxCBVs                  int
	MaxSRVs                  int
	MaxUAVs                  int
	MaxSamplers              int
	MaxFences                int
	MaxAccelStructs          int
	MaxCommandLists          int
	MaxSwapchains            int

	// Command-allocator geometry, per thread per queue type.
	NumDirectCmdListAllocatorsPerThread  int
	NumDirectCmdListsPerAllocator        int
	NumComputeCmdListAllocatorsPerThread int
	NumComputeCmdListsPerAllocator       int
	NumCopyCmdListAllocatorsPerThread    int
	NumCopyCmdListsPerAllocator          int

	// Query-heap sizes.
	NumTimestampQueries   int
	NumOcclusionQueries   int
	NumPipelineStatQueries int
}

// DefaultConfig returns a Config with conservative, broadly-supported
// defaults. Fields left at zero by the caller after copying this value
// keep these defaults.
func DefaultConfig() Config {
	return Config{
		Validation:                           ValidationOff,
		PresentMode:                          PresentSynced,
		AdapterPref:                          AdapterHighestVRAM,
		NumBackbuffers:                       3,
		NumThreads:                           1,
		MaxResources:                         4096,
		MaxPipelineStates:                    1024,
		MaxRaytracePipelineStates:            64,
		MaxCBVs:                              2048,
		MaxSRVs:                              4096,
		MaxUAVs:                              1024,
		MaxSamplers:                          256,
		MaxFences:                            256,
		MaxAccelStructs:                      256,
		MaxCommandLists:                      256,
		MaxSwapchains:                        4,
		NumDirectCmdListAllocatorsPerThread:  2,
		NumDirectCmdListsPerAllocator:        4,
		NumComputeCmdListAllocatorsPerThread: 2,
		NumComputeCmdListsPerAllocator:       4,
		NumCopyCmdListAllocatorsPerThread:    2,
		NumCopyCmdListsPerAllocator:          2,
		NumTimestampQueries:                  256,
		NumOcclusionQueries:                  256,
		NumPipelineStatQueries:               64,
	}
}
