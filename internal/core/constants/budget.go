package constants

// Share of a model's context window one chunk may occupy, per flow.
const (
	ExtractionBudgetRatio = 0.5
	RefineBudgetRatio     = 0.7
	DigestBudgetRatio     = 0.7
)

const (
	// Fallback context window when the provider/model pair is unknown
	DefaultContextWindow = 4096

	// Batch size used when the compression ratio is unusable
	DefaultBatchSize = 10

	// Generation defaults
	DefaultTemperature = 0.3
	DefaultMaxTokens   = 1000

	// Heuristic status when nothing better is known
	DefaultProgress = 50

	// Default number of digests fed to an analysis
	DefaultDigestLimit = 10
)

// Document names inside an output folder.
const (
	CheckpointFile  = "checkpoint.md"
	TasksFile       = "tasks.md"
	StatusFile      = "status.md"
	InsightsFile    = "insights.md"
	ProjectTreeFile = "project-tree.md"
	DigestFolder    = "digests"
	ProjectsFolder  = "projects"
)
