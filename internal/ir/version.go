package ir

// Version constants.
const (
	// FormatVersion is the command stream format version recorded with cached artifacts.
	FormatVersion = "1"

	// ToolVersion is the stitch compiler version.
	ToolVersion = "0.1.0"
)
