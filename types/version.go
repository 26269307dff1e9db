package types

// Version is the canonical project version. The CLI, the event contract and
// the run metadata all report this value.
const Version = "0.3.0"

// ToolName identifies this engine in run metadata.
const ToolName = "verdict"
