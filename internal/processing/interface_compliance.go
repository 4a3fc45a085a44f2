package processing

import (
	"riverrace_stats/internal/clashroyale"
	"riverrace_stats/internal/sheets"
	"riverrace_stats/internal/telegram"
)

// Compile-time interface compliance checks
// These will cause compilation errors if the types don't implement the interfaces

var (
	_ ClashRoyaleClientInterface = (*clashroyale.Client)(nil)
	_ ClashRoyaleClientInterface = (*CachedClashRoyaleClient)(nil)
	_ ChatSenderInterface        = (*telegram.Client)(nil)
	_ SheetsMirrorInterface      = (*sheets.Mirror)(nil)
)
