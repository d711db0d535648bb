package errors

// Position represents a specific location in a module's source.
// It includes line and column numbers (1-based) for human-readability,
// and byte offsets (0-based) for potential use in tooling (like LSP).
//
// This package does not own a concrete source-file type; the lexer/parser
// belong to the embedding host; so Position only carries a specifier
// string naming the module the position belongs to.
type Position struct {
	Line       int    // 1-based line number
	Column     int    // 1-based column number (rune index within the line)
	StartPos   int    // 0-based byte offset of the start of the token/error span
	EndPos     int    // 0-based byte offset of the end of the token/error span (exclusive)
	Specifier  string // module specifier the position belongs to, for diagnostics
}
