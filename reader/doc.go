// Package reader provides the core extraction engine that turns neutronics
// simulation output into a lazy sequence of sample Points.
//
// # Reading Guide
//
// Start with these three files to understand the pipeline:
//   - point.go: the Point record (index + quantities + units) and its ordering
//   - schema.go: the Schema interface a mode-specific grammar implements
//   - reader.go: the streaming engine (line classification, block assembly,
//     recovery and duplicate policies, diagnostics)
//
// # Architecture
//
// The engine is single-pass and forward-only. It classifies each source line,
// accumulates data rows into the block for the current index context, and
// emits one immutable Point per completed block. A completed block is held
// until the next block's index is known so that duplicate-index policies
// (restart blocks) resolve before the Point is yielded; memory use stays
// proportional to one block, not the file.
//
// Mode-specific grammars live in the reader/neutronics sub-package; the engine
// itself never hard-codes a marker token or field name.
package reader
