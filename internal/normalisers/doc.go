// Package normalisers turns product source files into ordered page text.
// Each subpackage implements driven.SourceLoader for one family of formats;
// Registry picks the highest-priority loader that supports a path.
package normalisers
