// Package textutil provides text processing utilities for subtitle content.
//
// The primary use cases are:
//   - Detecting CJK vs Latin script to pick per-script word-count limits
//   - Counting display words (CJK characters count individually)
//   - Stripping trailing punctuation from translated subtitle lines
package textutil
