// Package batch runs a tool operation over several ids and reports one
// outcome per id.
//
// ParseStringOrArray accepts a single id, an array of ids, or a JSON array
// encoded as a string. ProcessBatch keeps going after a failed item, so a
// missing id does not stop the rest of the batch.
package batch
