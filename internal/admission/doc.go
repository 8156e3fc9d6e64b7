// Package admission runs nightcore jobs one at a time.
//
// The Gate owns a single exclusive slot. Submit validates the request before
// touching the slot, waits for it, drives the extractor, retains the original
// download, renders through the filter engine, and always releases the slot.
// Every failure, including panics from collaborators, is folded into a
// jobs.Outcome; nothing escapes to the caller.
package admission
