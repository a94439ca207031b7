// Package internalcheck holds static policy tests for the runtime packages.
//
// The tests load every package under pkg/mpcrt with go/packages and fail on
// constructs that could leak share values: == on byte slices, which is not
// constant time, and %x formatting, which tends to end up in logs.
//
// It has no exported API and is not meant to be imported.
package internalcheck
