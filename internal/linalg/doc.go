// Package linalg provides the small dense vectors and matrices the
// simulator is written in terms of.
//
// Every operation with a shape precondition checks it on entry and returns
// an error wrapping dynamo.ErrDimensionMismatch instead of panicking.
// Matrix inversion is plain Gauss-Jordan without pivoting and reports
// dynamo.ErrSingular on a zero pivot.
package linalg
