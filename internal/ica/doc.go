// Package ica holds the decomposition primitives used by the group stage:
// a PCA reduction computed from the eigendecomposition of the smaller Gram
// matrix, and symmetric FastICA with a log-cosh contrast.
//
// Both treat their input as (time, grayordinate) data and decompose it
// spatially: the independent sources are spatial maps over grayordinates,
// the mixing matrix holds their time courses.
package ica
