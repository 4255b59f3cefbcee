// Package faceindex builds, persists and searches indexes of face embeddings.
//
// A Builder drives a Detector over an ordered list of images and collects
// one FaceRecord per detected face (up to a per-image cap). The resulting
// Index is written with Save and read back with Load. Search ranks the
// records of a loaded Index by Euclidean distance to a query embedding, and
// GroupByImage buckets records per source image for overlay rendering.
//
// Builds are strictly sequential: observers are notified on the calling
// goroutine, one progress notification per image, in input order. A loaded
// Index is never mutated by this package and may be searched concurrently.
package faceindex
