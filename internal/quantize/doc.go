// Package quantize maps unit-norm face embeddings onto integer buckets.
//
// Each component e is mapped to floor(log_base(e + bias)). The bias shifts the
// [-1, 1] range of a normalised component well away from zero so the
// logarithm is always defined, and the floor turns small capture-to-capture
// noise into the same or an adjacent bucket.
package quantize
