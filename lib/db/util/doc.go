// Package util provides utility components for
// database implementations that satisfy the db.KVDB interface.
//
// The package contains:
//   - statistics: Distribution statistics and a SizeHistogram for tracking data size distribution
//   - functions: Seed generation and the seeded FNV-1a hash used for sharding
package util
