// Package marc provides the codec-neutral bibliographic record model shared by
// the ISO 2709, MARCXML and MARC-in-JSON codecs.
//
// This package contains the record model, diagnostics and field accessors
// only. The codec packages import marc; marc imports nothing internal.
//
// Key design constraints:
//   - The leader is exactly 24 characters once a record has one
//   - Field order is the source order; tags may repeat
//   - Subfield order is preserved
//   - Records are immutable by convention after construction
//   - Codecs report non-fatal problems as Diagnostics, never via callbacks
package marc
