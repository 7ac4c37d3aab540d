// Package protocol implements the binary audio frame format used by the
// UDP capture source. Frames carry a fixed header with magic, version,
// sequence number and sample count, followed by 16-bit little-endian PCM.
package protocol
