// Package node implements the permission node matching algorithm.
//
// A permission node is a case-sensitive dotted string such as "server.fly" or
// "chat.color.red". A leading '-' marks a negation entry. The token "*" grants
// everything and "-*" denies everything. A trailing ".*" segment matches every
// node under the prefix; a '*' anywhere else is an ordinary character.
//
// # Components
//
//   - [Set] — a set of permission node strings with delta-reporting mutators.
//   - [Evaluate] — set + requested node → [Grant], [Deny], or [Unspecified].
//
// # What this package must NOT do
//
//   - Consult groups, sources, or virtual tables — it sees one set at a time.
//   - Normalize, lowercase, or trim nodes. Comparison is byte-for-byte.
//   - Import any other permgate package.
package node
