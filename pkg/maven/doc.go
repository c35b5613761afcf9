// Package maven speaks the remote repository protocol and the central
// search index.
//
// # Overview
//
// All requests go through a [Getter], normally the egress pool, so proxy
// selection and retries stay in one place. The package adds three
// things on top:
//
//   - [Client]: sidecar checksum, jar download and POM fetch against one
//     repository base URL
//   - [Search]: the central search index, queried by content hash or by
//     artifact and version
//   - [Collector]: a resolvability check that walks a coordinate's POM,
//     its parent chain and its explicit-version runtime dependencies
//
// # Soft and fatal failures
//
// A non-200 answer from a repository is soft: the caller moves on to
// the next strategy. The search index is different. Every jar that falls
// through the repository strategies needs it, so a search that does not
// answer with 200 fails with ErrCodeSearchUnavailable and stops the run.
//
// # Layout
//
// Paths follow the standard repository layout:
//
//	<group with / for .>/<artifact>/<version>/<artifact>-<version>.jar
//	<group with / for .>/<artifact>/<version>/<artifact>-<version>.jar.sha1
//	<group with / for .>/<artifact>/<version>/<artifact>-<version>.pom
package maven
