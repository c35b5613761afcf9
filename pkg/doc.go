// Package pkg provides the core libraries of jarprobe, which identifies the
// dependency archives of a packaged Java application.
//
// # Overview
//
// The pkg directory is organized into four areas:
//
//  1. Identity: [archive], [gav] and [dependency] read an archive once and
//     hold its verification state.
//  2. Resolution: [resolve] runs the ordered strategies against [maven]
//     repositories and the search index; [cache] remembers the answers.
//  3. Orchestration: [pipeline] drives workers over the [box] queue and
//     hands unsettled archives to [escalate].
//  4. Infrastructure: [egress] owns the network paths, [httputil] the
//     retry loop, [observability] the metric hooks, [errors] the codes.
//
// # Architecture
//
// The typical data flow:
//
//	application.jar
//	      ↓
//	 [archive] ExtractLibraries  →  one [dependency.Record] per library
//	      ↓
//	 [pipeline] Runner  ⇄  [resolve] Pipeline  ⇄  [maven] / [cache]
//	      ↓                      ↓
//	 [escalate] prompt     [egress] Pool
//	      ↓
//	 [manifest] jarprobe.toml  (+ [decompile] sources)
//
// Packages other than [pipeline] and [escalate] never write to the terminal.
package pkg
