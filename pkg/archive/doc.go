// Package archive reads jar files: content hashing, declared coordinates,
// representative class paths, entry-set similarity, bytecode levels and
// unpacking of the libraries embedded in an application archive.
//
// Entries are visited in the order they appear in the zip central
// directory, so "first" always means first in archive order.
package archive
