// Package changelog plans the SQL needed to bring a database from one revision
// of an append-only changelog file to another.
//
// The changelog is assumed to only ever grow, so the SQL between two revisions
// is the set of lines added between them. That assumption breaks when the
// file's header (its first lines) is rewritten: the file was restarted, and a
// plain diff across the rewrite would mix the old and new content. The Planner
// detects such rewrites and splits the range into epochs of constant header,
// replaying each later epoch from a full snapshot.
package changelog
