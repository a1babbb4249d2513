// Package fs is the resource-bounded filesystem access layer of ForgeFS.
//
// It wraps raw platform syscalls behind three guarantees:
//
//   - Bounded descriptors. Every open handle holds a permit from a
//     counting limiter sized at construction, so the process can never
//     run its descriptor table dry no matter how wide a build fans out.
//
//   - Guaranteed release. A handle closed explicitly returns descriptor
//     and permit on the spot; a handle that merely goes out of scope is
//     picked up by the garbage collector and drained through a deferred
//     close worker. Either way, nothing leaks.
//
//   - Off-thread syscalls. All platform calls run on a dedicated worker
//     pool and callers await completion, so a slow disk or a cold NFS
//     mount never stalls anything but the goroutine that asked.
//
// Handles are typed by capability: a FileHandle reads, writes and carries
// extended attributes; a DirectoryHandle lists, opens children relative to
// its own descriptor, and creates or renames entries. The kind is verified
// at open time, so a kind mismatch is an error at the open, not a surprise
// at first use.
//
// On top of the handle layer, Tree and TreeWithData enumerate a directory
// subtree concurrently into a MetadataTree: an ordered trie of per-file
// stat data, optionally enriched by a per-file work function that streams
// each file's contents through pooled buffers (digesting is the typical
// use). Walks honor an IgnoreSet of glob patterns and abort as a whole on
// the first error.
package fs
