// Package kvproto defines the immutable request/reply value types exchanged
// between a [github.com/joeycumines/distkv/clerk.Clerk] and a
// [github.com/joeycumines/distkv/kvstore.Service]. Values are opaque byte
// strings: this package has no opinion on encoding.
package kvproto

// GetRequest names a single key to read. GET carries no client identity or
// sequence number: it is side-effect free and safe to retry unconditionally.
type GetRequest struct {
	Key []byte
}

// GetReply is the successful result of a GET.
type GetReply struct {
	Value   []byte
	Version uint64
}

// PutRequest names a conditional write: apply Value to Key iff the server's
// current version of Key equals ExpectedVersion (0 meaning "key must be
// absent"). ClientID and Seq identify the logical request for at-most-once
// deduplication; every retry of the same logical PUT must carry the same
// Seq.
type PutRequest struct {
	Key             []byte
	Value           []byte
	ExpectedVersion uint64
	ClientID        string
	Seq             uint64
}

// PutReply is the successful result of a PUT: the version the key now has.
type PutReply struct {
	Version uint64
}
