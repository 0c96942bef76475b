// Package filebroker issues time-limited direct-access URLs to an
// S3-compatible backend and tracks, through the backend's own object
// metadata, whether a logical file has been uploaded and whether it is still
// inside its validity window. No bytes flow through the service under normal
// operation and no database sits beside it: every fact about a file is
// derived from object-storage state at read time.
//
// The Service interface has two interchangeable implementations. The
// placeholder strategy (NewPlaceholderService) writes record metadata on a
// separate zero-byte object and checks the content key's existence; the
// versioned strategy (NewVersionedService) relies on native bucket
// versioning and requires exactly two versions per file. Both are selected
// by deployment configuration, never by runtime branching.
//
// BlobStore implementations (S3, in-memory) live under storage/.
package filebroker
