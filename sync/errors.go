// Package sync implements the Synchronizer and Relay (§4.7): headers-first
// catch-up across peers, per-peer block scheduling with deadline-based
// reassignment, and post-IBD transaction/compact-block propagation. The
// wire transport itself is an external collaborator (§6 "low-level
// transport/peer-store implementation"); this package only ever talks to
// it through the PeerTransport interface.
package sync

import (
	"errors"

	"github.com/nervosnetwork/ckb-go/common"
)

// Severity grades a peer misbehavior event (§4.7, §7 SyncError).
type Severity int

const (
	SeverityMinor Severity = iota
	SeverityMajor
)

var (
	ErrUnknownPeer       = errors.New("sync: peer not registered")
	ErrPeerAlreadyKnown  = errors.New("sync: peer already registered")
	ErrUnknownProtocol   = errors.New("sync: unrecognized protocol message")
	ErrMalformedMessage  = errors.New("sync: malformed protocol message")
	ErrCompressionFailed = errors.New("sync: body decompression failed or exceeded cap")
	ErrPeerBanned        = errors.New("sync: peer exceeded misbehavior threshold")
	ErrNoSuchAncestor    = errors.New("sync: requested ancestor number above tip")
)

// SyncError wraps a fault attributed to a specific peer with its grade, the
// typed-error shape every other component in this module uses (§7).
type SyncError struct {
	PeerID   string
	Severity Severity
	Cause    error
}

func (e *SyncError) Error() string {
	grade := "minor"
	if e.Severity == SeverityMajor {
		grade = "major"
	}
	return "sync: peer " + e.PeerID + " (" + grade + "): " + e.Cause.Error()
}
func (e *SyncError) Unwrap() error { return e.Cause }

// blockAnnounce pairs a hash with the number a peer claims it has, used by
// both the headers-first tip announcement path and relay's new-block path.
type blockAnnounce struct {
	Hash   common.Hash
	Number uint64
}
