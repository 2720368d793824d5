package discovery

import (
	"bytes"
	"errors"
	"image/color"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/ellemouton/lngossip/broadcast"
	"github.com/ellemouton/lngossip/graph"
	"github.com/ellemouton/lngossip/keychain"
	"github.com/ellemouton/lngossip/lnwire"
	"github.com/ellemouton/lngossip/netann"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"
)

// testRef is the channel used throughout the tests.
var testRef = lnwire.ChannelRef{BlockHeight: 100, TxIndex: 2, TxPosition: 0}

type testNode struct {
	nodePriv    *btcec.PrivateKey
	fundingPriv *btcec.PrivateKey
	pub         [33]byte
	fundingPub  [33]byte
	signer      *keychain.PrivKeyMessageSigner
}

func newTestNode(t *testing.T) *testNode {
	t.Helper()

	nodePriv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	fundingPriv, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	n := &testNode{
		nodePriv:    nodePriv,
		fundingPriv: fundingPriv,
		signer:      keychain.NewPrivKeyMessageSigner(nodePriv),
	}
	copy(n.pub[:], nodePriv.PubKey().SerializeCompressed())
	copy(n.fundingPub[:], fundingPriv.PubKey().SerializeCompressed())

	return n
}

func (n *testNode) vertex() graph.Vertex {
	return graph.Vertex(n.pub)
}

func sign(t *testing.T, priv *btcec.PrivateKey, digest []byte) lnwire.Sig {
	t.Helper()

	sig, err := lnwire.NewSigFromSignature(ecdsa.Sign(priv, digest))
	require.NoError(t, err)

	return sig
}

// orderNodes returns a and b ordered by identity key.
func orderNodes(a, b *testNode) (*testNode, *testNode) {
	if bytes.Compare(a.pub[:], b.pub[:]) > 0 {
		return b, a
	}

	return a, b
}

// chanAnn returns a fully signed channel announcement between a and b.
func chanAnn(t *testing.T, a, b *testNode, ref lnwire.ChannelRef,
	features lnwire.FeatureBits) []byte {

	t.Helper()

	n1, n2 := orderNodes(a, b)
	ann := &lnwire.ChannelAnnouncement{
		ChannelRef:  ref,
		NodeID1:     n1.pub,
		NodeID2:     n2.pub,
		FundingKey1: n1.fundingPub,
		FundingKey2: n2.fundingPub,
		Features:    features,
	}
	ann.FundingSig1 = sign(t, n1.fundingPriv, chainhash.DoubleHashB(
		n1.pub[:],
	))
	ann.FundingSig2 = sign(t, n2.fundingPriv, chainhash.DoubleHashB(
		n2.pub[:],
	))

	raw, err := lnwire.Serialize(ann)
	require.NoError(t, err)
	digest, err := lnwire.SignedDigest(raw, lnwire.ChanAnnSigOffset)
	require.NoError(t, err)

	ann.NodeSig1 = sign(t, n1.nodePriv, digest)
	ann.NodeSig2 = sign(t, n2.nodePriv, digest)

	raw, err = lnwire.Serialize(ann)
	require.NoError(t, err)

	return raw
}

// chanUpdate returns a channel update signed by signer.
func chanUpdate(t *testing.T, signer *testNode, ref lnwire.ChannelRef,
	flags lnwire.ChanUpdateFlags, timestamp, baseFee uint32) []byte {

	t.Helper()

	upd := &lnwire.ChannelUpdate{
		ChannelRef:      ref,
		Timestamp:       timestamp,
		Flags:           flags,
		TimeLockDelta:   40,
		HtlcMinimumMsat: 1,
		BaseFee:         baseFee,
		FeeRate:         1,
	}

	raw, err := lnwire.Serialize(upd)
	require.NoError(t, err)
	digest, err := lnwire.SignedDigest(raw, lnwire.ChanUpdateSigOffset)
	require.NoError(t, err)
	upd.Signature = sign(t, signer.nodePriv, digest)

	raw, err = lnwire.Serialize(upd)
	require.NoError(t, err)

	return raw
}

// signedUpdate returns an update for the direction owned by owner in a
// channel with other.
func signedUpdate(t *testing.T, owner, other *testNode, timestamp,
	baseFee uint32) []byte {

	var flags lnwire.ChanUpdateFlags
	if bytes.Compare(owner.pub[:], other.pub[:]) > 0 {
		flags = lnwire.ChanUpdateDirection
	}

	return chanUpdate(t, owner, testRef, flags, timestamp, baseFee)
}

// nodeAnn returns a node announcement for n signed by n.
func nodeAnn(t *testing.T, n *testNode, timestamp uint32,
	rgb color.RGBA, addrs lnwire.RawAddrs) []byte {

	t.Helper()

	ann := &lnwire.NodeAnnouncement{
		Timestamp: timestamp,
		NodeID:    n.pub,
		RGBColor:  rgb,
		Features:  lnwire.FeatureBits{},
		Addresses: addrs,
	}

	raw, err := lnwire.Serialize(ann)
	require.NoError(t, err)
	digest, err := lnwire.SignedDigest(raw, lnwire.NodeAnnSigOffset)
	require.NoError(t, err)
	ann.Signature = sign(t, n.nodePriv, digest)

	raw, err = lnwire.Serialize(ann)
	require.NoError(t, err)

	return raw
}

func encodeAddr(t *testing.T, host string, port uint16) lnwire.RawAddrs {
	t.Helper()

	addrs, err := lnwire.EncodeAddress(lnwire.NetAddr{
		Host: host, Port: port,
	})
	require.NoError(t, err)

	return addrs
}

type processorHarness struct {
	graph     *graph.Graph
	log       *broadcast.Log
	processor *Processor
}

func newProcessorHarness(assumeValid bool,
	validator FundingValidator) *processorHarness {

	h := &processorHarness{
		graph: graph.New(),
		log:   broadcast.NewLog(),
	}
	h.processor = NewProcessor(&ProcessorConfig{
		Graph:              h.graph,
		Broadcaster:        h.log,
		AssumeChannelValid: assumeValid,
		FundingValidator:   validator,
		RejectCacheSize:    DefaultRejectCacheSize,
	})

	return h
}

// requireRejected asserts err is a rejection for the given reason.
func requireRejected(t *testing.T, err error, reason RejectReason) {
	t.Helper()

	var rejected *ErrRejected
	require.ErrorAs(t, err, &rejected)
	require.Equal(t, reason, rejected.Reason, rejected.Error())
}

// payloads returns every payload a fresh reader would receive.
func payloads(l *broadcast.Log) [][]byte {
	var out [][]byte
	var cursor uint64
	for {
		msg, next, ok := l.NextAfter(cursor)
		if !ok {
			return out
		}
		out = append(out, msg.Payload)
		cursor = next
	}
}

// TestChannelAnnouncementAccepted checks a new channel creates both edges
// and exactly one broadcast entry keyed by the channel reference, and that a
// replay changes nothing.
func TestChannelAnnouncementAccepted(t *testing.T) {
	t.Parallel()

	h := newProcessorHarness(false, nil)
	a, b := newTestNode(t), newTestNode(t)
	raw := chanAnn(t, a, b, testRef, nil)

	require.NoError(t, h.processor.ProcessMessage(raw))

	n1, n2 := orderNodes(a, b)
	edge0, ok := h.graph.Edge(testRef, 0)
	require.True(t, ok)
	require.Equal(t, n1.vertex(), edge0.Source)
	require.Equal(t, n2.vertex(), edge0.Destination)
	require.False(t, edge0.Active)
	require.True(t, edge0.LastUpdate.IsNone())

	edge1, ok := h.graph.Edge(testRef, 1)
	require.True(t, ok)
	require.Equal(t, n2.vertex(), edge1.Source)

	live := h.log.Live()
	require.Len(t, live, 1)
	require.Equal(t, lnwire.MsgChannelAnnouncement, live[0].Type)
	require.Equal(t, broadcast.ChannelKey(testRef), live[0].Key)
	require.Equal(t, "100:2:0", testRef.String())
	require.Equal(t, raw, live[0].Payload)

	stats := h.graph.Stats()

	// Replaying the same announcement is accepted but neither changes the
	// graph nor produces another broadcast.
	require.NoError(t, h.processor.ProcessMessage(raw))
	require.EqualValues(t, 1, h.log.Len())
	require.Equal(t, stats, h.graph.Stats())
}

// TestChannelAnnouncementForwardGating checks an announcement is forwarded
// only if at least one of its directions was new.
func TestChannelAnnouncementForwardGating(t *testing.T) {
	t.Parallel()

	h := newProcessorHarness(true, nil)
	a, b := newTestNode(t), newTestNode(t)
	n1, n2 := orderNodes(a, b)

	// One direction already exists, so the announcement still adds the
	// other one and is forwarded.
	require.True(t, h.graph.AddChannelDirection(
		n1.vertex(), n2.vertex(), 0, testRef, nil,
	))
	require.NoError(t, h.processor.ProcessChannelAnnouncement(
		chanAnn(t, a, b, testRef, nil),
	))
	require.EqualValues(t, 1, h.log.Len())

	// A different encoding of the same channel adds nothing.
	other := chanAnn(t, a, b, testRef, lnwire.NewFeatureBits(1))
	require.NoError(t, h.processor.ProcessChannelAnnouncement(other))
	require.EqualValues(t, 1, h.log.Len())
}

// TestChannelAnnouncementAuth checks the authentication of channel
// announcements and that AssumeChannelValid skips it.
func TestChannelAnnouncementAuth(t *testing.T) {
	t.Parallel()

	a, b, c := newTestNode(t), newTestNode(t), newTestNode(t)
	valid := chanAnn(t, a, b, testRef, nil)

	// Swapping in a node id that did not sign breaks the signatures.
	msg, err := lnwire.ReadMessage(bytes.NewReader(valid))
	require.NoError(t, err)
	forged := msg.(*lnwire.ChannelAnnouncement)
	forged.NodeID2 = c.pub
	forgedRaw, err := lnwire.Serialize(forged)
	require.NoError(t, err)

	errFunding := errors.New("output spent")

	tests := []struct {
		name        string
		assumeValid bool
		validator   FundingValidator
		raw         []byte
		reason      fn.Option[RejectReason]
	}{
		{
			name:   "valid",
			raw:    valid,
			reason: fn.None[RejectReason](),
		},
		{
			name:   "forged node id",
			raw:    forgedRaw,
			reason: fn.Some(ReasonBadSignature),
		},
		{
			name:        "forged node id assumed valid",
			assumeValid: true,
			raw:         forgedRaw,
			reason:      fn.None[RejectReason](),
		},
		{
			name: "unknown required feature",
			raw: chanAnn(
				t, a, b, testRef, lnwire.NewFeatureBits(20),
			),
			reason: fn.Some(ReasonUnknownFeature),
		},
		{
			name:   "unknown optional feature",
			raw:    chanAnn(t, a, b, testRef, lnwire.NewFeatureBits(21)),
			reason: fn.None[RejectReason](),
		},
		{
			name:      "funding spent",
			validator: mockFundingValidator{err: errFunding},
			raw:       valid,
			reason:    fn.Some(ReasonInvalidFunding),
		},
		{
			name:      "funding ok",
			validator: mockFundingValidator{},
			raw:       valid,
			reason:    fn.None[RejectReason](),
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			h := newProcessorHarness(test.assumeValid, test.validator)
			err := h.processor.ProcessChannelAnnouncement(test.raw)

			if test.reason.IsNone() {
				require.NoError(t, err)
				require.EqualValues(t, 1, h.log.Len())

				return
			}

			requireRejected(
				t, err, test.reason.UnwrapOr(ReasonMalformed),
			)
			require.Zero(t, h.log.Len())
			require.Zero(t, h.graph.Stats().NumEdges)
		})
	}
}

type mockFundingValidator struct {
	err error
}

func (m mockFundingValidator) ValidateFundingOutput(lnwire.ChannelRef,
	[33]byte, [33]byte) error {

	return m.err
}

// flakyFundingValidator fails until it is told the funding output is
// visible.
type flakyFundingValidator struct {
	visible bool
}

func (f *flakyFundingValidator) ValidateFundingOutput(lnwire.ChannelRef,
	[33]byte, [33]byte) error {

	if !f.visible {
		return errors.New("chain backend still syncing")
	}

	return nil
}

// TestChannelAnnouncementFundingRetry checks a funding failure is not
// remembered, so the same announcement is accepted once the output can be
// found.
func TestChannelAnnouncementFundingRetry(t *testing.T) {
	t.Parallel()

	validator := &flakyFundingValidator{}
	h := newProcessorHarness(false, validator)
	a, b := newTestNode(t), newTestNode(t)
	raw := chanAnn(t, a, b, testRef, nil)

	err := h.processor.ProcessChannelAnnouncement(raw)
	requireRejected(t, err, ReasonInvalidFunding)
	require.Zero(t, h.processor.RejectCacheLen())
	require.Zero(t, h.graph.Stats().NumEdges)

	validator.visible = true
	require.NoError(t, h.processor.ProcessChannelAnnouncement(raw))
	require.Equal(t, 2, h.graph.Stats().NumEdges)
	require.Equal(t, [][]byte{raw}, payloads(h.log))
}

type mockUtxoSource map[lnwire.ChannelRef]*wire.TxOut

func (m mockUtxoSource) FetchUtxo(ref lnwire.ChannelRef) (*wire.TxOut,
	error) {

	txOut, ok := m[ref]
	if !ok {
		return nil, errors.New("output not found")
	}

	return txOut, nil
}

// TestChannelAnnouncementFundingScript checks announcements are matched
// against the funding script of the referenced output.
func TestChannelAnnouncementFundingScript(t *testing.T) {
	t.Parallel()

	a, b, c := newTestNode(t), newTestNode(t), newTestNode(t)
	pkScript, err := netann.FundingPkScript(a.fundingPub, b.fundingPub)
	require.NoError(t, err)

	otherRef := lnwire.ChannelRef{BlockHeight: 200}
	validator := netann.NewFundingValidator(mockUtxoSource{
		testRef:  {Value: 1_000_000, PkScript: pkScript},
		otherRef: {Value: 1_000_000, PkScript: pkScript},
	})
	h := newProcessorHarness(false, validator)

	require.NoError(t, h.processor.ProcessChannelAnnouncement(
		chanAnn(t, a, b, testRef, nil),
	))

	// Validly signed, but the output pays to a and b.
	err = h.processor.ProcessChannelAnnouncement(
		chanAnn(t, a, c, otherRef, nil),
	)
	requireRejected(t, err, ReasonInvalidFunding)
	require.ErrorIs(t, err, netann.ErrFundingMismatch)

	require.Equal(t, 2, h.graph.Stats().NumEdges)
	require.EqualValues(t, 1, h.log.Len())
}

// TestChannelUpdateFlow checks updates for both directions share one
// broadcast slot, so a reader that has not drained yet only sees the latest.
func TestChannelUpdateFlow(t *testing.T) {
	t.Parallel()

	h := newProcessorHarness(false, nil)
	a, b := newTestNode(t), newTestNode(t)
	n1, n2 := orderNodes(a, b)

	ann := chanAnn(t, a, b, testRef, nil)
	require.NoError(t, h.processor.ProcessMessage(ann))

	upd0 := signedUpdate(t, n1, n2, 1000, 1000)
	require.NoError(t, h.processor.ProcessMessage(upd0))

	edge0, _ := h.graph.Edge(testRef, 0)
	require.True(t, edge0.Active)
	require.Equal(t, fn.Some(uint32(1000)), edge0.LastUpdate)
	require.EqualValues(t, 1000, edge0.Policy.FeeBaseMSat)
	require.Equal(t, upd0, edge0.ChannelUpdate)

	queued, ok := h.log.Lookup(
		lnwire.MsgChannelUpdate, broadcast.ChannelKey(testRef),
	)
	require.True(t, ok)
	require.Equal(t, upd0, queued.Payload)

	// The other direction is independent for timestamps, but takes over
	// the broadcast slot of the channel.
	upd1 := signedUpdate(t, n2, n1, 999, 2000)
	require.NoError(t, h.processor.ProcessMessage(upd1))

	edge1, _ := h.graph.Edge(testRef, 1)
	require.True(t, edge1.Active)
	require.EqualValues(t, 2000, edge1.Policy.FeeBaseMSat)

	queued, ok = h.log.Lookup(
		lnwire.MsgChannelUpdate, broadcast.ChannelKey(testRef),
	)
	require.True(t, ok)
	require.Equal(t, upd1, queued.Payload)

	require.Equal(t, [][]byte{ann, upd1}, payloads(h.log))
}

// TestChannelUpdateMonotonic checks that once a timestamp is accepted for a
// direction, nothing with an equal or lower timestamp is.
func TestChannelUpdateMonotonic(t *testing.T) {
	t.Parallel()

	h := newProcessorHarness(false, nil)
	a, b := newTestNode(t), newTestNode(t)
	n1, n2 := orderNodes(a, b)

	require.NoError(t, h.processor.ProcessMessage(
		chanAnn(t, a, b, testRef, nil),
	))

	accepted := signedUpdate(t, n1, n2, 1000, 1000)
	require.NoError(t, h.processor.ProcessMessage(accepted))
	posAfterAccept := h.log.Len()

	for _, stale := range [][]byte{
		accepted,
		signedUpdate(t, n1, n2, 1000, 5000),
		signedUpdate(t, n1, n2, 999, 5000),
		signedUpdate(t, n1, n2, 0, 5000),
	} {
		err := h.processor.ProcessMessage(stale)
		requireRejected(t, err, ReasonStale)

		var rejected *ErrRejected
		require.ErrorAs(t, err, &rejected)
		require.False(t, rejected.ShouldPenalize())
	}

	edge, _ := h.graph.Edge(testRef, 0)
	require.Equal(t, accepted, edge.ChannelUpdate)
	require.Equal(t, posAfterAccept, h.log.Len())

	require.NoError(t, h.processor.ProcessMessage(
		signedUpdate(t, n1, n2, 1001, 5000),
	))
	edge, _ = h.graph.Edge(testRef, 0)
	require.EqualValues(t, 5000, edge.Policy.FeeBaseMSat)
}

// TestChannelUpdateUnknownChannel checks updates for channels that were never
// announced are rejected whatever their flags.
func TestChannelUpdateUnknownChannel(t *testing.T) {
	t.Parallel()

	h := newProcessorHarness(true, nil)
	a := newTestNode(t)

	for _, flags := range []lnwire.ChanUpdateFlags{
		0, 1, 2, 3, 0x8000, 0xffff,
	} {
		err := h.processor.ProcessMessage(
			chanUpdate(t, a, testRef, flags, 1000, 1),
		)
		requireRejected(t, err, ReasonUnknownChannel)
	}

	require.Zero(t, h.log.Len())
	require.Zero(t, h.graph.Stats().NumNodes)
}

// TestChannelUpdateWrongSigner checks an update signed by the other end of
// the channel is rejected and remembered.
func TestChannelUpdateWrongSigner(t *testing.T) {
	t.Parallel()

	h := newProcessorHarness(false, nil)
	a, b := newTestNode(t), newTestNode(t)
	n1, n2 := orderNodes(a, b)

	require.NoError(t, h.processor.ProcessMessage(
		chanAnn(t, a, b, testRef, nil),
	))

	// Direction 0 belongs to n1, but n2 signs.
	forged := chanUpdate(t, n2, testRef, 0, 1000, 1)
	err := h.processor.ProcessMessage(forged)
	requireRejected(t, err, ReasonBadSignature)

	var rejected *ErrRejected
	require.ErrorAs(t, err, &rejected)
	require.True(t, rejected.ShouldPenalize())
	require.Equal(t, 1, h.processor.RejectCacheLen())

	edge, _ := h.graph.Edge(testRef, 0)
	require.False(t, edge.Active)

	// The same bytes are rejected from the cache.
	requireRejected(t, h.processor.ProcessMessage(forged), ReasonBadSignature)

	// The legitimate owner is unaffected.
	require.NoError(t, h.processor.ProcessMessage(
		signedUpdate(t, n1, n2, 1000, 1),
	))
}

// TestNodeAnnouncementUnknownNode checks a node announcement that precedes
// every channel announcement of the node is rejected without creating it.
func TestNodeAnnouncementUnknownNode(t *testing.T) {
	t.Parallel()

	h := newProcessorHarness(false, nil)
	a := newTestNode(t)

	err := h.processor.ProcessMessage(
		nodeAnn(t, a, 50, color.RGBA{}, encodeAddr(t, "1.2.3.4", 9735)),
	)
	requireRejected(t, err, ReasonUnknownNode)

	_, ok := h.graph.Node(a.vertex())
	require.False(t, ok)
	require.Zero(t, h.log.Len())
}

// TestNodeAnnouncementFlow checks node announcements must carry strictly
// increasing timestamps and that an accepted one replaces the node's
// attributes.
func TestNodeAnnouncementFlow(t *testing.T) {
	t.Parallel()

	h := newProcessorHarness(false, nil)
	a, b := newTestNode(t), newTestNode(t)

	require.NoError(t, h.processor.ProcessMessage(
		chanAnn(t, a, b, testRef, nil),
	))

	red := color.RGBA{R: 0xff}
	first := nodeAnn(t, a, 50, red, encodeAddr(t, "1.2.3.4", 9735))
	require.NoError(t, h.processor.ProcessMessage(first))

	node, ok := h.graph.Node(a.vertex())
	require.True(t, ok)
	require.Equal(t, fn.Some(uint32(50)), node.LastUpdate)
	require.Equal(t, red, node.Color)
	require.Equal(t, fn.Some(lnwire.NetAddr{
		Host: "1.2.3.4", Port: 9735,
	}), node.Address)
	require.Equal(t, first, node.Announcement)

	queued, ok := h.log.Lookup(
		lnwire.MsgNodeAnnouncement, broadcast.NodeKey(a.pub),
	)
	require.True(t, ok)
	require.Equal(t, first, queued.Payload)

	blue := color.RGBA{B: 0xff}
	equal := nodeAnn(t, a, 50, blue, encodeAddr(t, "5.6.7.8", 9735))
	requireRejected(t, h.processor.ProcessMessage(equal), ReasonStale)
	require.Equal(t, red, node.Color)

	newer := nodeAnn(t, a, 51, blue, encodeAddr(t, "example.com", 9736))
	require.NoError(t, h.processor.ProcessMessage(newer))
	require.Equal(t, fn.Some(uint32(51)), node.LastUpdate)
	require.Equal(t, blue, node.Color)
	require.Equal(t, fn.Some(lnwire.NetAddr{
		Host: "example.com", Port: 9736,
	}), node.Address)

	queued, ok = h.log.Lookup(
		lnwire.MsgNodeAnnouncement, broadcast.NodeKey(a.pub),
	)
	require.True(t, ok)
	require.Equal(t, newer, queued.Payload)

	// An announcement without addresses clears the address.
	bare := nodeAnn(t, a, 52, blue, nil)
	require.NoError(t, h.processor.ProcessMessage(bare))
	require.True(t, node.Address.IsNone())
}

// TestNodeAnnouncementBadSignature checks tampered node announcements are
// rejected and cached.
func TestNodeAnnouncementBadSignature(t *testing.T) {
	t.Parallel()

	h := newProcessorHarness(true, nil)
	a, b := newTestNode(t), newTestNode(t)
	require.NoError(t, h.processor.ProcessMessage(
		chanAnn(t, a, b, testRef, nil),
	))

	raw := nodeAnn(t, a, 50, color.RGBA{}, encodeAddr(t, "1.2.3.4", 1))

	// Flip a bit of the timestamp, which is covered by the signature.
	tampered := bytes.Clone(raw)
	tampered[lnwire.NodeAnnSigOffset+3] ^= 1

	err := h.processor.ProcessMessage(tampered)
	requireRejected(t, err, ReasonBadSignature)

	var rejected *ErrRejected
	require.ErrorAs(t, err, &rejected)
	require.True(t, rejected.ShouldPenalize())
	require.Equal(t, 1, h.processor.RejectCacheLen())

	node, _ := h.graph.Node(a.vertex())
	require.True(t, node.LastUpdate.IsNone())

	require.NoError(t, h.processor.ProcessMessage(raw))
}

// TestNodeAnnouncementBadAddress checks an undecodable address list leaves
// the node untouched.
func TestNodeAnnouncementBadAddress(t *testing.T) {
	t.Parallel()

	h := newProcessorHarness(false, nil)
	a, b := newTestNode(t), newTestNode(t)
	require.NoError(t, h.processor.ProcessMessage(
		chanAnn(t, a, b, testRef, nil),
	))
	posBefore := h.log.Len()

	badLists := []lnwire.RawAddrs{
		// Unknown descriptor type in first position.
		{0x09, 0x01, 0x02},

		// Truncated IPv4 descriptor.
		{0x01, 0x01, 0x02},
	}
	for _, addrs := range badLists {
		raw := nodeAnn(t, a, 50, color.RGBA{R: 1}, addrs)
		requireRejected(t, h.processor.ProcessMessage(raw),
			ReasonBadAddress)
	}

	node, ok := h.graph.Node(a.vertex())
	require.True(t, ok)
	require.True(t, node.LastUpdate.IsNone())
	require.False(t, node.HaveAnnouncement())
	require.Equal(t, color.RGBA{}, node.Color)
	require.Equal(t, posBefore, h.log.Len())

	// The node can still be announced afterwards with the same timestamp.
	require.NoError(t, h.processor.ProcessMessage(
		nodeAnn(t, a, 50, color.RGBA{}, encodeAddr(t, "1.2.3.4", 1)),
	))
}

// TestProcessMalformed checks undecodable input is rejected as malformed.
func TestProcessMalformed(t *testing.T) {
	t.Parallel()

	h := newProcessorHarness(true, nil)
	a, b := newTestNode(t), newTestNode(t)
	valid := chanAnn(t, a, b, testRef, nil)

	tests := []struct {
		name string
		raw  []byte
	}{
		{name: "empty", raw: nil},
		{name: "short type", raw: []byte{0x01}},
		{name: "unknown type", raw: []byte{0x00, 0x10, 0x00}},
		{name: "truncated", raw: valid[:len(valid)-10]},
		{
			name: "truncated update",
			raw:  signedUpdate(t, a, b, 1, 1)[:50],
		},
	}

	for _, test := range tests {
		requireRejected(
			t, h.processor.ProcessMessage(test.raw), ReasonMalformed,
		)
	}

	require.Zero(t, h.log.Len())
	require.Zero(t, h.graph.Stats().NumNodes)
}
