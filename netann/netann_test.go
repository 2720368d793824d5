package netann

import (
	"bytes"
	"errors"
	"image/color"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/ellemouton/lngossip/broadcast"
	"github.com/ellemouton/lngossip/graph"
	"github.com/ellemouton/lngossip/keychain"
	"github.com/ellemouton/lngossip/lnwire"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"
)

var testTime = time.Unix(1_700_000_000, 0)

// mockTxLocator is a static TxLocator.
type mockTxLocator map[chainhash.Hash][2]uint32

func (m mockTxLocator) LocateTx(txid chainhash.Hash) (uint32, uint32, error) {
	loc, ok := m[txid]
	if !ok {
		return 0, 0, errors.New("tx not found")
	}

	return loc[0], loc[1], nil
}

type testNode struct {
	priv   *btcec.PrivateKey
	pub    [33]byte
	signer *keychain.PrivKeyMessageSigner
}

func newTestNode(t *testing.T) *testNode {
	t.Helper()

	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	var pub [33]byte
	copy(pub[:], priv.PubKey().SerializeCompressed())

	return &testNode{
		priv:   priv,
		pub:    pub,
		signer: keychain.NewPrivKeyMessageSigner(priv),
	}
}

// orderedNodes returns two nodes where the first has the lower key.
func orderedNodes(t *testing.T) (*testNode, *testNode) {
	a, b := newTestNode(t), newTestNode(t)
	if IsNode2(a.pub, b.pub) {
		return b, a
	}

	return a, b
}

// TestChannelRefFromOutPoint checks funding outputs are resolved through the
// locator.
func TestChannelRefFromOutPoint(t *testing.T) {
	t.Parallel()

	txid := chainhash.Hash{1}
	locator := mockTxLocator{txid: {100, 2}}

	ref, err := ChannelRefFromOutPoint(locator, wire.OutPoint{
		Hash: txid, Index: 1,
	})
	require.NoError(t, err)
	require.Equal(t, "100:2:1", ref.String())

	_, err = ChannelRefFromOutPoint(locator, wire.OutPoint{
		Hash: chainhash.Hash{2},
	})
	require.Error(t, err)

	_, err = ChannelRefFromOutPoint(locator, wire.OutPoint{
		Hash: txid, Index: 1 << 16,
	})
	require.Error(t, err)
}

// TestCreateChannelUpdate checks the direction bit and signature of our
// channel updates.
func TestCreateChannelUpdate(t *testing.T) {
	t.Parallel()

	lo, hi := orderedNodes(t)
	ref := lnwire.ChannelRef{BlockHeight: 100, TxIndex: 2}
	policy := ChannelPolicy{
		TimeLockDelta: 144, MinHTLC: 1, BaseFee: 1000, FeeRate: 10,
	}

	tests := []struct {
		name    string
		self    *testNode
		remote  *testNode
		wantDir uint8
	}{
		{name: "lower key", self: lo, remote: hi, wantDir: 0},
		{name: "higher key", self: hi, remote: lo, wantDir: 1},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			upd, raw, err := CreateChannelUpdate(
				test.self.signer, test.self.pub,
				test.remote.pub, ref, policy, 1000,
			)
			require.NoError(t, err)
			require.Equal(t, test.wantDir, upd.Direction())
			require.False(t, upd.Signature.IsZero())

			msg, err := lnwire.ReadMessage(bytes.NewReader(raw))
			require.NoError(t, err)
			require.Equal(t, upd, msg)

			require.NoError(t, ValidateChannelUpdateAnn(
				raw, test.self.priv.PubKey(), upd,
			))
			require.ErrorIs(t, ValidateChannelUpdateAnn(
				raw, test.remote.priv.PubKey(), upd,
			), ErrInvalidSignature)

			tampered := bytes.Clone(raw)
			tampered[len(tampered)-1] ^= 1
			require.ErrorIs(t, ValidateChannelUpdateAnn(
				tampered, test.self.priv.PubKey(), upd,
			), ErrInvalidSignature)
		})
	}
}

// TestCreateChanAnnouncement checks key ordering and that an announcement
// completed with the counterparty's signatures validates.
func TestCreateChanAnnouncement(t *testing.T) {
	t.Parallel()

	lo, hi := orderedNodes(t)
	ref := lnwire.ChannelRef{BlockHeight: 100, TxIndex: 2}

	// The higher key signs first, without any of our signatures.
	hiAnn, hiRaw, err := CreateChanAnnouncement(
		hi.signer, hi.pub, ref, &LocalChannel{RemotePubKey: lo.pub},
	)
	require.NoError(t, err)
	require.Equal(t, lo.pub, hiAnn.NodeID1)
	require.Equal(t, hi.pub, hiAnn.NodeID2)
	require.True(t, hiAnn.NodeSig1.IsZero())
	require.False(t, hiAnn.NodeSig2.IsZero())
	require.True(t, hiAnn.FundingSig1.IsZero())
	require.False(t, hiAnn.FundingSig2.IsZero())
	require.Error(t, ValidateChannelAnn(hiRaw, hiAnn))

	// The lower key completes the proof with the remote halves.
	ann, raw, err := CreateChanAnnouncement(
		lo.signer, lo.pub, ref, &LocalChannel{
			RemotePubKey:     hi.pub,
			RemoteNodeSig:    fn.Some(hiAnn.NodeSig2),
			RemoteFundingSig: fn.Some(hiAnn.FundingSig2),
		},
	)
	require.NoError(t, err)
	require.Equal(t, lo.pub, ann.NodeID1)
	require.Equal(t, lo.pub, ann.FundingKey1)
	require.Equal(t, hi.pub, ann.FundingKey2)
	require.NoError(t, ValidateChannelAnn(raw, ann))

	msg, err := lnwire.ReadMessage(bytes.NewReader(raw))
	require.NoError(t, err)
	require.Equal(t, ann, msg)
}

// TestCreateChanAnnouncementFundingKey checks a dedicated funding key signs
// the node id when one is configured.
func TestCreateChanAnnouncementFundingKey(t *testing.T) {
	t.Parallel()

	self, remote := newTestNode(t), newTestNode(t)
	fundingPriv, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	var fundingPub [33]byte
	copy(fundingPub[:], fundingPriv.PubKey().SerializeCompressed())

	loc := keychain.KeyLocator{Family: keychain.KeyFamilyMultiSig}
	self.signer.AddKey(loc, fundingPriv)

	ann, _, err := CreateChanAnnouncement(
		self.signer, self.pub, lnwire.ChannelRef{BlockHeight: 1},
		&LocalChannel{
			RemotePubKey:    remote.pub,
			LocalFundingKey: fn.Some(fundingPub),
			FundingKeyLoc:   fn.Some(loc),
		},
	)
	require.NoError(t, err)

	fundingKey, fundingSig := ann.FundingKey1, ann.FundingSig1
	if IsNode2(self.pub, remote.pub) {
		fundingKey, fundingSig = ann.FundingKey2, ann.FundingSig2
	}
	require.Equal(t, fundingPub, fundingKey)
	require.NoError(t, verifyData(self.pub[:], fundingSig, fundingPub))
}

// TestCreateNodeAnnouncement checks our node announcement is signed over the
// raw encoding.
func TestCreateNodeAnnouncement(t *testing.T) {
	t.Parallel()

	self := newTestNode(t)
	alias, err := lnwire.NewNodeAlias("alice")
	require.NoError(t, err)

	params := NodeAnnParams{
		Addr:  lnwire.NetAddr{Host: "203.0.113.7", Port: 9735},
		Alias: alias,
		Color: color.RGBA{R: 0x33, G: 0x99, B: 0xff},
	}
	ann, raw, err := CreateNodeAnnouncement(self.signer, self.pub, params, 50)
	require.NoError(t, err)
	require.EqualValues(t, 50, ann.Timestamp)
	require.NoError(t, ValidateNodeAnnSignature(raw, ann))

	addr, err := lnwire.DecodeAddresses(ann.Addresses)
	require.NoError(t, err)
	require.Equal(t, fn.Some(params.Addr), addr)

	tampered := bytes.Clone(raw)
	tampered[lnwire.NodeAnnSigOffset] ^= 1
	require.ErrorIs(t, ValidateNodeAnnSignature(tampered, ann),
		ErrInvalidSignature)

	_, _, err = CreateNodeAnnouncement(
		self.signer, self.pub, NodeAnnParams{
			Addr: lnwire.NetAddr{Host: "", Port: 1},
		}, 50,
	)
	require.Error(t, err)
}

type producerHarness struct {
	self     *testNode
	remote   *testNode
	clock    *clock.TestClock
	log      *broadcast.Log
	graph    *graph.Graph
	producer *Producer
	channel  *LocalChannel
}

func newProducerHarness(t *testing.T,
	addr fn.Option[lnwire.NetAddr]) *producerHarness {

	t.Helper()

	h := &producerHarness{
		self:   newTestNode(t),
		remote: newTestNode(t),
		clock:  clock.NewTestClock(testTime),
		log:    broadcast.NewLog(),
		graph:  graph.New(),
	}

	txid := chainhash.Hash{7}
	h.channel = &LocalChannel{
		RemotePubKey:    h.remote.pub,
		FundingOutpoint: wire.OutPoint{Hash: txid},
	}

	h.producer = NewProducer(&ProducerConfig{
		Signer:    h.self.signer,
		SelfKey:   h.self.pub,
		TxLocator: mockTxLocator{txid: {100, 2}},
		Policy: ChannelPolicy{
			TimeLockDelta: 40, MinHTLC: 1, BaseFee: 1000,
			FeeRate: 1,
		},
		ExternalAddr: addr,
		Clock:        h.clock,
		Broadcaster:  h.log,
		Graph:        h.graph,
	})

	return h
}

// TestProducerAnnounceChannel checks both channel messages are queued under
// one channel slot and recorded in the local graph.
func TestProducerAnnounceChannel(t *testing.T) {
	t.Parallel()

	h := newProducerHarness(t, fn.None[lnwire.NetAddr]())

	ref, err := h.producer.AnnounceChannel(h.channel)
	require.NoError(t, err)
	require.Equal(t, "100:2:0", ref.String())

	live := h.log.Live()
	require.Len(t, live, 2)
	require.Equal(t, lnwire.MsgChannelAnnouncement, live[0].Type)
	require.Equal(t, lnwire.MsgChannelUpdate, live[1].Type)
	require.Equal(t, broadcast.ChannelKey(ref), live[0].Key)
	require.Equal(t, broadcast.ChannelKey(ref), live[1].Key)

	msg, err := lnwire.ReadMessage(bytes.NewReader(live[1].Payload))
	require.NoError(t, err)
	upd := msg.(*lnwire.ChannelUpdate)
	require.EqualValues(t, testTime.Unix(), upd.Timestamp)
	require.NoError(t, ValidateChannelUpdateAnn(
		live[1].Payload, h.self.priv.PubKey(), upd,
	))

	// Our own direction is active with our policy, the remote one is
	// known but not yet updated.
	ours, ok := h.graph.Edge(ref, upd.Direction())
	require.True(t, ok)
	require.True(t, ours.Active)
	require.Equal(t, graph.Vertex(h.self.pub), ours.Source)
	require.EqualValues(t, 1000, ours.Policy.FeeBaseMSat)

	theirs, ok := h.graph.Edge(ref, 1-upd.Direction())
	require.True(t, ok)
	require.False(t, theirs.Active)

	// Announcing again within the same second must still produce a
	// strictly newer update, which supersedes the old one.
	_, err = h.producer.AnnounceChannel(h.channel)
	require.NoError(t, err)
	require.Equal(t, 2, h.log.NumLive())

	queued, ok := h.log.Lookup(
		lnwire.MsgChannelUpdate, broadcast.ChannelKey(ref),
	)
	require.True(t, ok)
	msg, err = lnwire.ReadMessage(bytes.NewReader(queued.Payload))
	require.NoError(t, err)
	require.EqualValues(
		t, testTime.Unix()+1, msg.(*lnwire.ChannelUpdate).Timestamp,
	)

	// Unknown funding transactions can't be announced.
	_, err = h.producer.AnnounceChannel(&LocalChannel{
		RemotePubKey:    h.remote.pub,
		FundingOutpoint: wire.OutPoint{Hash: chainhash.Hash{9}},
	})
	require.Error(t, err)
}

// TestProducerAnnounceNode checks the preconditions of our node
// announcement.
func TestProducerAnnounceNode(t *testing.T) {
	t.Parallel()

	noAddr := newProducerHarness(t, fn.None[lnwire.NetAddr]())
	require.ErrorIs(t, noAddr.producer.AnnounceNode(1), ErrNoExternalAddr)
	require.Zero(t, noAddr.log.Len())

	addr := lnwire.NetAddr{Host: "203.0.113.7", Port: 9735}
	h := newProducerHarness(t, fn.Some(addr))
	require.ErrorIs(t, h.producer.AnnounceNode(0), ErrNoActiveChannels)
	require.Zero(t, h.log.Len())

	require.NoError(t, h.producer.AnnounceNode(1))

	queued, ok := h.log.Lookup(
		lnwire.MsgNodeAnnouncement, broadcast.NodeKey(h.self.pub),
	)
	require.True(t, ok)

	msg, err := lnwire.ReadMessage(bytes.NewReader(queued.Payload))
	require.NoError(t, err)
	ann := msg.(*lnwire.NodeAnnouncement)
	require.NoError(t, ValidateNodeAnnSignature(queued.Payload, ann))

	node, ok := h.graph.Node(graph.Vertex(h.self.pub))
	require.True(t, ok)
	require.Equal(t, fn.Some(addr), node.Address)
	require.Equal(t, queued.Payload, node.Announcement)

	h.clock.SetTime(testTime.Add(time.Hour))
	require.NoError(t, h.producer.AnnounceNode(1))
	require.Equal(t, fn.Some(uint32(testTime.Add(time.Hour).Unix())),
		node.LastUpdate)
}

// TestProducerTimestampsFollowGraph checks our gossip is newer than whatever
// the graph already holds for our own records, even if our clock is behind.
func TestProducerTimestampsFollowGraph(t *testing.T) {
	t.Parallel()

	addr := lnwire.NetAddr{Host: "203.0.113.7", Port: 9735}
	h := newProducerHarness(t, fn.Some(addr))

	ref, err := h.producer.AnnounceChannel(h.channel)
	require.NoError(t, err)

	var direction uint8
	if IsNode2(h.self.pub, h.remote.pub) {
		direction = 1
	}

	// A later update for our direction and a later node announcement
	// reach the graph from elsewhere.
	future := uint32(testTime.Unix()) + 1000
	require.NoError(t, h.graph.UpdateEdgePolicy(
		ref, direction, future, graph.EdgePolicy{}, []byte{1},
	))
	require.NoError(t, h.producer.AnnounceNode(1))
	self := graph.Vertex(h.self.pub)
	require.NoError(t, h.graph.UpdateNode(self, graph.NodeUpdate{
		Timestamp: future, Announcement: []byte{2},
	}))

	h.clock.SetTime(testTime.Add(10 * time.Second))

	_, err = h.producer.AnnounceChannel(h.channel)
	require.NoError(t, err)
	edge, ok := h.graph.Edge(ref, direction)
	require.True(t, ok)
	require.Equal(t, fn.Some(future+1), edge.LastUpdate)

	queued, ok := h.log.Lookup(
		lnwire.MsgChannelUpdate, broadcast.ChannelKey(ref),
	)
	require.True(t, ok)
	msg, err := lnwire.ReadMessage(bytes.NewReader(queued.Payload))
	require.NoError(t, err)
	require.Equal(t, future+1, msg.(*lnwire.ChannelUpdate).Timestamp)

	require.NoError(t, h.producer.AnnounceNode(1))
	node, ok := h.graph.Node(self)
	require.True(t, ok)
	require.Equal(t, fn.Some(future+1), node.LastUpdate)
}

// mockUtxoSource is a static UtxoSource.
type mockUtxoSource map[lnwire.ChannelRef]*wire.TxOut

func (m mockUtxoSource) FetchUtxo(ref lnwire.ChannelRef) (*wire.TxOut,
	error) {

	txOut, ok := m[ref]
	if !ok {
		return nil, errors.New("output not found")
	}

	return txOut, nil
}

// TestFundingValidator checks announced funding keys are matched against the
// P2WSH script of the referenced output.
func TestFundingValidator(t *testing.T) {
	t.Parallel()

	lo, hi := orderedNodes(t)
	other := newTestNode(t)

	pkScript, err := FundingPkScript(lo.pub, hi.pub)
	require.NoError(t, err)
	require.Equal(t, txscript.WitnessV0ScriptHashTy,
		txscript.GetScriptClass(pkScript))

	// Key order doesn't change the script.
	swapped, err := FundingPkScript(hi.pub, lo.pub)
	require.NoError(t, err)
	require.Equal(t, pkScript, swapped)

	ref := lnwire.ChannelRef{BlockHeight: 100, TxIndex: 2}
	validator := NewFundingValidator(mockUtxoSource{
		ref: {Value: 100_000, PkScript: pkScript},
	})

	tests := []struct {
		name       string
		ref        lnwire.ChannelRef
		key1, key2 [33]byte
		mismatch   bool
		fail       bool
	}{
		{
			name: "match",
			ref:  ref,
			key1: lo.pub,
			key2: hi.pub,
		},
		{
			name:     "wrong key",
			ref:      ref,
			key1:     lo.pub,
			key2:     other.pub,
			mismatch: true,
			fail:     true,
		},
		{
			name:     "invalid key",
			ref:      ref,
			key1:     lo.pub,
			key2:     [33]byte{0x05},
			mismatch: true,
			fail:     true,
		},
		{
			name: "unknown output",
			ref:  lnwire.ChannelRef{BlockHeight: 7},
			key1: lo.pub,
			key2: hi.pub,
			fail: true,
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			err := validator.ValidateFundingOutput(
				test.ref, test.key1, test.key2,
			)
			if !test.fail {
				require.NoError(t, err)
				return
			}

			require.Error(t, err)
			require.Equal(
				t, test.mismatch,
				errors.Is(err, ErrFundingMismatch),
			)
		})
	}
}
