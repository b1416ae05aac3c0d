package message

import "github.com/mosaicnetworks/murmur/src/block"

// Payload tags as they appear in the "type" field on the wire.
const (
	ChatType              = "Chat"
	PeerDiscoveryType     = "PeerDiscovery"
	PeerGossipType        = "PeerGossip"
	BlockchainRequestType = "BlockchainRequest"
	BlockchainReplyType   = "BlockchainReply"
	BlockchainTxType      = "BlockchainTx"
)

// Payload is the closed set of message bodies. Only the types of this package
// implement it.
type Payload interface {
	// Type returns the wire tag of the payload.
	Type() string
	// Accept dispatches the payload to the matching Handler method.
	Accept(sender string, h Handler) error
	isPayload()
}

// Handler has one method per payload variant. Adding a variant breaks every
// implementation until it handles the new case.
type Handler interface {
	HandleChat(sender string, p *Chat) error
	HandlePeerDiscovery(sender string, p *PeerDiscovery) error
	HandlePeerGossip(sender string, p *PeerGossip) error
	HandleBlockchainRequest(sender string, p *BlockchainRequest) error
	HandleBlockchainReply(sender string, p *BlockchainReply) error
	HandleBlockchainTx(sender string, p *BlockchainTx) error
}

// Chat is a free text message for the operator of the receiving node.
type Chat struct {
	Message string `json:"message"`
}

// PeerDiscovery asks the receiver to add the sender and gossip its peers back.
type PeerDiscovery struct{}

// PeerGossip carries a snapshot of the sender's peer addresses.
type PeerGossip struct {
	Peers []string `json:"peers"`
}

// BlockchainRequest asks the receiver for its whole chain.
type BlockchainRequest struct{}

// BlockchainReply carries a snapshot of the sender's chain.
type BlockchainReply struct {
	Chain []*block.Block `json:"chain"`
}

// BlockchainTx announces a freshly mined block.
type BlockchainTx struct {
	Block *block.Block `json:"block"`
}

func (*Chat) Type() string              { return ChatType }
func (*PeerDiscovery) Type() string     { return PeerDiscoveryType }
func (*PeerGossip) Type() string        { return PeerGossipType }
func (*BlockchainRequest) Type() string { return BlockchainRequestType }
func (*BlockchainReply) Type() string   { return BlockchainReplyType }
func (*BlockchainTx) Type() string      { return BlockchainTxType }

func (p *Chat) Accept(sender string, h Handler) error {
	return h.HandleChat(sender, p)
}

func (p *PeerDiscovery) Accept(sender string, h Handler) error {
	return h.HandlePeerDiscovery(sender, p)
}

func (p *PeerGossip) Accept(sender string, h Handler) error {
	return h.HandlePeerGossip(sender, p)
}

func (p *BlockchainRequest) Accept(sender string, h Handler) error {
	return h.HandleBlockchainRequest(sender, p)
}

func (p *BlockchainReply) Accept(sender string, h Handler) error {
	return h.HandleBlockchainReply(sender, p)
}

func (p *BlockchainTx) Accept(sender string, h Handler) error {
	return h.HandleBlockchainTx(sender, p)
}

func (*Chat) isPayload()              {}
func (*PeerDiscovery) isPayload()     {}
func (*PeerGossip) isPayload()        {}
func (*BlockchainRequest) isPayload() {}
func (*BlockchainReply) isPayload()   {}
func (*BlockchainTx) isPayload()      {}

// newPayload returns an empty payload for a wire tag.
func newPayload(tag string) (Payload, bool) {
	switch tag {
	case ChatType:
		return &Chat{}, true
	case PeerDiscoveryType:
		return &PeerDiscovery{}, true
	case PeerGossipType:
		return &PeerGossip{}, true
	case BlockchainRequestType:
		return &BlockchainRequest{}, true
	case BlockchainReplyType:
		return &BlockchainReply{}, true
	case BlockchainTxType:
		return &BlockchainTx{}, true
	}
	return nil, false
}
