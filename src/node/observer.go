package node

import "github.com/mosaicnetworks/murmur/src/block"

// Observer is notified of the events a user interface cares about. Callbacks
// run on the node's goroutines and must not block.
type Observer interface {
	// OnChat is called for every inbound Chat message.
	OnChat(sender string, text string)
	// OnBlock is called when a block is appended, whether mined locally or
	// received from sender.
	OnBlock(sender string, b *block.Block)
	// OnSync is called when a sync completes.
	OnSync(res SyncResult)
}

// NopObserver ignores everything.
type NopObserver struct{}

// OnChat implements Observer.
func (NopObserver) OnChat(string, string) {}

// OnBlock implements Observer.
func (NopObserver) OnBlock(string, *block.Block) {}

// OnSync implements Observer.
func (NopObserver) OnSync(SyncResult) {}
