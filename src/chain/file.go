package chain

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/mosaicnetworks/murmur/src/block"
)

// DefaultChainFile is the file written by SaveToFile when no path is given.
const DefaultChainFile = "blockchain.json"

// SaveToFile writes the chain as a pretty JSON array.
func (c *Chain) SaveToFile(path string) error {
	js, err := c.ToJSON(true)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	return ioutil.WriteFile(path, []byte(js), 0644)
}

// LoadFromFile reads a chain written by SaveToFile and validates it.
func LoadFromFile(path string, difficulty int) (*Chain, error) {
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var blocks []*block.Block
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return nil, err
	}

	return FromBlocks(blocks, difficulty)
}
