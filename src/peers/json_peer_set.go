package peers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"
)

const jsonPeerSetPath = "peers.json"

// JSONPeerSet persists peer addresses to a JSON file that human operators can
// edit.
type JSONPeerSet struct {
	l    sync.Mutex
	path string
}

// NewJSONPeerSet creates a JSONPeerSet for the peers.json file in base.
func NewJSONPeerSet(base string) *JSONPeerSet {
	return &JSONPeerSet{
		path: filepath.Join(base, jsonPeerSetPath),
	}
}

// Path returns the underlying file path.
func (j *JSONPeerSet) Path() string {
	return j.path
}

// jsonPeer is the object form of an entry, kept so that files listing
// {"NetAddr": "host:port"} objects can be read as well as plain strings.
type jsonPeer struct {
	NetAddr string `json:"NetAddr"`
}

// PeerSet parses the underlying file. An empty file yields an empty set.
func (j *JSONPeerSet) PeerSet() (*PeerSet, error) {
	j.l.Lock()
	defer j.l.Unlock()

	buf, err := ioutil.ReadFile(j.path)
	if err != nil {
		return nil, err
	}

	if len(bytes.TrimSpace(buf)) == 0 {
		return NewPeerSet(nil), nil
	}

	var entries []json.RawMessage
	if err := json.NewDecoder(bytes.NewReader(buf)).Decode(&entries); err != nil {
		return nil, err
	}

	addrs := make([]string, 0, len(entries))
	for _, e := range entries {
		var s string
		if err := json.Unmarshal(e, &s); err == nil {
			addrs = append(addrs, s)
			continue
		}
		var p jsonPeer
		if err := json.Unmarshal(e, &p); err != nil {
			return nil, fmt.Errorf("invalid peers.json entry %s: %v", e, err)
		}
		addrs = append(addrs, p.NetAddr)
	}

	return NewPeerSet(addrs), nil
}

// Write persists addrs as a JSON array of strings.
func (j *JSONPeerSet) Write(addrs []string) error {
	j.l.Lock()
	defer j.l.Unlock()

	if addrs == nil {
		addrs = []string{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(addrs); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(j.path), 0700); err != nil {
		return err
	}

	return ioutil.WriteFile(j.path, buf.Bytes(), 0644)
}
