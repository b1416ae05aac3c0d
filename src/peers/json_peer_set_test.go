package peers

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestJSONPeerSet(t *testing.T) {
	dir, err := ioutil.TempDir("", "murmur-peers")
	if err != nil {
		t.Fatalf("err: %v ", err)
	}
	defer os.RemoveAll(dir)

	store := NewJSONPeerSet(dir)

	// Try a read, should get nothing
	peerSet, err := store.PeerSet()
	if err == nil {
		t.Fatalf("store.PeerSet() should generate an error")
	}
	if peerSet != nil {
		t.Fatalf("peerSet: %v", peerSet)
	}

	addrs := []string{"127.0.0.1:1339", "127.0.0.1:1337", "127.0.0.1:1338"}

	if err := store.Write(addrs); err != nil {
		t.Fatalf("err: %v", err)
	}

	peerSet, err = store.PeerSet()
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	want := []string{"127.0.0.1:1337", "127.0.0.1:1338", "127.0.0.1:1339"}
	if got := peerSet.Addresses(); !reflect.DeepEqual(got, want) {
		t.Fatalf("peer addresses = %v, want %v", got, want)
	}
}

func TestJSONPeerSetObjects(t *testing.T) {
	dir, err := ioutil.TempDir("", "murmur-peers")
	if err != nil {
		t.Fatalf("err: %v ", err)
	}
	defer os.RemoveAll(dir)

	content := `[{"NetAddr":"10.0.0.1:1337","PubKeyHex":"0X04"}, "10.0.0.2:1337"]`
	if err := ioutil.WriteFile(filepath.Join(dir, "peers.json"), []byte(content), 0644); err != nil {
		t.Fatalf("err: %v", err)
	}

	peerSet, err := NewJSONPeerSet(dir).PeerSet()
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	want := []string{"10.0.0.1:1337", "10.0.0.2:1337"}
	if got := peerSet.Addresses(); !reflect.DeepEqual(got, want) {
		t.Fatalf("peer addresses = %v, want %v", got, want)
	}
}

func TestJSONPeerSetEmptyFile(t *testing.T) {
	dir, err := ioutil.TempDir("", "murmur-peers")
	if err != nil {
		t.Fatalf("err: %v ", err)
	}
	defer os.RemoveAll(dir)

	store := NewJSONPeerSet(dir)
	if err := ioutil.WriteFile(store.Path(), nil, 0644); err != nil {
		t.Fatalf("err: %v", err)
	}

	peerSet, err := store.PeerSet()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if peerSet.Len() != 0 {
		t.Fatalf("expected empty peer set, got %v", peerSet.Addresses())
	}
}
