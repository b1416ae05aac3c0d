package keys

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/mosaicnetworks/murmur/src/crypto"
)

func TestSimpleKeyfile(t *testing.T) {
	dir, err := ioutil.TempDir("", "murmur-keys")
	if err != nil {
		t.Fatalf("err: %v ", err)
	}
	defer os.RemoveAll(dir)

	keyfile := NewSimpleKeyfile(filepath.Join(dir, "priv_key"))

	key, err := keyfile.ReadKey()
	if err == nil {
		t.Fatalf("ReadKey should fail on a missing file")
	}
	if key != nil {
		t.Fatalf("key is not nil")
	}

	key, _ = GenerateECDSAKey()

	if err := keyfile.WriteKey(key); err != nil {
		t.Fatalf("err: %v", err)
	}

	nKey, err := keyfile.ReadKey()
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	if !reflect.DeepEqual(*nKey, *key) {
		t.Fatalf("Keys do not match")
	}
}

func TestLoadOrCreate(t *testing.T) {
	dir, err := ioutil.TempDir("", "murmur-keys")
	if err != nil {
		t.Fatalf("err: %v ", err)
	}
	defer os.RemoveAll(dir)

	keyfile := NewSimpleKeyfile(filepath.Join(dir, "sub", "priv_key"))

	first, created, err := keyfile.LoadOrCreate()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if !created {
		t.Fatalf("first call should create the key")
	}

	second, created, err := keyfile.LoadOrCreate()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if created {
		t.Fatalf("second call should reuse the key")
	}
	if PrivateKeyHex(first) != PrivateKeyHex(second) {
		t.Fatalf("reloaded key differs")
	}
}

func TestFilePermissions(t *testing.T) {
	dir, err := ioutil.TempDir("", "murmur-keys")
	if err != nil {
		t.Fatalf("err: %v ", err)
	}
	defer os.RemoveAll(dir)

	key, _ := GenerateECDSAKey()
	rawKey := PrivateKeyHex(key)

	badKeyPath := filepath.Join(dir, "priv_key_bad")

	for _, fm := range []os.FileMode{0777, 0766, 0744, 0677, 0666, 0644, 0477, 0466, 0444} {
		ioutil.WriteFile(badKeyPath, []byte(rawKey), fm)
		os.Chmod(badKeyPath, fm)

		if _, err := NewSimpleKeyfile(badKeyPath).ReadKey(); err == nil {
			t.Fatalf("%o || ReadKey should return a permissions error", fm)
		}
	}

	goodKeyPath := filepath.Join(dir, "priv_key_good")

	for _, fm := range []os.FileMode{0700, 0600, 0500, 0400} {
		ioutil.WriteFile(goodKeyPath, []byte(rawKey), fm)
		os.Chmod(goodKeyPath, fm)

		if _, err := NewSimpleKeyfile(goodKeyPath).ReadKey(); err != nil {
			t.Fatalf("%o || ReadKey should not return error. Got %v", fm, err)
		}
	}
}

func TestSignatureEncoding(t *testing.T) {
	privKey, _ := GenerateECDSAKey()

	digest := crypto.SHA256([]byte("J'aime mieux forger mon ame que la meubler"))

	r, s, _ := Sign(privKey, digest)

	encodedSig := EncodeSignature(r, s)
	if len(encodedSig) != 128 {
		t.Fatalf("encoded signature should be 128 hex chars, got %d", len(encodedSig))
	}

	dr, ds, err := DecodeSignature(encodedSig)
	if err != nil {
		t.Fatal(err)
	}

	if r.Cmp(dr) != 0 {
		t.Fatalf("Signature Rs differ")
	}

	if s.Cmp(ds) != 0 {
		t.Fatalf("Signature Ss differ")
	}

	if _, _, err := DecodeSignature("abcd"); err == nil {
		t.Fatalf("short signature should not decode")
	}
}

func TestNodeKey(t *testing.T) {
	privKey, _ := GenerateECDSAKey()
	nodeKey := NewNodeKey(privKey)

	digest := crypto.SHA256([]byte("block hash"))

	sig, err := nodeKey.Sign(digest)
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	ok, err := nodeKey.Verify(digest, sig)
	if err != nil || !ok {
		t.Fatalf("signature should verify: %v", err)
	}

	pub, err := ParsePublicKeyHex(PublicKeyHex(nodeKey.Public()))
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	ok, _ = PublicVerifier{Pub: pub}.Verify(crypto.SHA256([]byte("other")), sig)
	if ok {
		t.Fatalf("signature should not verify over another digest")
	}
}
