package object

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func testTree() *Tree {
	return &Tree{
		Entries: []TreeEntry{
			{Name: "spam", Mode: ModeFile, Target: SHA256.HashObject(KindBlob, []byte("x"))},
			{Name: "lib", Mode: ModeDir, Target: SHA256.HashObject(KindTree, nil)},
			{Name: "run", Mode: ModeExec, Target: SHA256.HashObject(KindBlob, []byte("y"))},
		},
	}
}

func testCommit() *Commit {
	return &Commit{
		Tree:    SHA256.HashObject(KindTree, nil),
		Parents: []Hash{SHA256.HashObject(KindCommit, []byte("p"))},
		Author: Signature{
			Name: "Test User", Email: "test@example.com", Unix: 1700000000, TZ: "+0100",
		},
		Committer: Signature{
			Name: "Other User", Email: "other@example.com", Unix: 1700000100, TZ: "-0700",
		},
		Message: "subject\n\nbody line.\n",
	}
}

func TestBlobRoundTrip(t *testing.T) {
	orig := &Blob{Data: []byte("My file content\n")}
	data := MarshalBlob(orig)
	if !bytes.Equal(data, orig.Data) {
		t.Errorf("blob serialization should be identity: got %q", data)
	}
	got, err := UnmarshalBlob(data)
	if err != nil {
		t.Fatalf("UnmarshalBlob: %v", err)
	}
	if !bytes.Equal(got.Data, orig.Data) {
		t.Errorf("blob round-trip: got %q, want %q", got.Data, orig.Data)
	}
}

func TestTreeRoundTrip(t *testing.T) {
	orig := testTree()
	data, err := MarshalTree(orig)
	if err != nil {
		t.Fatalf("MarshalTree: %v", err)
	}
	got, err := UnmarshalTree(data, SHA256)
	if err != nil {
		t.Fatalf("UnmarshalTree: %v", err)
	}

	if len(got.Entries) != len(orig.Entries) {
		t.Fatalf("entries: got %d, want %d", len(got.Entries), len(orig.Entries))
	}
	// Entries come back in canonical order: lib/ sorts after anything shorter,
	// so expect lib, run, spam.
	wantOrder := []string{"lib", "run", "spam"}
	for i, name := range wantOrder {
		if got.Entries[i].Name != name {
			t.Errorf("entry %d: got %q, want %q", i, got.Entries[i].Name, name)
		}
	}

	// Digest stability: re-serializing the decoded tree yields identical bytes.
	again, err := MarshalTree(got)
	if err != nil {
		t.Fatalf("MarshalTree(decoded): %v", err)
	}
	if !bytes.Equal(data, again) {
		t.Error("tree serialization not stable across a round trip")
	}
}

func TestTreeCanonicalOrderIndependentOfInsertion(t *testing.T) {
	a := testTree()
	b := &Tree{Entries: []TreeEntry{a.Entries[2], a.Entries[0], a.Entries[1]}}

	dataA, err := MarshalTree(a)
	if err != nil {
		t.Fatalf("MarshalTree(a): %v", err)
	}
	dataB, err := MarshalTree(b)
	if err != nil {
		t.Fatalf("MarshalTree(b): %v", err)
	}
	if !bytes.Equal(dataA, dataB) {
		t.Error("same entry set in different insertion order produced different bytes")
	}
	if SHA256.HashObject(KindTree, dataA) != SHA256.HashObject(KindTree, dataB) {
		t.Error("same entry set produced different hashes")
	}
}

func TestCompareEntriesDirTieBreak(t *testing.T) {
	// A subtree named "a" sorts as "a/", which places it after a blob "a.b"
	// ('/' = 0x2f > '.' = 0x2e) even though plain "a" < "a.b".
	blobTarget := SHA256.HashObject(KindBlob, nil)
	treeTarget := SHA256.HashObject(KindTree, nil)

	dir := TreeEntry{Name: "a", Mode: ModeDir, Target: treeTarget}
	file := TreeEntry{Name: "a.b", Mode: ModeFile, Target: blobTarget}
	if CompareEntries(file, dir) >= 0 {
		t.Error("blob \"a.b\" should sort before subtree \"a\"")
	}

	plain := TreeEntry{Name: "a", Mode: ModeFile, Target: blobTarget}
	if CompareEntries(plain, file) >= 0 {
		t.Error("blob \"a\" should sort before blob \"a.b\"")
	}

	tr := &Tree{Entries: []TreeEntry{dir, file}}
	data, err := MarshalTree(tr)
	if err != nil {
		t.Fatalf("MarshalTree: %v", err)
	}
	decoded, err := UnmarshalTree(data, SHA256)
	if err != nil {
		t.Fatalf("UnmarshalTree: %v", err)
	}
	if decoded.Entries[0].Name != "a.b" || decoded.Entries[1].Name != "a" {
		t.Errorf("serialized order = [%q %q], want [a.b a]", decoded.Entries[0].Name, decoded.Entries[1].Name)
	}
}

func TestMarshalTreeRejectsDuplicateNames(t *testing.T) {
	target := SHA256.HashObject(KindBlob, nil)
	tr := &Tree{Entries: []TreeEntry{
		{Name: "same", Mode: ModeFile, Target: target},
		{Name: "same", Mode: ModeExec, Target: target},
	}}
	if _, err := MarshalTree(tr); err == nil {
		t.Error("expected error for duplicate entry names")
	}
}

func TestMarshalTreeRejectsFileDirNameCollision(t *testing.T) {
	blob := SHA256.HashObject(KindBlob, nil)
	sub := SHA256.HashObject(KindTree, nil)

	// The file sorts as "a" and the directory as "a/", so "a.x" lands between
	// them and the two entries named "a" are not adjacent after sorting.
	tr := &Tree{Entries: []TreeEntry{
		{Name: "a", Mode: ModeFile, Target: blob},
		{Name: "a.x", Mode: ModeFile, Target: blob},
		{Name: "a", Mode: ModeDir, Target: sub},
	}}
	if _, err := MarshalTree(tr); err == nil {
		t.Error("expected error for file and directory sharing a name")
	}
}

func TestUnmarshalTreeBadMode(t *testing.T) {
	target := SHA256.HashObject(KindBlob, nil)
	tr := &Tree{Entries: []TreeEntry{{Name: "f", Mode: ModeFile, Target: target}}}
	data, err := MarshalTree(tr)
	if err != nil {
		t.Fatalf("MarshalTree: %v", err)
	}

	// Corrupt the mode octal in place: "100644" -> "999644" is not octal,
	// "777777" parses but is out of range.
	corrupted := bytes.Replace(data, []byte("100644"), []byte("777777"), 1)
	_, err = UnmarshalTree(corrupted, SHA256)
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected DecodeError, got: %v", err)
	}
	if decodeErr.Field != "mode" {
		t.Errorf("DecodeError field = %q, want \"mode\"", decodeErr.Field)
	}
}

func TestUnmarshalTreeTruncatedDigest(t *testing.T) {
	target := SHA256.HashObject(KindBlob, nil)
	tr := &Tree{Entries: []TreeEntry{{Name: "f", Mode: ModeFile, Target: target}}}
	data, err := MarshalTree(tr)
	if err != nil {
		t.Fatalf("MarshalTree: %v", err)
	}

	_, err = UnmarshalTree(data[:len(data)-4], SHA256)
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected DecodeError, got: %v", err)
	}
	if decodeErr.Field != "target" {
		t.Errorf("DecodeError field = %q, want \"target\"", decodeErr.Field)
	}
}

func TestCommitRoundTrip(t *testing.T) {
	orig := testCommit()
	data := MarshalCommit(orig)
	got, err := UnmarshalCommit(data)
	if err != nil {
		t.Fatalf("UnmarshalCommit: %v", err)
	}

	if got.Tree != orig.Tree {
		t.Errorf("tree: got %q, want %q", got.Tree, orig.Tree)
	}
	if len(got.Parents) != 1 || got.Parents[0] != orig.Parents[0] {
		t.Errorf("parents mismatch: %v", got.Parents)
	}
	if got.Author != orig.Author {
		t.Errorf("author: got %+v, want %+v", got.Author, orig.Author)
	}
	if got.Committer != orig.Committer {
		t.Errorf("committer: got %+v, want %+v", got.Committer, orig.Committer)
	}
	if got.Message != orig.Message {
		t.Errorf("message: got %q, want %q", got.Message, orig.Message)
	}

	if !bytes.Equal(MarshalCommit(got), data) {
		t.Error("commit serialization not stable across a round trip")
	}
}

func TestCommitRootAndMerge(t *testing.T) {
	root := testCommit()
	root.Parents = nil
	decoded, err := UnmarshalCommit(MarshalCommit(root))
	if err != nil {
		t.Fatalf("UnmarshalCommit(root): %v", err)
	}
	if len(decoded.Parents) != 0 {
		t.Errorf("root commit parents = %v, want none", decoded.Parents)
	}

	merge := testCommit()
	merge.Parents = []Hash{
		SHA256.HashObject(KindCommit, []byte("a")),
		SHA256.HashObject(KindCommit, []byte("b")),
	}
	decoded, err = UnmarshalCommit(MarshalCommit(merge))
	if err != nil {
		t.Fatalf("UnmarshalCommit(merge): %v", err)
	}
	if len(decoded.Parents) != 2 {
		t.Fatalf("merge commit parents = %d, want 2", len(decoded.Parents))
	}
	if decoded.Parents[0] != merge.Parents[0] || decoded.Parents[1] != merge.Parents[1] {
		t.Error("merge parent order not preserved")
	}
}

func TestCommitEncodingLabel(t *testing.T) {
	c := testCommit()
	c.Encoding = "ISO-8859-1"
	data := MarshalCommit(c)
	if !strings.Contains(string(data), "encoding ISO-8859-1\n") {
		t.Error("encoding header missing from serialized commit")
	}
	decoded, err := UnmarshalCommit(data)
	if err != nil {
		t.Fatalf("UnmarshalCommit: %v", err)
	}
	if decoded.Encoding != c.Encoding {
		t.Errorf("encoding: got %q, want %q", decoded.Encoding, c.Encoding)
	}

	c.Encoding = ""
	if strings.Contains(string(MarshalCommit(c)), "encoding") {
		t.Error("empty encoding label should not be serialized")
	}
}

func TestUnmarshalCommitMissingSeparator(t *testing.T) {
	_, err := UnmarshalCommit([]byte("tree abc\nauthor A <a@b> 1 +0000"))
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected DecodeError, got: %v", err)
	}
	if decodeErr.Field != "message" {
		t.Errorf("DecodeError field = %q, want \"message\"", decodeErr.Field)
	}
}

func TestUnmarshalCommitUnknownHeader(t *testing.T) {
	data := MarshalCommit(testCommit())
	corrupted := bytes.Replace(data, []byte("committer "), []byte("committed "), 1)
	_, err := UnmarshalCommit(corrupted)
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected DecodeError, got: %v", err)
	}
	if decodeErr.Field != "committed" {
		t.Errorf("DecodeError field = %q, want the unknown key", decodeErr.Field)
	}
}

func TestUnmarshalCommitBadTimestamp(t *testing.T) {
	data := []byte("tree abc\nauthor A <a@b> notanumber +0000\ncommitter A <a@b> 1 +0000\n\nmsg")
	_, err := UnmarshalCommit(data)
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected DecodeError, got: %v", err)
	}
	if decodeErr.Field != "author" {
		t.Errorf("DecodeError field = %q, want \"author\"", decodeErr.Field)
	}
}

func TestTagRoundTrip(t *testing.T) {
	orig := &Tag{
		Target:     SHA256.HashObject(KindCommit, []byte("c")),
		TargetKind: KindCommit,
		Name:       "v1.0.0",
		Tagger: Signature{
			Name: "Rel Eng", Email: "rel@example.com", Unix: 1700000000, TZ: "+0000",
		},
		Message: "first release\n",
	}
	data := MarshalTag(orig)
	got, err := UnmarshalTag(data)
	if err != nil {
		t.Fatalf("UnmarshalTag: %v", err)
	}
	if got.Target != orig.Target || got.TargetKind != orig.TargetKind ||
		got.Name != orig.Name || got.Tagger != orig.Tagger || got.Message != orig.Message {
		t.Errorf("tag round-trip mismatch: %+v", got)
	}
}

func TestUnmarshalTagBadTargetKind(t *testing.T) {
	data := []byte("object abc\ntype gadget\ntag v1\ntagger A <a@b> 1 +0000\n\nmsg")
	_, err := UnmarshalTag(data)
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected DecodeError, got: %v", err)
	}
	if decodeErr.Field != "type" {
		t.Errorf("DecodeError field = %q, want \"type\"", decodeErr.Field)
	}
}

func TestSignatureString(t *testing.T) {
	sig := Signature{Name: "A B", Email: "a@b.c", Unix: 42, TZ: "-0130"}
	want := "A B <a@b.c> 42 -0130"
	if sig.String() != want {
		t.Errorf("Signature.String() = %q, want %q", sig.String(), want)
	}
}
