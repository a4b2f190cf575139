package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caskvcs/cask/pkg/repo"
	"golang.org/x/crypto/ssh"
)

const (
	sshSignatureBegin  = "-----BEGIN SSH SIGNATURE-----"
	sshSignatureEnd    = "-----END SSH SIGNATURE-----"
	tagSignaturePrefix = "sshsig-v1"
)

// newSSHTagSigner loads an SSH private key and returns a TagSigner producing
// a self-contained armored block: the signature line carries the key format,
// the public key, and the raw signature, so verification needs no keychain.
func newSSHTagSigner(keyPath string) (repo.TagSigner, string, error) {
	resolvedPath, err := resolveSigningKeyPath(keyPath)
	if err != nil {
		return nil, "", err
	}

	raw, err := os.ReadFile(resolvedPath)
	if err != nil {
		return nil, "", fmt.Errorf("read signing key %q: %w", resolvedPath, err)
	}
	signer, err := ssh.ParsePrivateKey(raw)
	if err != nil {
		return nil, "", fmt.Errorf("parse signing key %q: %w", resolvedPath, err)
	}

	pub := signer.PublicKey()
	pubB64 := base64.StdEncoding.EncodeToString(pub.Marshal())

	tagSigner := func(payload []byte) (string, error) {
		sig, err := signer.Sign(rand.Reader, payload)
		if err != nil {
			return "", err
		}
		sigB64 := base64.StdEncoding.EncodeToString(sig.Blob)
		return fmt.Sprintf(
			"%s\n%s:%s:%s:%s\n%s\n",
			sshSignatureBegin, tagSignaturePrefix, sig.Format, pubB64, sigB64, sshSignatureEnd,
		), nil
	}
	return tagSigner, resolvedPath, nil
}

// verifySSHTagSignature checks an armored signature block against the signed
// payload and returns the public key that verified it.
func verifySSHTagSignature(payload []byte, block string) (ssh.PublicKey, error) {
	line := strings.TrimSpace(block)
	line = strings.TrimPrefix(line, sshSignatureBegin)
	line = strings.TrimSuffix(line, sshSignatureEnd)
	line = strings.TrimSpace(line)

	parts := strings.SplitN(line, ":", 4)
	if len(parts) != 4 || parts[0] != tagSignaturePrefix {
		return nil, fmt.Errorf("malformed tag signature")
	}
	pubRaw, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, fmt.Errorf("decode signing key: %w", err)
	}
	pub, err := ssh.ParsePublicKey(pubRaw)
	if err != nil {
		return nil, fmt.Errorf("parse signing key: %w", err)
	}
	sigRaw, err := base64.StdEncoding.DecodeString(parts[3])
	if err != nil {
		return nil, fmt.Errorf("decode signature: %w", err)
	}

	sig := &ssh.Signature{Format: parts[1], Blob: sigRaw}
	if err := pub.Verify(payload, sig); err != nil {
		return nil, fmt.Errorf("signature does not verify: %w", err)
	}
	return pub, nil
}

func resolveSigningKeyPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path != "" {
		return expandUserPath(path)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	candidates := []string{
		filepath.Join(home, ".ssh", "id_ed25519"),
		filepath.Join(home, ".ssh", "id_ecdsa"),
		filepath.Join(home, ".ssh", "id_rsa"),
	}
	for _, candidate := range candidates {
		if st, err := os.Stat(candidate); err == nil && !st.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no default SSH private key found in ~/.ssh (id_ed25519, id_ecdsa, id_rsa)")
}

func expandUserPath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}
	return filepath.Abs(path)
}
