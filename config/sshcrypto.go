package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"
)

// loadSigner parses the private key at keyPath. ECDSA keys are refused: their
// signatures are randomized, so they cannot derive the same key twice.
func loadSigner(keyPath, passphrase string) (ssh.Signer, error) {
	data, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read SSH key: %w", err)
	}

	signer, err := ssh.ParsePrivateKey(data)
	var missing *ssh.PassphraseMissingError
	if errors.As(err, &missing) {
		if passphrase == "" {
			return nil, fmt.Errorf("SSH key %s is encrypted: set PCHAT_SSH_PASSPHRASE", keyPath)
		}
		signer, err = ssh.ParsePrivateKeyWithPassphrase(data, []byte(passphrase))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse SSH key %s: %w", keyPath, err)
	}

	switch signer.PublicKey().Type() {
	case ssh.KeyAlgoECDSA256, ssh.KeyAlgoECDSA384, ssh.KeyAlgoECDSA521:
		return nil, fmt.Errorf("SSH key %s: ECDSA keys cannot derive a stable encryption key, use ed25519 or RSA", keyPath)
	}

	if Debug && DebugLog != nil {
		DebugLog.Printf("[Config] credential key %s (%s)", keyPath, signer.PublicKey().Type())
	}
	return signer, nil
}

// FindSSHKeys returns the private keys in ~/.ssh that can seal credentials,
// preferred first.
func FindSSHKeys() []string {
	sshDir := filepath.Join(GetHomeDir(), ".ssh")

	var found []string
	for _, name := range []string{"pchat_ed25519", "id_ed25519", "id_rsa"} {
		path := filepath.Join(sshDir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if strings.Contains(string(data), "PRIVATE KEY") {
			found = append(found, path)
		}
	}
	return found
}
