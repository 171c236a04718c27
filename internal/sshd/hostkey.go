package sshd

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"

	"github.com/Tokeii0/FakeLinuxBaseLineCheck/internal/atomicfile"
)

const hostKeyBits = 2048

// LoadOrGenerateHostKey reads a PEM encoded host key from path. A new RSA
// key is generated and saved there only when the file does not exist; an
// existing key that cannot be read or parsed is an error and is left alone.
func LoadOrGenerateHostKey(path string) (ssh.Signer, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		signer, err := ssh.ParsePrivateKey(data)
		if err != nil {
			return nil, fmt.Errorf("parse host key %s: %w", path, err)
		}
		return signer, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read host key: %w", err)
	}

	key, err := rsa.GenerateKey(rand.Reader, hostKeyBits)
	if err != nil {
		return nil, fmt.Errorf("generate host key: %w", err)
	}
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}
	if err := atomicfile.Write(path, pem.EncodeToMemory(block), 0600); err != nil {
		return nil, fmt.Errorf("save host key: %w", err)
	}
	logrus.WithField("path", path).Info("generated new host key")
	return ssh.NewSignerFromKey(key)
}
