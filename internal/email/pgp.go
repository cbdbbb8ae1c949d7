package email

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
)

// Encryptor encrypts message bodies to a set of OpenPGP public keys.
type Encryptor struct {
	keys openpgp.EntityList
}

// LoadEncryptor reads an armored public key ring from path.
func LoadEncryptor(path string) (*Encryptor, error) {
	keyData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read PGP public key at %s: %w", path, err)
	}
	enc, err := NewEncryptor(bytes.NewReader(keyData))
	if err != nil {
		return nil, fmt.Errorf("cannot parse PGP public key at %s: %w", path, err)
	}
	return enc, nil
}

// NewEncryptor parses an armored public key ring.
func NewEncryptor(armored io.Reader) (*Encryptor, error) {
	keys, err := openpgp.ReadArmoredKeyRing(armored)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("key ring holds no keys")
	}
	return &Encryptor{keys: keys}, nil
}

// Encrypt returns plaintext as an ASCII-armored PGP message with CRLF line
// endings.
func (e *Encryptor) Encrypt(plaintext []byte) ([]byte, error) {
	var buf bytes.Buffer
	armorWriter, err := armor.Encode(&buf, "PGP MESSAGE", nil)
	if err != nil {
		return nil, fmt.Errorf("creating armor writer: %w", err)
	}

	encWriter, err := openpgp.Encrypt(armorWriter, e.keys, nil, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("creating encrypt writer: %w", err)
	}
	if _, err := encWriter.Write(plaintext); err != nil {
		return nil, fmt.Errorf("writing encrypted data: %w", err)
	}
	if err := encWriter.Close(); err != nil {
		return nil, fmt.Errorf("closing encrypt writer: %w", err)
	}
	if err := armorWriter.Close(); err != nil {
		return nil, fmt.Errorf("closing armor writer: %w", err)
	}

	return bytes.ReplaceAll(buf.Bytes(), []byte("\n"), []byte("\r\n")), nil
}
