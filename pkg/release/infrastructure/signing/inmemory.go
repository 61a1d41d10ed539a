package signing

import (
	"crypto/sha256"
	"os"
	"strings"
	"sync"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/packet"
	"github.com/pkg/errors"

	"github.com/tss-calculator/release/pkg/release/application/model"
)

type signingKey struct {
	entity *openpgp.Entity
	config *packet.Config
}

// inMemorySigner decrypts each distinct key once per process.
type inMemorySigner struct {
	mu   sync.Mutex
	keys map[[32]byte]signingKey
}

func newInMemorySigner() *inMemorySigner {
	return &inMemorySigner{keys: make(map[[32]byte]signingKey)}
}

func (signer *inMemorySigner) sign(artifactPath string, credential model.InMemoryKey) (string, error) {
	key, err := signer.key(credential)
	if err != nil {
		return "", err
	}
	artifact, err := os.Open(artifactPath)
	if err != nil {
		return "", errors.Wrapf(err, "failed to open %v", artifactPath)
	}
	defer artifact.Close()
	output := signaturePath(artifactPath)
	signature, err := os.Create(output)
	if err != nil {
		return "", errors.Wrapf(err, "failed to create %v", output)
	}
	err = openpgp.ArmoredDetachSign(signature, key.entity, artifact, key.config)
	closeErr := signature.Close()
	if err != nil {
		return "", errors.Wrapf(err, "failed to sign %v", artifactPath)
	}
	if closeErr != nil {
		return "", errors.Wrapf(closeErr, "failed to write %v", output)
	}
	return output, nil
}

func (signer *inMemorySigner) key(credential model.InMemoryKey) (signingKey, error) {
	fingerprint := sha256.Sum256([]byte(credential.SecretKey + "\x00" + credential.ID))
	signer.mu.Lock()
	defer signer.mu.Unlock()
	if key, ok := signer.keys[fingerprint]; ok {
		return key, nil
	}
	key, err := loadSigningKey(credential)
	if err != nil {
		return signingKey{}, err
	}
	signer.keys[fingerprint] = key
	return key, nil
}

func loadSigningKey(credential model.InMemoryKey) (signingKey, error) {
	entities, err := openpgp.ReadArmoredKeyRing(strings.NewReader(credential.SecretKey))
	if err != nil {
		return signingKey{}, errors.Wrap(err, "failed to read in-memory signing key")
	}
	entity, keyID, err := selectEntity(entities, credential.ID)
	if err != nil {
		return signingKey{}, err
	}
	if entity.PrivateKey == nil {
		return signingKey{}, errors.New("in-memory signing key has no private key")
	}
	err = entity.DecryptPrivateKeys([]byte(credential.Passphrase))
	if err != nil {
		return signingKey{}, errors.Wrap(err, "failed to decrypt in-memory signing key")
	}
	return signingKey{entity: entity, config: &packet.Config{SigningKeyId: keyID}}, nil
}

// selectEntity picks the entity owning keyID, or the first entity when keyID is empty.
// The returned key id is non-zero only when a subkey was requested.
func selectEntity(entities openpgp.EntityList, keyID string) (*openpgp.Entity, uint64, error) {
	if len(entities) == 0 {
		return nil, 0, errors.New("in-memory signing key ring is empty")
	}
	if keyID == "" {
		return entities[0], 0, nil
	}
	wanted := strings.ToUpper(strings.TrimPrefix(strings.TrimPrefix(keyID, "0x"), "0X"))
	for _, entity := range entities {
		if matchesKeyID(entity.PrimaryKey, wanted) {
			return entity, 0, nil
		}
		for _, subkey := range entity.Subkeys {
			if matchesKeyID(subkey.PublicKey, wanted) {
				return entity, subkey.PublicKey.KeyId, nil
			}
		}
	}
	return nil, 0, errors.Errorf("signing key %v not found in key ring", keyID)
}

func matchesKeyID(key *packet.PublicKey, wanted string) bool {
	return key != nil && (key.KeyIdString() == wanted || key.KeyIdShortString() == wanted)
}
