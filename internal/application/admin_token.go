package application

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/crypto/argon2"
)

var (
	ErrInvalidTokenHash         = errors.New("invalid admin token hash format")
	ErrIncompatibleTokenVersion = errors.New("incompatible admin token hash version")
)

type Argon2idParams struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

var DefaultArgon2idParams = Argon2idParams{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 2,
	SaltLength:  16,
	KeyLength:   32,
}

// CreateTokenHash encodes token as $argon2id$v=19$m=...,t=...,p=...$salt$hash.
func CreateTokenHash(token string, params Argon2idParams) (string, error) {
	salt := make([]byte, params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(token), salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLength)

	b64Salt := base64.RawStdEncoding.EncodeToString(salt)
	b64Hash := base64.RawStdEncoding.EncodeToString(hash)

	format := "$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s"
	return fmt.Sprintf(format, argon2.Version, params.Memory, params.Iterations, params.Parallelism, b64Salt, b64Hash), nil
}

// VerifyToken checks token against an encoded hash. A mismatch yields ErrUnauthorized.
func VerifyToken(encoded, token string) error {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return ErrInvalidTokenHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTokenHash, err)
	}
	if version != argon2.Version {
		return ErrIncompatibleTokenVersion
	}

	var params Argon2idParams
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.Memory, &params.Iterations, &params.Parallelism); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTokenHash, err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTokenHash, err)
	}
	decodedHash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTokenHash, err)
	}

	comparisonHash := argon2.IDKey([]byte(token), salt, params.Iterations, params.Memory, params.Parallelism, uint32(len(decodedHash)))
	if subtle.ConstantTimeCompare(decodedHash, comparisonHash) == 1 {
		return nil
	}
	return ErrUnauthorized
}

// AdminGate guards ledger mutations. An empty hash leaves them open. Accepted
// tokens are remembered briefly so argon2 runs once per token, not per request.
type AdminGate struct {
	hash     string
	accepted *expirable.LRU[string, struct{}]
}

// NewAdminGate validates the encoded hash up front.
func NewAdminGate(encodedHash string) (*AdminGate, error) {
	encodedHash = strings.TrimSpace(encodedHash)
	if encodedHash != "" && !strings.HasPrefix(encodedHash, "$argon2id$") {
		return nil, ErrInvalidTokenHash
	}
	return &AdminGate{
		hash:     encodedHash,
		accepted: expirable.NewLRU[string, struct{}](16, nil, 5*time.Minute),
	}, nil
}

// Enabled reports whether a token is required.
func (g *AdminGate) Enabled() bool {
	return g != nil && g.hash != ""
}

// Authorize returns ErrUnauthorized unless token matches the configured hash.
func (g *AdminGate) Authorize(token string) error {
	if !g.Enabled() {
		return nil
	}
	if token == "" {
		return ErrUnauthorized
	}
	sum := sha256.Sum256([]byte(token))
	key := hex.EncodeToString(sum[:])
	if _, ok := g.accepted.Get(key); ok {
		return nil
	}
	if err := VerifyToken(g.hash, token); err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	g.accepted.Add(key, struct{}{})
	return nil
}
