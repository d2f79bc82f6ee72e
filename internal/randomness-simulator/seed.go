package simulator

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"math/big"
	"strconv"
)

// Seed é a semente do servidor; só o hash é publicado junto com cada palavra.
// Revelando ServerSeed depois, qualquer um recalcula Word e confere Hash.
type Seed struct {
	ServerSeed string
	Hash       string
}

// NewSeed usa a semente informada ou gera 32 bytes aleatórios
func NewSeed(serverSeed string) (Seed, error) {
	if serverSeed == "" {
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			return Seed{}, err
		}
		serverSeed = hex.EncodeToString(b)
	}
	sum := sha256.Sum256([]byte(serverSeed))
	return Seed{ServerSeed: serverSeed, Hash: hex.EncodeToString(sum[:])}, nil
}

// Word = HMAC-SHA256(serverSeed, "requestId:nonce:index") lido como inteiro sem sinal de 256 bits
func (s Seed) Word(requestID, nonce uint64, index uint32) *big.Int {
	mac := hmac.New(sha256.New, []byte(s.ServerSeed))
	mac.Write([]byte(strconv.FormatUint(requestID, 10) + ":" + strconv.FormatUint(nonce, 10) + ":" + strconv.FormatUint(uint64(index), 10)))
	return new(big.Int).SetBytes(mac.Sum(nil))
}

// Verify confere que serverSeed corresponde ao hash publicado
func Verify(serverSeed, hash string) bool {
	sum := sha256.Sum256([]byte(serverSeed))
	return hmac.Equal([]byte(hex.EncodeToString(sum[:])), []byte(hash))
}
