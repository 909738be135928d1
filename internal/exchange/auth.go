package exchange

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"spotmm/internal/config"
)

// Signer derives the agent's on-chain address from its configured private
// key and authenticates outbound Gateway requests. The strategy and control
// loop never hold or inspect a Signer directly; it only flows through the
// concrete Gateway's HTTP transport.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	chainID    *big.Int
}

// NewSigner builds a Signer from the wallet section of config.
func NewSigner(cfg config.WalletConfig) (*Signer, error) {
	keyHex := strings.TrimPrefix(cfg.PrivateKey, "0x")

	privateKey, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	return &Signer{
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey),
		chainID:    big.NewInt(int64(cfg.ChainID)),
	}, nil
}

// Address returns the signer's on-chain address.
func (s *Signer) Address() common.Address {
	return s.address
}

// ChainID returns the configured chain ID.
func (s *Signer) ChainID() *big.Int {
	return s.chainID
}

// Headers signs "timestamp + method + path [+ body]" with the wallet's
// private key and returns the headers an authenticated request must carry.
// The signature scheme itself is a transport concern the CORE never sees.
func (s *Signer) Headers(method, path, body string) (map[string]string, error) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	message := timestamp + method + path + body
	hash := crypto.Keccak256Hash([]byte(message))

	sig, err := crypto.Sign(hash.Bytes(), s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("sign request: %w", err)
	}
	if sig[64] < 27 {
		sig[64] += 27
	}

	return map[string]string{
		"X-SPOTMM-ADDRESS":   s.address.Hex(),
		"X-SPOTMM-SIGNATURE": "0x" + common.Bytes2Hex(sig),
		"X-SPOTMM-TIMESTAMP": timestamp,
	}, nil
}
