package minting

import (
	"errors"
	"fmt"

	"stableledger/crypto"
)

// verifyOrder authenticates order without side effects. The nonce is only
// checked here; consumeNonce marks it used inside the committing operation.
func (e *Engine) verifyOrder(order Order, signature []byte) error {
	digest, err := order.Digest(e.domain)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOrder, err)
	}
	signer, err := crypto.RecoverDigest(digest, signature)
	if err != nil {
		if errors.Is(err, crypto.ErrInvalidSignature) {
			return ErrInvalidSignature
		}
		return err
	}
	trusted, err := e.registry.TrustedSigner()
	if err != nil {
		return err
	}
	if trusted == zeroAddress || signer != trusted {
		return ErrInvalidSignature
	}
	if e.expired(order.Expiry) {
		return ErrSignatureExpired
	}
	used, err := e.nonceUsed(order)
	if err != nil {
		return err
	}
	if used {
		return ErrInvalidNonce
	}
	return nil
}

func (e *Engine) nonceUsed(order Order) (bool, error) {
	var used bool
	ok, err := e.state.KVGet(orderNonceKey(order), &used)
	if err != nil {
		return false, err
	}
	return ok && used, nil
}

func (e *Engine) consumeNonce(order Order) error {
	return e.state.KVPut(orderNonceKey(order), true)
}

// VerifyOrder exposes the pure authentication check, e.g. for pre-flight
// validation by clients.
func (e *Engine) VerifyOrder(order Order, signature []byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := order.validateAmounts(); err != nil {
		return err
	}
	return e.verifyOrder(order, signature)
}
