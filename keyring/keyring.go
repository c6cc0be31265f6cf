// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package keyring - the service signing key
//
// The key is stored as WIF text sealed with nacl secretbox under a key
// derived from a passphrase by Argon2i. It is only ever held
// unencrypted in memory.
package keyring

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"os"

	"github.com/bitmark-inc/go-argon2"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"golang.org/x/crypto/nacl/secretbox"

	"github.com/bitmark-inc/bulletind/chain"
	"github.com/bitmark-inc/bulletind/fault"
)

const (
	fileVersion       = 1
	saltLength        = 32
	nonceLength       = 24
	minimumPassphrase = 8
)

// Key - the unlocked service key
type Key struct {
	privateKey *btcec.PrivateKey
	address    *btcutil.AddressPubKeyHash
	params     *chaincfg.Params
}

// on disk format
type keyringFile struct {
	Version int    `json:"version"`
	Network string `json:"network"`
	Address string `json:"address"`
	Salt    string `json:"salt"`
	Data    string `json:"data"`
}

// Generate - a new random key for a network
func Generate(params *chaincfg.Params) (*Key, error) {
	privateKey, err := btcec.NewPrivateKey()
	if nil != err {
		return nil, err
	}
	return New(privateKey, params)
}

// FromWIF - import an existing key
func FromWIF(text string, params *chaincfg.Params) (*Key, error) {
	wif, err := btcutil.DecodeWIF(text)
	if nil != err {
		return nil, err
	}
	if !wif.IsForNet(params) {
		return nil, fault.ErrInvalidChain
	}
	return New(wif.PrivKey, params)
}

// New - wrap an existing private key
func New(privateKey *btcec.PrivateKey, params *chaincfg.Params) (*Key, error) {
	hash := btcutil.Hash160(privateKey.PubKey().SerializeCompressed())
	address, err := btcutil.NewAddressPubKeyHash(hash, params)
	if nil != err {
		return nil, err
	}
	return &Key{
		privateKey: privateKey,
		address:    address,
		params:     params,
	}, nil
}

// PrivateKey - for signing
func (k *Key) PrivateKey() *btcec.PrivateKey {
	return k.privateKey
}

// Address - P2PKH address of the compressed public key
func (k *Key) Address() *btcutil.AddressPubKeyHash {
	return k.address
}

// Params - network of the key
func (k *Key) Params() *chaincfg.Params {
	return k.params
}

// PkScript - output script paying to the key
func (k *Key) PkScript() ([]byte, error) {
	return txscript.PayToAddrScript(k.address)
}

// String - only the address, so the key cannot leak into a log
func (k *Key) String() string {
	return k.address.EncodeAddress()
}

// GoString - as String for %#v
func (k *Key) GoString() string {
	return "keyring.Key{" + k.address.EncodeAddress() + "}"
}

// Save - write a new keyring file, never overwrites
func (k *Key) Save(fileName string, passphrase string) error {
	if len(passphrase) < minimumPassphrase {
		return fault.ErrInvalidPassphraseLength
	}

	wif, err := btcutil.NewWIF(k.privateKey, k.params, true)
	if nil != err {
		return err
	}

	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); nil != err {
		return err
	}
	secretKey, err := deriveKey(passphrase, salt)
	if nil != err {
		return err
	}
	data, err := seal([]byte(wif.String()), secretKey)
	if nil != err {
		return err
	}

	content, err := json.MarshalIndent(keyringFile{
		Version: fileVersion,
		Network: chain.Name(k.params),
		Address: k.address.EncodeAddress(),
		Salt:    hex.EncodeToString(salt),
		Data:    hex.EncodeToString(data),
	}, "", "  ")
	if nil != err {
		return err
	}

	f, err := os.OpenFile(fileName, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if nil != err {
		if os.IsExist(err) {
			return fault.ErrKeyringFileExists
		}
		return err
	}
	if _, err := f.Write(append(content, '\n')); nil != err {
		f.Close()
		os.Remove(fileName)
		return err
	}
	return f.Close()
}

// Load - read and unlock a keyring file
func Load(fileName string, passphrase string) (*Key, error) {
	content, err := os.ReadFile(fileName)
	if nil != err {
		return nil, err
	}

	var kf keyringFile
	if err := json.Unmarshal(content, &kf); nil != err {
		return nil, fault.ErrInvalidKeyringFile
	}
	if fileVersion != kf.Version {
		return nil, fault.ErrInvalidKeyringFile
	}
	params, err := chain.Params(kf.Network)
	if nil != err {
		return nil, err
	}
	salt, err := hex.DecodeString(kf.Salt)
	if nil != err || saltLength != len(salt) {
		return nil, fault.ErrInvalidKeyringFile
	}
	data, err := hex.DecodeString(kf.Data)
	if nil != err {
		return nil, fault.ErrInvalidKeyringFile
	}

	secretKey, err := deriveKey(passphrase, salt)
	if nil != err {
		return nil, err
	}
	wif, err := open(data, secretKey)
	if nil != err {
		return nil, fault.ErrWrongPassphrase
	}

	key, err := FromWIF(string(wif), params)
	if nil != err {
		return nil, err
	}
	if key.address.EncodeAddress() != kf.Address {
		return nil, fault.ErrInvalidKeyringFile
	}
	return key, nil
}

// Network - read the network name without unlocking
func Network(fileName string) (string, error) {
	content, err := os.ReadFile(fileName)
	if nil != err {
		return "", err
	}
	var kf keyringFile
	if err := json.Unmarshal(content, &kf); nil != err {
		return "", fault.ErrInvalidKeyringFile
	}
	return kf.Network, nil
}

func deriveKey(passphrase string, salt []byte) (*[32]byte, error) {
	ctx := &argon2.Context{
		Iterations:  5,
		Memory:      1 << 16,
		Parallelism: 4,
		HashLen:     32,
		Mode:        argon2.ModeArgon2i,
		Version:     argon2.Version13,
	}

	hash, err := argon2.Hash(ctx, []byte(passphrase), salt)
	if nil != err {
		return nil, err
	}

	var secretKey [32]byte
	copy(secretKey[:], hash)
	return &secretKey, nil
}

// nonce is stored in front of the ciphertext
func seal(plaintext []byte, secretKey *[32]byte) ([]byte, error) {
	var nonce [nonceLength]byte
	if _, err := rand.Read(nonce[:]); nil != err {
		return nil, fault.ErrCryptoFailed
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, secretKey), nil
}

func open(sealed []byte, secretKey *[32]byte) ([]byte, error) {
	if len(sealed) <= nonceLength {
		return nil, fault.ErrCryptoFailed
	}
	var nonce [nonceLength]byte
	copy(nonce[:], sealed[:nonceLength])

	plaintext, ok := secretbox.Open(nil, sealed[nonceLength:], &nonce, secretKey)
	if !ok {
		return nil, fault.ErrCryptoFailed
	}
	return plaintext, nil
}
