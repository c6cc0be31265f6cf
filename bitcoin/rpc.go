// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bitcoin

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bitmark-inc/logger"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/bitmark-inc/bulletind/fault"
	"github.com/bitmark-inc/bulletind/ratelimit"
	"github.com/bitmark-inc/bulletind/storage"
)

// node error codes
const (
	rpcInvalidAddressOrKey  = -5
	rpcVerifyError          = -25
	rpcVerifyRejected       = -26
	rpcVerifyAlreadyInChain = -27
)

const (
	defaultRequestsPerSecond = 20
	defaultBurst             = 10
	defaultTimeout           = 30 * time.Second
	headerCacheExpiry        = 6 * time.Hour
	maximumConfirmations     = 9999999
)

// Configuration - the bitcoin section of the configuration file
type Configuration struct {
	URL               string  `gluamapper:"url" json:"url"`
	Username          string  `gluamapper:"username" json:"username"`
	Password          string  `gluamapper:"password" json:"-"`
	RequestsPerSecond float64 `gluamapper:"requests_per_second" json:"requests_per_second"`
	Burst             int     `gluamapper:"burst" json:"burst"`
	Timeout           int     `gluamapper:"timeout" json:"timeout"` // seconds
}

// Client - JSON-RPC access to bitcoind
type Client struct {
	url      string
	username string
	password string

	client  *http.Client
	limiter *rate.Limiter
	id      uint64

	headers *cache.Cache
	store   *storage.HeaderStore

	log *logger.L
}

// for encoding the RPC arguments
type bitcoinArguments struct {
	Id     uint64        `json:"id"`
	Method string        `json:"method"`
	Params []interface{} `json:"params"`
}

// the RPC error response
type bitcoinRpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *bitcoinRpcError) Error() string {
	return fmt.Sprintf("Bitcoin RPC error: %d: %s", e.Code, e.Message)
}

func (e *bitcoinRpcError) Unwrap() error {
	return fault.ErrRemoteRPC
}

// for decoding the RPC reply
type bitcoinReply struct {
	Id     int64            `json:"id"`
	Result interface{}      `json:"result"`
	Error  *bitcoinRpcError `json:"error"`
}

// NewClient - store may be nil to keep headers in memory only
func NewClient(configuration *Configuration, store *storage.HeaderStore) (*Client, error) {
	if nil == configuration || "" == configuration.URL {
		return nil, fault.ErrMissingParameters
	}

	perSecond := configuration.RequestsPerSecond
	if perSecond <= 0 {
		perSecond = defaultRequestsPerSecond
	}
	burst := configuration.Burst
	if burst <= 0 {
		burst = defaultBurst
	}
	timeout := defaultTimeout
	if configuration.Timeout > 0 {
		timeout = time.Duration(configuration.Timeout) * time.Second
	}

	return &Client{
		url:      configuration.URL,
		username: configuration.Username,
		password: configuration.Password,
		client: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
		headers: cache.New(headerCacheExpiry, 2*headerCacheExpiry),
		store:   store,
		log:     logger.New("bitcoin"),
	}, nil
}

// high level call
func (c *Client) call(ctx context.Context, method string, params []interface{}, reply interface{}) error {
	if err := ratelimit.LimitContext(ctx, c.limiter); nil != err {
		return err
	}

	arguments := bitcoinArguments{
		Id:     atomic.AddUint64(&c.id, 1),
		Method: method,
		Params: params,
	}
	response := bitcoinReply{
		Result: reply,
	}
	c.log.Debugf("rpc call: %s", method)

	err := c.rpc(ctx, &arguments, &response)
	if nil != err {
		c.log.Tracef("rpc returned error: %s", err)
		return err
	}
	if nil != response.Error {
		return response.Error
	}
	return nil
}

// basic RPC
func (c *Client) rpc(ctx context.Context, arguments *bitcoinArguments, reply *bitcoinReply) error {
	s, err := json.Marshal(arguments)
	if nil != err {
		return err
	}

	c.log.Tracef("rpc send: %s", s)

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBuffer(s))
	if nil != err {
		return err
	}
	request.Header.Set("Content-Type", "application/json")
	request.SetBasicAuth(c.username, c.password)

	response, err := c.client.Do(request)
	if nil != err {
		return fmt.Errorf("%w: %s", fault.ErrRemoteRPC, err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if nil != err {
		return err
	}

	c.log.Tracef("rpc response body: %s", body)

	// errors other than these come with an empty or non JSON body
	switch response.StatusCode {
	case http.StatusOK, http.StatusInternalServerError, http.StatusNotFound:
	default:
		return fmt.Errorf("%w: HTTP status: %s", fault.ErrRemoteRPC, response.Status)
	}

	err = json.Unmarshal(body, reply)
	if nil != err {
		return fmt.Errorf("%w: %s", fault.ErrRemoteRPC, err)
	}
	return nil
}

func rpcCode(err error) int {
	if e, ok := err.(*bitcoinRpcError); ok {
		return e.Code
	}
	return 0
}

type unspentOutput struct {
	TxID          string  `json:"txid"`
	Vout          uint32  `json:"vout"`
	Amount        float64 `json:"amount"`
	ScriptPubKey  string  `json:"scriptPubKey"`
	Confirmations int64   `json:"confirmations"`
}

// ListUnspent - requires the address to be watched by the node's wallet
func (c *Client) ListUnspent(ctx context.Context, address string) ([]UTXO, error) {
	var reply []unspentOutput
	err := c.call(ctx, "listunspent", []interface{}{1, maximumConfirmations, []string{address}}, &reply)
	if nil != err {
		return nil, err
	}

	utxos := make([]UTXO, 0, len(reply))
	for _, u := range reply {
		amount, err := btcutil.NewAmount(u.Amount)
		if nil != err {
			return nil, err
		}
		script, err := hex.DecodeString(u.ScriptPubKey)
		if nil != err {
			return nil, err
		}
		utxos = append(utxos, UTXO{
			TxID:          u.TxID,
			Vout:          u.Vout,
			Amount:        int64(amount),
			ScriptPubKey:  script,
			Confirmations: u.Confirmations,
		})
	}
	return utxos, nil
}

// SendRawTransaction - a transaction the node already has is not an error
func (c *Client) SendRawTransaction(ctx context.Context, raw []byte) (string, error) {
	var txID string
	err := c.call(ctx, "sendrawtransaction", []interface{}{hex.EncodeToString(raw)}, &txID)
	if nil == err {
		return txID, nil
	}

	code := rpcCode(err)
	known := rpcVerifyAlreadyInChain == code ||
		(rpcVerifyRejected == code && strings.Contains(err.Error(), "already"))
	if !known {
		if rpcVerifyError == code || rpcVerifyRejected == code {
			return "", fmt.Errorf("%w: %s", fault.ErrTransactionRejected, err)
		}
		return "", err
	}
	c.log.Debugf("send: already known: %s", err)
	return TxHash(raw)
}

type rawTransaction struct {
	TxID          string `json:"txid"`
	Hex           string `json:"hex"`
	Confirmations int64  `json:"confirmations"`
	BlockHash     string `json:"blockhash"`
	BlockTime     int64  `json:"blocktime"`
}

// GetTransaction - the node must keep a transaction index
func (c *Client) GetTransaction(ctx context.Context, txID string) (*TxStatus, error) {
	var reply rawTransaction
	err := c.call(ctx, "getrawtransaction", []interface{}{txID, true}, &reply)
	if rpcInvalidAddressOrKey == rpcCode(err) {
		return nil, fault.ErrTransactionNotFound
	}
	if nil != err {
		return nil, err
	}

	raw, err := hex.DecodeString(reply.Hex)
	if nil != err {
		return nil, err
	}
	status := &TxStatus{
		Hash:          reply.TxID,
		Confirmations: reply.Confirmations,
		BlockHash:     reply.BlockHash,
		Raw:           raw,
	}
	if 0 != reply.BlockTime {
		status.BlockTime = time.Unix(reply.BlockTime, 0).UTC()
	}
	return status, nil
}

type blockHeader struct {
	Hash   string `json:"hash"`
	Height int64  `json:"height"`
	Time   int64  `json:"time"`
}

// GetBlockHeader - cached in memory and in the header store
func (c *Client) GetBlockHeader(ctx context.Context, blockHash string) (*BlockHeader, error) {
	if x, found := c.headers.Get(blockHash); found {
		h := x.(BlockHeader)
		return &h, nil
	}

	hash, err := chainhash.NewHashFromStr(blockHash)
	if nil != err {
		return nil, fault.ErrInvalidDigest
	}

	if nil != c.store {
		stored, err := c.store.Get(hash)
		if nil == err {
			h := BlockHeader{
				Hash:   blockHash,
				Height: int64(stored.Height),
				Time:   stored.Time,
			}
			c.headers.SetDefault(blockHash, h)
			return &h, nil
		}
	}

	var reply blockHeader
	err = c.call(ctx, "getblockheader", []interface{}{blockHash, true}, &reply)
	if rpcInvalidAddressOrKey == rpcCode(err) {
		return nil, fault.ErrHeaderNotFound
	}
	if nil != err {
		return nil, err
	}

	h := BlockHeader{
		Hash:   reply.Hash,
		Height: reply.Height,
		Time:   time.Unix(reply.Time, 0).UTC(),
	}
	c.headers.SetDefault(blockHash, h)

	if nil != c.store {
		err := c.store.Put(&storage.Header{
			Hash:   *hash,
			Height: int32(h.Height),
			Time:   h.Time,
		})
		if nil != err {
			c.log.Warnf("header: %s  store error: %s", blockHash, err)
		}
	}
	return &h, nil
}

type feeEstimate struct {
	FeeRate *float64 `json:"feerate"`
	Errors  []string `json:"errors"`
	Blocks  int      `json:"blocks"`
}

// EstimateFeeRate - satoshi per 1000 bytes
func (c *Client) EstimateFeeRate(ctx context.Context, blocks int) (int64, error) {
	var reply feeEstimate
	err := c.call(ctx, "estimatesmartfee", []interface{}{blocks}, &reply)
	if nil != err {
		return 0, err
	}
	if nil == reply.FeeRate {
		c.log.Debugf("no fee estimate: %v", reply.Errors)
		return 0, nil
	}
	amount, err := btcutil.NewAmount(*reply.FeeRate)
	if nil != err {
		return 0, err
	}
	return int64(amount), nil
}

// BlockCount - height of the best block
func (c *Client) BlockCount(ctx context.Context) (int64, error) {
	var count int64
	err := c.call(ctx, "getblockcount", []interface{}{}, &count)
	return count, err
}
