package program

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/krazyTry/plasma-go/solana"
)

// JSON-RPC error codes returned by RPCServer.
const (
	rpcInvalidRequest   = -32600
	rpcMethodNotFound   = -32601
	rpcInvalidParams    = -32602
	rpcPreflightFailure = -32002
)

// Rent is the rent exempt minimum balance of an account of space bytes.
func Rent(space int) uint64 {
	return uint64(128+space) * 6960
}

type rpcError struct {
	code int
	err  error
}

func (e *rpcError) Error() string { return e.err.Error() }

func invalidParams(format string, args ...any) error {
	return &rpcError{code: rpcInvalidParams, err: fmt.Errorf(format, args...)}
}

// RPCServer answers the Solana JSON-RPC methods the client uses, reading
// from and executing against a runtime's ledger.
type RPCServer struct {
	runtime *Runtime

	mu       sync.Mutex
	history  []landed
	statuses map[solanago.Signature]int
}

// landed is a transaction accepted by sendTransaction.
type landed struct {
	signature solanago.Signature
	slot      uint64
	blockTime int64
	wire      string
	accounts  []solanago.PublicKey
	logs      []string
	err       error
}

func (l landed) mentions(key solanago.PublicKey) bool {
	for _, a := range l.accounts {
		if a.Equals(key) {
			return true
		}
	}
	return false
}

func NewRPCServer(runtime *Runtime) *RPCServer {
	return &RPCServer{runtime: runtime, statuses: make(map[solanago.Signature]int)}
}

func (s *RPCServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req := gjson.ParseBytes(body)
	resp := map[string]any{"jsonrpc": "2.0", "id": req.Get("id").Value()}

	method := req.Get("method").String()
	result, err := s.call(r.Context(), method, req.Get("params"))
	if err != nil {
		code := rpcInvalidRequest
		var re *rpcError
		if errors.As(err, &re) {
			code = re.code
		}
		s.runtime.logger.Debug("rpc error", zap.String("method", method), zap.Error(err))
		resp["error"] = map[string]any{"code": code, "message": err.Error()}
	} else {
		resp["result"] = result
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.runtime.logger.Warn("rpc write", zap.Error(err))
	}
}

func (s *RPCServer) call(ctx context.Context, method string, params gjson.Result) (any, error) {
	ledger := s.runtime.Ledger()
	slot, _ := ledger.Clock()
	switch method {
	case "getSlot":
		return slot, nil
	case "getAccountInfo":
		key, err := paramKey(params, "0")
		if err != nil {
			return nil, err
		}
		var value any
		if account, ok := ledger.Account(key); ok {
			value = encodeAccount(account)
		}
		return withContext(slot, value), nil
	case "getMultipleAccounts":
		var values []any
		for _, k := range params.Get("0").Array() {
			key, err := solanago.PublicKeyFromBase58(k.String())
			if err != nil {
				return nil, invalidParams("%s: %v", k.String(), err)
			}
			if account, ok := ledger.Account(key); ok {
				values = append(values, encodeAccount(account))
			} else {
				values = append(values, nil)
			}
		}
		return withContext(slot, values), nil
	case "getProgramAccounts":
		return s.programAccounts(ledger, params)
	case "getMinimumBalanceForRentExemption":
		return Rent(int(params.Get("0").Uint())), nil
	case "getLatestBlockhash":
		return withContext(slot, map[string]any{
			"blockhash":            blockhash(slot).String(),
			"lastValidBlockHeight": slot + 150,
		}), nil
	case "getTokenAccountsByOwner":
		return s.tokenAccountsByOwner(ledger, slot, params)
	case "simulateTransaction":
		return s.simulate(ctx, params)
	case "sendTransaction":
		return s.send(ctx, params)
	case "getSignatureStatuses":
		return s.signatureStatuses(slot, params)
	case "getSignaturesForAddress":
		return s.signaturesForAddress(params)
	case "getTransaction":
		return s.transaction(params)
	}
	return nil, &rpcError{code: rpcMethodNotFound, err: fmt.Errorf("method %q not found", method)}
}

func paramKey(params gjson.Result, path string) (solanago.PublicKey, error) {
	key, err := solanago.PublicKeyFromBase58(params.Get(path).String())
	if err != nil {
		return solanago.PublicKey{}, invalidParams("%s: %v", params.Get(path).String(), err)
	}
	return key, nil
}

func withContext(slot uint64, value any) map[string]any {
	return map[string]any{"context": map[string]any{"slot": slot}, "value": value}
}

func encodeAccount(a Account) map[string]any {
	return map[string]any{
		"lamports":   Rent(len(a.Data)),
		"owner":      a.Owner.String(),
		"data":       []string{base64.StdEncoding.EncodeToString(a.Data), "base64"},
		"executable": false,
		"rentEpoch":  0,
	}
}

// blockhash is a stand in recent blockhash that changes every slot.
func blockhash(slot uint64) solanago.Hash {
	var h solanago.Hash
	binary.LittleEndian.PutUint64(h[:], slot+1)
	return h
}

func (s *RPCServer) programAccounts(ledger *Ledger, params gjson.Result) (any, error) {
	program, err := paramKey(params, "0")
	if err != nil {
		return nil, err
	}
	var filters []rpc.RPCFilter
	if raw := params.Get("1.filters"); raw.Exists() {
		if err := json.Unmarshal([]byte(raw.Raw), &filters); err != nil {
			return nil, invalidParams("filters: %v", err)
		}
	}
	out := []any{}
	for key, account := range ledger.Accounts(program) {
		if !matchFilters(account.Data, filters) {
			continue
		}
		out = append(out, map[string]any{"pubkey": key.String(), "account": encodeAccount(account)})
	}
	return out, nil
}

func matchFilters(data []byte, filters []rpc.RPCFilter) bool {
	for _, f := range filters {
		if f.DataSize != 0 && uint64(len(data)) != f.DataSize {
			return false
		}
		if m := f.Memcmp; m != nil {
			end := m.Offset + uint64(len(m.Bytes))
			if end > uint64(len(data)) || string(data[m.Offset:end]) != string(m.Bytes) {
				return false
			}
		}
	}
	return true
}

func (s *RPCServer) tokenAccountsByOwner(ledger *Ledger, slot uint64, params gjson.Result) (any, error) {
	owner, err := paramKey(params, "0")
	if err != nil {
		return nil, err
	}
	var mint solanago.PublicKey
	if m := params.Get("1.mint"); m.Exists() {
		if mint, err = solanago.PublicKeyFromBase58(m.String()); err != nil {
			return nil, invalidParams("mint: %v", err)
		}
	}
	values := []any{}
	for key, account := range ledger.Accounts(solanago.TokenProgramID) {
		if len(account.Data) != solana.TokenAccountSize {
			continue
		}
		token, err := solana.DecodeTokenAccount(key, account.Data)
		if err != nil || !token.Owner.Equals(owner) || (!mint.IsZero() && !token.Mint.Equals(mint)) {
			continue
		}
		var decimals uint8
		if m, ok := ledger.Account(token.Mint); ok {
			if decoded, err := solana.DecodeMint(token.Mint, m.Data); err == nil {
				decimals = decoded.Decimals
			}
		}
		values = append(values, map[string]any{
			"pubkey": key.String(),
			"account": map[string]any{
				"lamports": Rent(len(account.Data)),
				"owner":    account.Owner.String(),
				"data": map[string]any{
					"program": "spl-token",
					"space":   len(account.Data),
					"parsed": map[string]any{
						"type": "account",
						"info": map[string]any{
							"mint":  token.Mint.String(),
							"owner": token.Owner.String(),
							"state": "initialized",
							"tokenAmount": map[string]any{
								"amount":   fmt.Sprint(token.Amount),
								"decimals": decimals,
							},
						},
					},
				},
				"executable": false,
				"rentEpoch":  0,
			},
		})
	}
	return withContext(slot, values), nil
}

// decodeTransaction turns a wire transaction back into runtime instructions.
// Every signer in the message header counts as signed.
func decodeTransaction(params gjson.Result) (*solanago.Transaction, Transaction, error) {
	encoded := params.Get("0").String()
	if enc := params.Get("1.encoding").String(); enc != "" && enc != string(solanago.EncodingBase64) {
		return nil, Transaction{}, invalidParams("unsupported encoding %q", enc)
	}
	tx, err := solanago.TransactionFromBase64(encoded)
	if err != nil {
		return nil, Transaction{}, invalidParams("decode transaction: %v", err)
	}
	metas, err := tx.Message.AccountMetaList()
	if err != nil {
		return nil, Transaction{}, invalidParams("account metas: %v", err)
	}
	out := Transaction{Signers: tx.Message.Signers()}
	for i, ci := range tx.Message.Instructions {
		if int(ci.ProgramIDIndex) >= len(metas) {
			return nil, Transaction{}, invalidParams("instruction %d: program index %d out of range", i, ci.ProgramIDIndex)
		}
		accounts, err := ci.ResolveInstructionAccounts(&tx.Message)
		if err != nil {
			return nil, Transaction{}, invalidParams("instruction %d: %v", i, err)
		}
		out.Instructions = append(out.Instructions, solanago.NewInstruction(metas[ci.ProgramIDIndex].PublicKey, accounts, ci.Data))
	}
	return tx, out, nil
}

func instructionError(err error) any {
	if err == nil {
		return nil
	}
	return map[string]any{"InstructionError": err.Error()}
}

func (s *RPCServer) simulate(ctx context.Context, params gjson.Result) (any, error) {
	_, tx, err := decodeTransaction(params)
	if err != nil {
		return nil, err
	}
	fork := NewRuntime(s.runtime.Ledger().Fork(), WithLogger(s.runtime.logger))
	receipt, err := fork.Execute(ctx, tx)
	if receipt == nil {
		return nil, err
	}
	return withContext(receipt.Slot, map[string]any{
		"err":           instructionError(receipt.Err),
		"logs":          receipt.Logs,
		"accounts":      nil,
		"unitsConsumed": 0,
	}), nil
}

func (s *RPCServer) send(ctx context.Context, params gjson.Result) (any, error) {
	wire, tx, err := decodeTransaction(params)
	if err != nil {
		return nil, err
	}
	if len(wire.Signatures) == 0 {
		return nil, invalidParams("transaction is not signed")
	}
	if err := wire.VerifySignatures(); err != nil {
		return nil, invalidParams("verify signatures: %v", err)
	}
	s.mu.Lock()
	_, seen := s.statuses[wire.Signatures[0]]
	s.mu.Unlock()
	if seen {
		return wire.Signatures[0].String(), nil
	}
	receipt, err := s.runtime.Execute(ctx, tx)
	if receipt == nil {
		return nil, err
	}
	if receipt.Err != nil {
		return nil, &rpcError{code: rpcPreflightFailure, err: fmt.Errorf("transaction simulation failed: %w", receipt.Err)}
	}
	sig := wire.Signatures[0]
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[sig] = len(s.history)
	s.history = append(s.history, landed{
		signature: sig,
		slot:      receipt.Slot,
		blockTime: receipt.Timestamp,
		wire:      params.Get("0").String(),
		accounts:  wire.Message.AccountKeys,
		logs:      receipt.Logs,
	})
	return sig.String(), nil
}

func (s *RPCServer) signatureStatuses(slot uint64, params gjson.Result) (any, error) {
	var values []any
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, raw := range params.Get("0").Array() {
		sig, err := solanago.SignatureFromBase58(raw.String())
		if err != nil {
			return nil, invalidParams("%s: %v", raw.String(), err)
		}
		i, ok := s.statuses[sig]
		if !ok {
			values = append(values, nil)
			continue
		}
		status := s.history[i]
		values = append(values, map[string]any{
			"slot":               status.slot,
			"confirmations":      nil,
			"err":                instructionError(status.err),
			"confirmationStatus": "finalized",
		})
	}
	return withContext(slot, values), nil
}

// signaturesForAddress pages through landed transactions mentioning an
// address, newest first.
func (s *RPCServer) signaturesForAddress(params gjson.Result) (any, error) {
	address, err := paramKey(params, "0")
	if err != nil {
		return nil, err
	}
	limit := 1000
	if l := params.Get("1.limit"); l.Exists() && l.Int() > 0 && l.Int() < 1000 {
		limit = int(l.Int())
	}
	var before, until solanago.Signature
	for path, sig := range map[string]*solanago.Signature{"1.before": &before, "1.until": &until} {
		if raw := params.Get(path); raw.Exists() && raw.String() != "" {
			if *sig, err = solanago.SignatureFromBase58(raw.String()); err != nil {
				return nil, invalidParams("%s: %v", path, err)
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	start := len(s.history) - 1
	if !before.IsZero() {
		i, ok := s.statuses[before]
		if !ok {
			return nil, invalidParams("unknown signature %s", before)
		}
		start = i - 1
	}
	out := []any{}
	for i := start; i >= 0 && len(out) < limit; i-- {
		tx := s.history[i]
		if tx.signature.Equals(until) {
			break
		}
		if !tx.mentions(address) {
			continue
		}
		out = append(out, map[string]any{
			"signature":          tx.signature.String(),
			"slot":               tx.slot,
			"err":                instructionError(tx.err),
			"memo":               nil,
			"blockTime":          tx.blockTime,
			"confirmationStatus": "finalized",
		})
	}
	return out, nil
}

func (s *RPCServer) transaction(params gjson.Result) (any, error) {
	sig, err := solanago.SignatureFromBase58(params.Get("0").String())
	if err != nil {
		return nil, invalidParams("signature: %v", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.statuses[sig]
	if !ok {
		return nil, nil
	}
	tx := s.history[i]
	return map[string]any{
		"slot":        tx.slot,
		"blockTime":   tx.blockTime,
		"transaction": []string{tx.wire, "base64"},
		"meta": map[string]any{
			"err":               instructionError(tx.err),
			"fee":               5000,
			"preBalances":       []uint64{},
			"postBalances":      []uint64{},
			"innerInstructions": []any{},
			"preTokenBalances":  []any{},
			"postTokenBalances": []any{},
			"logMessages":       tx.logs,
		},
	}, nil
}
