package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/alanyoungcy/launchpad/internal/crypto"
	"github.com/alanyoungcy/launchpad/internal/domain"
)

// Signature headers. The signature is an EIP-191 personal-sign over
// crypto.RequestMessage for the request.
const (
	HeaderSignerAddress   = "X-Signer-Address"
	HeaderSignerTimestamp = "X-Signer-Timestamp"
	HeaderSignerSignature = "X-Signer-Signature"
)

// MaxBodyBytes caps signed request bodies.
const MaxBodyBytes = 1 << 20

// defaultReplayWindow bounds replay memory when no skew limit is set.
const defaultReplayWindow = 10 * time.Minute

type callerKey struct{}

// WithCaller returns ctx carrying the verified caller address.
func WithCaller(ctx context.Context, caller common.Address) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// CallerFrom returns the verified caller stored by SignatureAuth.
func CallerFrom(ctx context.Context) (common.Address, bool) {
	caller, ok := ctx.Value(callerKey{}).(common.Address)
	return caller, ok
}

// SignatureAuth returns middleware that verifies the signer headers and
// stores the recovered caller in the request context. Requests whose
// timestamp is further than maxSkew from now are refused. When replays is
// set, each signed message is accepted once; a repeat within the skew
// window answers 409.
func SignatureAuth(maxSkew time.Duration, now func() time.Time, replays domain.ReplayGuard) func(http.Handler) http.Handler {
	if now == nil {
		now = time.Now
	}
	window := 2 * maxSkew
	if window <= 0 {
		window = defaultReplayWindow
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req, err := verify(r, maxSkew, now())
			if err != nil {
				writeUnauthorized(w, err.Error())
				return
			}
			if replays != nil {
				fresh, err := replays.Claim(r.Context(), req.replayKey(), window)
				if err != nil {
					writeError(w, http.StatusServiceUnavailable, "replay check unavailable", "UNAVAILABLE")
					return
				}
				if !fresh {
					writeError(w, http.StatusConflict, domain.ErrReplayed.Message, string(domain.ErrReplayed.Code))
					return
				}
			}
			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), req.caller)))
		})
	}
}

// signedRequest is a request whose signature has been verified.
type signedRequest struct {
	caller common.Address
	digest common.Hash
}

// replayKey identifies the signed message, not the signature bytes, so a
// re-encoded signature over the same message is still a replay.
func (s signedRequest) replayKey() string {
	return strings.ToLower(s.caller.Hex()) + ":" + s.digest.Hex()
}

func verify(r *http.Request, maxSkew time.Duration, now time.Time) (signedRequest, error) {
	addrHex := r.Header.Get(HeaderSignerAddress)
	tsRaw := r.Header.Get(HeaderSignerTimestamp)
	sig := r.Header.Get(HeaderSignerSignature)
	if addrHex == "" || tsRaw == "" || sig == "" {
		return signedRequest{}, errors.New("missing signer headers")
	}
	if !common.IsHexAddress(addrHex) {
		return signedRequest{}, errors.New("invalid signer address")
	}
	ts, err := strconv.ParseInt(tsRaw, 10, 64)
	if err != nil {
		return signedRequest{}, errors.New("invalid signer timestamp")
	}
	skew := now.Sub(time.Unix(ts, 0))
	if skew < 0 {
		skew = -skew
	}
	if maxSkew > 0 && skew > maxSkew {
		return signedRequest{}, errors.New("stale signer timestamp")
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes+1))
	if err != nil {
		return signedRequest{}, errors.New("unreadable body")
	}
	if len(body) > MaxBodyBytes {
		return signedRequest{}, errors.New("body too large")
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	caller := common.HexToAddress(addrHex)
	if err := crypto.VerifyRequest(caller, r.Method, r.URL.Path, ts, body, sig); err != nil {
		return signedRequest{}, errors.New("signature does not match signer")
	}
	digest := ethcrypto.Keccak256Hash(crypto.RequestMessage(r.Method, r.URL.Path, ts, body))
	return signedRequest{caller: caller, digest: digest}, nil
}

// writeUnauthorized sends a 401 response with a JSON error body.
func writeUnauthorized(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusUnauthorized, msg, "UNAUTHORIZED")
}

func writeError(w http.ResponseWriter, status int, msg, code string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + msg + `","code":"` + code + `"}`))
}
