package provider

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/pkg/errors"
	"github/chapool/go-wallet-engine/internal/wallet/werrors"
)

// StatusError is a non-2xx HTTP answer of a REST provider.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Code, e.Body)
}

//nolint:gochecknoglobals
var (
	insufficientFundsPatterns = []string{
		"insufficient funds",
		"insufficient balance",
		"insufficient lamports",
		"attempt to debit an account but found no record of a prior credit",
	}

	// Deterministic rejections: resubmitting the same payload cannot succeed.
	rejectionPatterns = []string{
		"nonce too low",
		"nonce too high",
		"already known",
		"replacement transaction underpriced",
		"transaction underpriced",
		"intrinsic gas too low",
		"exceeds block gas limit",
		"invalid sender",
		"invalid signature",
		"execution reverted",
		"bad-txns",
		"missing inputs",
		"missingorspent",
		"txn-already-in-mempool",
		"txn-mempool-conflict",
		"transaction already in block chain",
		"min relay fee not met",
		"mempool min fee not met",
		"mandatory-script-verify-flag",
		"non-final",
		"blockhash not found",
		"transaction simulation failed",
		"signature verification failure",
		"already been processed",
		"alreadyprocessed",
	}

	transientPatterns = []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"no such host",
		"too many requests",
		"rate limit",
		"service unavailable",
		"bad gateway",
		"gateway timeout",
		"temporarily unavailable",
		"node is behind",
		"node is unhealthy",
		"header not found",
		"all rpc clients are unavailable",
	}

	// Bitcoin Core reject reasons that are too short to match as substrings.
	rejectionTokens = regexp.MustCompile(`(^|[\s:(\[,"'])(dust|tx-size-small|scriptpubkey|multi-op-return)($|[\s:)\],."'])`)

	// io.EOF text at the end of a wrapped transport error ("Post ...: EOF").
	eofSuffix = regexp.MustCompile(`(^|[\s:])(unexpected )?eof$`)

	alreadyKnownPatterns = []string{
		"already known",
		"txn-already-in-mempool",
		"transaction already in block chain",
		"already been processed",
		"alreadyprocessed",
	}
)

// JSON-RPC error codes that indicate an overloaded or lagging node.
const (
	rpcCodeInternal      = -32603
	rpcCodeLimitExceeded = -32005
	rpcCodeBlockNotAvail = -32004
)

// Classify maps a raw provider error onto the engine taxonomy.
// Transport failures, 5xx, 429 and timeouts are retryable; node-side rejections are terminal
// (BroadcastRejected for broadcasts, InvalidRequest for reads) and insufficient balance is
// reported as InsufficientFunds. JSON-RPC codes other than the overload codes are terminal.
// Anything unrecognised is KindUnknown, which is not retried.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var werr *werrors.Error
	if errors.As(err, &werr) {
		return err
	}

	msg := strings.ToLower(err.Error())

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return werrors.Wrapf(werrors.KindTimeout, err, "%s timed out", op)
	case errors.Is(err, context.Canceled):
		return werrors.Wrapf(werrors.KindTimeout, err, "%s cancelled", op)
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return werrors.Wrapf(werrors.KindProviderUnavailable, err, "%s connection closed", op)
	case containsAny(msg, insufficientFundsPatterns):
		return werrors.Wrapf(werrors.KindInsufficientFunds, err, "%s rejected: insufficient funds", op)
	}

	if code, ok := httpStatus(err); ok {
		if code == http.StatusTooManyRequests || code >= http.StatusInternalServerError {
			return werrors.Wrapf(werrors.KindProviderUnavailable, err, "%s failed with http %d", op, code)
		}
		return terminal(op, err, msg)
	}

	if code, ok := rpcCode(err); ok {
		switch code {
		case rpcCodeInternal, rpcCodeLimitExceeded, rpcCodeBlockNotAvail:
			if !isRejection(msg) {
				return werrors.Wrapf(werrors.KindProviderUnavailable, err, "%s failed with rpc code %d", op, code)
			}
		}
		return terminal(op, err, msg)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return werrors.Wrapf(werrors.KindTimeout, err, "%s timed out", op)
		}
		return werrors.Wrapf(werrors.KindProviderUnavailable, err, "%s transport failure", op)
	}

	switch {
	case isRejection(msg):
		return terminal(op, err, msg)
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out"):
		return werrors.Wrapf(werrors.KindTimeout, err, "%s timed out", op)
	case containsAny(msg, transientPatterns) || eofSuffix.MatchString(msg):
		return werrors.Wrapf(werrors.KindProviderUnavailable, err, "%s transport failure", op)
	}

	return werrors.Wrapf(werrors.KindUnknown, err, "%s failed", op)
}

func isRejection(msg string) bool {
	return containsAny(msg, rejectionPatterns) || rejectionTokens.MatchString(msg)
}

// IsAlreadyKnown reports whether the node already holds the broadcast transaction.
func IsAlreadyKnown(err error) bool {
	if err == nil {
		return false
	}
	return containsAny(strings.ToLower(err.Error()), alreadyKnownPatterns)
}

func terminal(op string, err error, msg string) error {
	if op == OpBroadcast {
		return werrors.Wrap(werrors.KindBroadcastRejected, err, rejectionReason(msg))
	}
	return werrors.Wrapf(werrors.KindInvalidRequest, err, "%s rejected by provider", op)
}

func rejectionReason(msg string) string {
	for _, p := range rejectionPatterns {
		if strings.Contains(msg, p) {
			return p
		}
	}
	if m := rejectionTokens.FindStringSubmatch(msg); m != nil {
		return m[2]
	}
	return "rejected by network"
}

func httpStatus(err error) (int, bool) {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code, true
	}

	var ethHTTPErr rpc.HTTPError
	if errors.As(err, &ethHTTPErr) {
		return ethHTTPErr.StatusCode, true
	}

	return 0, false
}

func rpcCode(err error) (int, bool) {
	var solErr *jsonrpc.RPCError
	if errors.As(err, &solErr) {
		return solErr.Code, true
	}

	var ethErr rpc.Error
	if errors.As(err, &ethErr) {
		return ethErr.ErrorCode(), true
	}

	return 0, false
}

func containsAny(msg string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
