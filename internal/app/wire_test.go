package app

import (
	"context"
	"encoding/hex"
	"io"
	"log/slog"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/alanyoungcy/launchpad/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWireMemoryBackends(t *testing.T) {
	cfg := config.Defaults()
	cfg.Protocol.AdminAddress = "0x00000000000000000000000000000000000000ad"

	deps, cleanup, err := Wire(context.Background(), &cfg, discardLogger())
	if err != nil {
		t.Fatalf("Wire: %v", err)
	}
	defer cleanup()

	if deps.Ledger == nil || deps.Audit == nil || deps.Locks == nil || deps.SignalBus == nil || deps.RateLimiter == nil || deps.Replays == nil {
		t.Fatalf("memory dependencies not wired: %+v", deps)
	}
	if deps.Cache != nil {
		t.Fatal("product cache should only be wired with redis")
	}
	if deps.Archiver != nil {
		t.Fatal("archiver should not be wired in server mode")
	}
	if len(deps.Checks) != 0 {
		t.Fatalf("unexpected health checks: %v", deps.Checks)
	}

	admin := common.HexToAddress(cfg.Protocol.AdminAddress)
	pc, err := deps.Service.EnsureProtocol(context.Background(), admin, 5)
	if err != nil {
		t.Fatalf("EnsureProtocol: %v", err)
	}
	if pc.Admin != admin {
		t.Fatalf("admin = %s, want %s", pc.Admin.Hex(), admin.Hex())
	}
}

func TestResolveAdmin(t *testing.T) {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	keyHex := hex.EncodeToString(ethcrypto.FromECDSA(key))
	keyAddr := ethcrypto.PubkeyToAddress(key.PublicKey)
	explicit := common.HexToAddress("0x00000000000000000000000000000000000000ad")

	tests := []struct {
		name    string
		cfg     config.ProtocolConfig
		want    common.Address
		wantErr bool
	}{
		{name: "explicit address", cfg: config.ProtocolConfig{AdminAddress: explicit.Hex()}, want: explicit},
		{name: "derived from key", cfg: config.ProtocolConfig{PrivateKey: keyHex}, want: keyAddr},
		{name: "address wins over key", cfg: config.ProtocolConfig{AdminAddress: explicit.Hex(), PrivateKey: keyHex}, want: explicit},
		{name: "zero address", cfg: config.ProtocolConfig{AdminAddress: common.Address{}.Hex()}, wantErr: true},
		{name: "nothing configured", cfg: config.ProtocolConfig{}, wantErr: true},
		{name: "bad key", cfg: config.ProtocolConfig{PrivateKey: "zz"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveAdmin(tt.cfg, discardLogger())
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %s", got.Hex())
				}
				return
			}
			if err != nil {
				t.Fatalf("resolveAdmin: %v", err)
			}
			if got != tt.want {
				t.Fatalf("admin = %s, want %s", got.Hex(), tt.want.Hex())
			}
		})
	}
}
