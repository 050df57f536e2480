package model

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	tokenA    = common.HexToAddress("0x1111111111111111111111111111111111111111")
	tokenB    = common.HexToAddress("0x2222222222222222222222222222222222222222")
	authority = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

func TestPoolIDDeterministic(t *testing.T) {
	a := PoolID(7, tokenA, tokenB, authority)
	b := PoolID(7, tokenA, tokenB, authority)
	if a != b {
		t.Fatalf("pool id not deterministic: %s != %s", a.Hex(), b.Hex())
	}
	if a == (common.Hash{}) {
		t.Fatalf("pool id is zero")
	}

	if PoolID(8, tokenA, tokenB, authority) == a {
		t.Fatalf("seed does not affect pool id")
	}
	if PoolID(7, tokenB, tokenA, authority) == a {
		t.Fatalf("token order does not affect pool id")
	}
	if PoolID(7, tokenA, tokenB, tokenA) == a {
		t.Fatalf("authority does not affect pool id")
	}
}

func TestParsePoolID(t *testing.T) {
	id := PoolID(1, tokenA, tokenB, authority)
	parsed, err := ParsePoolID(id.Hex())
	if err != nil {
		t.Fatalf("parse pool id: %v", err)
	}
	if parsed != id {
		t.Fatalf("parsed %s, want %s", parsed.Hex(), id.Hex())
	}

	for _, bad := range []string{"", "0x1234", id.Hex()[2:], "0xzz" + id.Hex()[4:]} {
		if _, err := ParsePoolID(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestPoolStatus(t *testing.T) {
	var p Pool
	if p.Status() != StatusUninitialized {
		t.Fatalf("status = %s", p.Status())
	}
	p.Version = 1
	if p.Status() != StatusActive {
		t.Fatalf("status = %s", p.Status())
	}
	p.Locked = true
	if p.Status() != StatusLocked {
		t.Fatalf("status = %s", p.Status())
	}
}

func TestPoolReservesByDirection(t *testing.T) {
	p := Pool{ReserveA: 10, ReserveB: 20, DecimalsA: 6, DecimalsB: 18}

	in, out, decIn, decOut := p.Reserves(AToB)
	if in != 10 || out != 20 || decIn != 6 || decOut != 18 {
		t.Fatalf("a to b reserves: %d %d %d %d", in, out, decIn, decOut)
	}
	in, out, decIn, decOut = p.Reserves(BToA)
	if in != 20 || out != 10 || decIn != 18 || decOut != 6 {
		t.Fatalf("b to a reserves: %d %d %d %d", in, out, decIn, decOut)
	}
}

func TestParseDirection(t *testing.T) {
	cases := map[string]Direction{"a_to_b": AToB, "AB": AToB, "b_to_a": BToA, " ba ": BToA}
	for input, want := range cases {
		got, err := ParseDirection(input)
		if err != nil {
			t.Fatalf("parse %q: %v", input, err)
		}
		if got != want {
			t.Fatalf("parse %q = %s, want %s", input, got, want)
		}
	}
	if _, err := ParseDirection("sideways"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestVaultAndTransferReverse(t *testing.T) {
	p := Pool{ID: PoolID(1, tokenA, tokenB, authority)}
	if p.Vault() != common.BytesToAddress(p.ID[12:]) {
		t.Fatalf("vault = %s", p.Vault().Hex())
	}

	tr := Transfer{Pool: p.ID, Asset: AssetA, From: authority, To: p.Vault(), Amount: 5}
	rev := tr.Reverse()
	if rev.From != p.Vault() || rev.To != authority || rev.Amount != 5 || rev.Asset != AssetA {
		t.Fatalf("reverse = %+v", rev)
	}
}
