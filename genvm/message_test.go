package genvm

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestMessageJSON(t *testing.T) {
	contract := common.HexToAddress("0x0102030405060708090a0b0c0d0e0f1011121314")
	sender := common.HexToAddress("0xffeeddccbbaa99887766554433221100ffeeddcc")

	raw, err := json.Marshal(newMessage(true, contract, sender))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(raw)

	for _, want := range []string{
		`"is_init":true`,
		`"contract_account":"AQIDBAUGBwgJCgsMDQ4PEBESExQ="`,
		`"value":null`,
		// gas is 2^64-1 to disable engine-side metering
		`"gas":18446744073709551615`,
	} {
		if !strings.Contains(s, want) {
			t.Fatalf("message %s missing %s", s, want)
		}
	}

	var decoded struct {
		Sender string `json:"sender_account"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Sender != b64Address(sender) {
		t.Fatalf("sender = %s", decoded.Sender)
	}
}
