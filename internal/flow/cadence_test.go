package flow

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestArguments_Encoding(t *testing.T) {
	tests := []struct {
		name string
		arg  Argument
		want string
	}{
		{"uint64", UInt64(42), `{"type":"UInt64","value":"42"}`},
		{"uint32", UInt32(7), `{"type":"UInt32","value":"7"}`},
		{"ufix64", UFix64(decimal.RequireFromString("1.5")), `{"type":"UFix64","value":"1.50000000"}`},
		{"address", Address(" 0xABCDEF0123456789"), `{"type":"Address","value":"0xabcdef0123456789"}`},
		{"address without prefix", Address("abcdef0123456789"), `{"type":"Address","value":"0xabcdef0123456789"}`},
		{"bool", Bool(true), `{"type":"Bool","value":true}`},
		{"string", String("hi"), `{"type":"String","value":"hi"}`},
		{"timestamp", Timestamp(time.Unix(1700000000, 0)), `{"type":"UFix64","value":"1700000000.00000000"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := json.Marshal(tt.arg)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(raw))
		})
	}
}

const eventInfoJSON = `{"type":"Struct","value":{"id":"A.01.KaizenEvent.EventInfo","fields":[
	{"name":"id","value":{"type":"UInt64","value":"3"}},
	{"name":"name","value":{"type":"String","value":"Jazz Night"}},
	{"name":"description","value":{"type":"String","value":"Live"}},
	{"name":"organizer","value":{"type":"Address","value":"0x0000000000000001"}},
	{"name":"price","value":{"type":"UFix64","value":"12.50000000"}},
	{"name":"maxAttendees","value":{"type":"UInt32","value":"100"}},
	{"name":"createdAt","value":{"type":"UFix64","value":"1700000000.00000000"}},
	{"name":"eventDate","value":{"type":"UFix64","value":"1800000000.00000000"}},
	{"name":"location","value":{"type":"String","value":"Lisbon"}},
	{"name":"attendeeCount","value":{"type":"UInt32","value":"4"}},
	{"name":"imageUrl","value":{"type":"String","value":""}}
]}}`

func TestDecodeChainEvent(t *testing.T) {
	ev := decodeChainEvent(gjson.Parse(eventInfoJSON))

	assert.Equal(t, uint64(3), ev.ID)
	assert.Equal(t, "Jazz Night", ev.Name)
	assert.Equal(t, "0x0000000000000001", ev.Organizer)
	assert.True(t, decimal.RequireFromString("12.5").Equal(ev.Price))
	assert.Equal(t, uint32(100), ev.MaxAttendees)
	assert.Equal(t, uint32(4), ev.AttendeeCount)
	assert.Equal(t, time.Unix(1800000000, 0).UTC(), ev.EventDate)
	assert.Equal(t, "Lisbon", ev.Location)
}

func TestDecode(t *testing.T) {
	v := Decode(gjson.Parse(`{"type":"Array","value":[
		{"type":"Optional","value":null},
		{"type":"Optional","value":{"type":"Bool","value":true}},
		{"type":"Int64","value":"-9"},
		{"type":"Dictionary","value":[{"key":{"type":"String","value":"k"},"value":{"type":"UInt8","value":"1"}}]},
		{"type":"Path","value":{"domain":"public","identifier":"flowTokenBalance"}},
		{"type":"Int256","value":"123456789012345678901234567890"}
	]}`))

	items, ok := v.([]interface{})
	require.True(t, ok)
	require.Len(t, items, 6)
	assert.Nil(t, items[0])
	assert.Equal(t, true, items[1])
	assert.Equal(t, int64(-9), items[2])
	assert.Equal(t, map[string]interface{}{"k": uint64(1)}, items[3])
	assert.Equal(t, "/public/flowTokenBalance", items[4])
	assert.Equal(t, "123456789012345678901234567890", items[5])

	composite := Decode(gjson.Parse(eventInfoJSON)).(map[string]interface{})
	assert.Equal(t, "Jazz Night", composite["name"])
	assert.True(t, decimal.RequireFromString("12.5").Equal(composite["price"].(decimal.Decimal)))
}

func TestUnwrap(t *testing.T) {
	_, ok := Unwrap(gjson.Parse(`{"type":"Optional","value":null}`))
	assert.False(t, ok)

	v, ok := Unwrap(gjson.Parse(`{"type":"Optional","value":{"type":"String","value":"x"}}`))
	require.True(t, ok)
	assert.Equal(t, "x", v.Get("value").String())
}

func TestUtil(t *testing.T) {
	assert.True(t, IsValidAddress("0x7e60df042a9c0868"))
	assert.True(t, IsValidAddress("0xABCDEF0123456789"))
	assert.False(t, IsValidAddress("7e60df042a9c0868"))
	assert.False(t, IsValidAddress("0x7e60df042a9c086"))
	assert.False(t, IsValidAddress("0x7e60df042a9c0868 "))

	assert.Equal(t, "10.00000000", FormatAmount(decimal.NewFromInt(10)))
	assert.Equal(t, "0.12345679", FormatAmount(decimal.RequireFromString("0.123456789")))

	amt, err := ParseAmount("")
	require.NoError(t, err)
	assert.True(t, amt.IsZero())
	_, err = ParseAmount("ten")
	assert.Error(t, err)

	testnet := Network{FlowScan: "https://testnet.flowscan.io/"}
	assert.Equal(t, "https://testnet.flowscan.io/tx/abc", FlowScanURL(testnet, "0x01", "abc"))
	assert.Equal(t, "https://testnet.flowscan.io/account/0x01", FlowScanURL(testnet, "0x01", ""))
	assert.Equal(t, "", FlowScanURL(Network{}, "0x01", ""))
}

func TestLookupNetwork(t *testing.T) {
	n, err := LookupNetwork("testnet", Overrides{})
	require.NoError(t, err)
	assert.Equal(t, "testnet", n.Name)
	assert.Equal(t, "https://rest-testnet.onflow.org", n.AccessNode)
	assert.Equal(t, "https://fcl-discovery.onflow.org/testnet/authn", n.WalletDiscovery)
	assert.Equal(t, "0x7e60df042a9c0868", n.Contracts.FlowToken)
	assert.Equal(t, "0x01", n.Contracts.KaizenEvent)

	n, err = LookupNetwork("testnet", Overrides{AccessNode: "http://node", KaizenEvent: "0x1234567890abcdef"})
	require.NoError(t, err)
	assert.Equal(t, "http://node", n.AccessNode)
	assert.Equal(t, "0x1234567890abcdef", n.Contracts.KaizenEvent)

	_, err = LookupNetwork("devnet", Overrides{})
	assert.Error(t, err)

	assert.Equal(t, []string{"emulator", "mainnet", "testnet"}, NetworkNames())
}

func TestTemplates(t *testing.T) {
	tmpl, err := NewTemplates(Contracts{
		FlowToken:        "0x7e60df042a9c0868",
		FungibleToken:    "0x9a0766d93b6608b7",
		NonFungibleToken: "0x631e88ae7f1d7c20",
		MetadataViews:    "0x631e88ae7f1d7c20",
		KaizenEvent:      "0x1111111111111111",
		KaizenEventNFT:   "0x2222222222222222",
	})
	require.NoError(t, err)

	script, ok := tmpl.Script("getAllEvents")
	require.True(t, ok)
	assert.Contains(t, script, "import KaizenEvent from 0x1111111111111111")
	assert.Contains(t, script, "getAccount(0x1111111111111111)")
	assert.NotContains(t, script, "{{")

	join, ok := tmpl.Transaction(TxJoinEvent)
	require.True(t, ok)
	assert.Contains(t, join, "import FungibleToken from 0x9a0766d93b6608b7")
	assert.Contains(t, join, "/storage/flowTokenVault")

	_, ok = tmpl.Script("transferAll")
	assert.False(t, ok)
}
