package flow

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// Argument is a JSON-Cadence encoded value.
type Argument struct {
	Type  string      `json:"type"`
	Value interface{} `json:"value"`
}

func UInt64(v uint64) Argument { return Argument{Type: "UInt64", Value: strconv.FormatUint(v, 10)} }
func UInt32(v uint32) Argument { return Argument{Type: "UInt32", Value: strconv.FormatUint(uint64(v), 10)} }
func String(v string) Argument { return Argument{Type: "String", Value: v} }
func Bool(v bool) Argument     { return Argument{Type: "Bool", Value: v} }

// UFix64 encodes d with the fixed eight decimal places Cadence requires.
func UFix64(d decimal.Decimal) Argument {
	return Argument{Type: "UFix64", Value: FormatAmount(d)}
}

func Address(addr string) Argument {
	return Argument{Type: "Address", Value: normalizeAddress(addr)}
}

// Timestamp encodes t as whole unix seconds in a UFix64.
func Timestamp(t time.Time) Argument {
	return UFix64(decimal.NewFromInt(t.Unix()))
}

func normalizeAddress(addr string) string {
	return "0x" + strings.TrimPrefix(strings.ToLower(strings.TrimSpace(addr)), "0x")
}

// Decode turns a JSON-Cadence value into plain Go values: composites become
// map[string]interface{}, arrays []interface{}, fixed point decimal.Decimal,
// small integers uint64/int64. Optional nil and Void decode to nil.
func Decode(v gjson.Result) interface{} {
	value := v.Get("value")

	switch typ := v.Get("type").String(); typ {
	case "Void":
		return nil
	case "Optional":
		if !value.Exists() || value.Type == gjson.Null {
			return nil
		}
		return Decode(value)
	case "Bool":
		return value.Bool()
	case "String", "Character", "Address":
		return value.String()
	case "UInt8", "UInt16", "UInt32", "UInt64", "Word8", "Word16", "Word32", "Word64":
		n, err := strconv.ParseUint(value.String(), 10, 64)
		if err != nil {
			return value.String()
		}
		return n
	case "Int8", "Int16", "Int32", "Int64":
		n, err := strconv.ParseInt(value.String(), 10, 64)
		if err != nil {
			return value.String()
		}
		return n
	case "Fix64", "UFix64":
		d, err := decimal.NewFromString(value.String())
		if err != nil {
			return value.String()
		}
		return d
	case "Array":
		items := value.Array()
		out := make([]interface{}, 0, len(items))
		for _, item := range items {
			out = append(out, Decode(item))
		}
		return out
	case "Dictionary":
		out := make(map[string]interface{})
		for _, kv := range value.Array() {
			out[fmt.Sprint(Decode(kv.Get("key")))] = Decode(kv.Get("value"))
		}
		return out
	case "Struct", "Resource", "Event", "Contract", "Enum":
		out := make(map[string]interface{})
		for _, f := range value.Get("fields").Array() {
			out[f.Get("name").String()] = Decode(f.Get("value"))
		}
		return out
	case "Path":
		return "/" + value.Get("domain").String() + "/" + value.Get("identifier").String()
	case "Type":
		return value.Get("staticType").String()
	default:
		// Int, UInt, Int128 and wider stay strings
		return value.String()
	}
}

// Unwrap strips an Optional wrapper. ok is false for a nil optional.
func Unwrap(v gjson.Result) (gjson.Result, bool) {
	for v.Get("type").String() == "Optional" {
		v = v.Get("value")
		if !v.Exists() || v.Type == gjson.Null {
			return gjson.Result{}, false
		}
	}
	return v, true
}

// Fields indexes the fields of a composite value by name.
func Fields(v gjson.Result) map[string]gjson.Result {
	out := make(map[string]gjson.Result)
	for _, f := range v.Get("value.fields").Array() {
		out[f.Get("name").String()] = f.Get("value")
	}
	return out
}

func toUint64(v gjson.Result) uint64 {
	n, _ := strconv.ParseUint(v.Get("value").String(), 10, 64)
	return n
}

func toDecimal(v gjson.Result) decimal.Decimal {
	d, err := decimal.NewFromString(v.Get("value").String())
	if err != nil {
		return decimal.Zero
	}
	return d
}

// toTime reads a UFix64 unix timestamp.
func toTime(v gjson.Result) time.Time {
	d := toDecimal(v)
	if d.IsZero() {
		return time.Time{}
	}
	return time.Unix(d.IntPart(), 0).UTC()
}

// HexCode encodes contract source for the deploy transaction.
func HexCode(code string) string {
	return hex.EncodeToString([]byte(code))
}

// ChainEvent mirrors KaizenEvent.EventInfo.
type ChainEvent struct {
	ID            uint64          `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Organizer     string          `json:"organizer"`
	Price         decimal.Decimal `json:"price"`
	MaxAttendees  uint32          `json:"maxAttendees"`
	AttendeeCount uint32          `json:"attendeeCount"`
	CreatedAt     time.Time       `json:"createdAt"`
	EventDate     time.Time       `json:"eventDate"`
	Location      string          `json:"location"`
	ImageURL      string          `json:"imageUrl"`
}

func decodeChainEvent(v gjson.Result) ChainEvent {
	f := Fields(v)
	return ChainEvent{
		ID:            toUint64(f["id"]),
		Name:          f["name"].Get("value").String(),
		Description:   f["description"].Get("value").String(),
		Organizer:     f["organizer"].Get("value").String(),
		Price:         toDecimal(f["price"]),
		MaxAttendees:  uint32(toUint64(f["maxAttendees"])),
		AttendeeCount: uint32(toUint64(f["attendeeCount"])),
		CreatedAt:     toTime(f["createdAt"]),
		EventDate:     toTime(f["eventDate"]),
		Location:      f["location"].Get("value").String(),
		ImageURL:      f["imageUrl"].Get("value").String(),
	}
}

// NFT mirrors the KaizenEventNFT.NFT POAP resource.
type NFT struct {
	ID          uint64    `json:"id"`
	EventID     uint64    `json:"eventId"`
	EventName   string    `json:"eventName"`
	EventDate   time.Time `json:"eventDate"`
	Attendee    string    `json:"attendee"`
	ImageURL    string    `json:"imageUrl"`
	Description string    `json:"description"`
	MintedAt    time.Time `json:"mintedAt"`
}

func decodeNFT(v gjson.Result) NFT {
	f := Fields(v)
	return NFT{
		ID:          toUint64(f["id"]),
		EventID:     toUint64(f["eventId"]),
		EventName:   f["eventName"].Get("value").String(),
		EventDate:   toTime(f["eventDate"]),
		Attendee:    f["attendee"].Get("value").String(),
		ImageURL:    f["imageUrl"].Get("value").String(),
		Description: f["description"].Get("value").String(),
		MintedAt:    toTime(f["mintedAt"]),
	}
}
