package optionchain

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Side is the option type of a leg.
type Side string

const (
	Call Side = "CE"
	Put  Side = "PE"
)

// sideAliases normalizes the spellings seen in vendor payloads.
var sideAliases = map[string]Side{
	"ce":   Call,
	"c":    Call,
	"call": Call,
	"pe":   Put,
	"p":    Put,
	"put":  Put,
}

// ParseSide maps a vendor option type onto Call or Put.
func ParseSide(s string) (Side, error) {
	if side, ok := sideAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return side, nil
	}
	return "", fmt.Errorf("unknown option type %q", s)
}

// Leg is one strike/side row of an option chain.
type Leg struct {
	Strike decimal.Decimal
	Side   Side
	IV     decimal.Decimal
	Volume decimal.Decimal
}

// Summary is the compact option-chain view stored with a quote.
type Summary struct {
	Underlying string          `json:"underlying"`
	Expiry     string          `json:"expiry"`
	Strikes    int             `json:"strikes"`
	CallVolume decimal.Decimal `json:"call_volume"`
	PutVolume  decimal.Decimal `json:"put_volume"`
	// PCR is put volume over call volume, zero when there is no call volume.
	PCR       decimal.Decimal `json:"pcr"`
	ATMStrike decimal.Decimal `json:"atm_strike"`
	ATMCallIV decimal.Decimal `json:"atm_call_iv"`
	ATMPutIV  decimal.Decimal `json:"atm_put_iv"`
}

// ErrEmptyChain is returned when there are no legs to summarize.
var ErrEmptyChain = errors.New("option chain is empty")

// Summarize reduces the legs of one expiry. spot picks the at-the-money strike;
// ties go to the lower strike.
func Summarize(underlying, expiry string, legs []Leg, spot decimal.Decimal) (Summary, error) {
	if len(legs) == 0 {
		return Summary{}, ErrEmptyChain
	}

	type pair struct{ call, put *Leg }
	byStrike := make(map[string]*pair, len(legs)/2+1)
	strikes := make([]decimal.Decimal, 0, len(legs)/2+1)

	s := Summary{Underlying: underlying, Expiry: expiry}
	for i := range legs {
		l := &legs[i]
		key := l.Strike.String()
		p, ok := byStrike[key]
		if !ok {
			p = &pair{}
			byStrike[key] = p
			strikes = append(strikes, l.Strike)
		}
		switch l.Side {
		case Call:
			p.call = l
			s.CallVolume = s.CallVolume.Add(l.Volume)
		case Put:
			p.put = l
			s.PutVolume = s.PutVolume.Add(l.Volume)
		default:
			return Summary{}, fmt.Errorf("leg %d: unknown side %q", i, l.Side)
		}
	}
	s.Strikes = len(strikes)
	if !s.CallVolume.IsZero() {
		s.PCR = s.PutVolume.DivRound(s.CallVolume, 2)
	}

	sort.Slice(strikes, func(i, j int) bool { return strikes[i].LessThan(strikes[j]) })
	atm := strikes[0]
	best := atm.Sub(spot).Abs()
	for _, k := range strikes[1:] {
		if d := k.Sub(spot).Abs(); d.LessThan(best) {
			atm, best = k, d
		}
	}
	s.ATMStrike = atm
	if p := byStrike[atm.String()]; p != nil {
		if p.call != nil {
			s.ATMCallIV = p.call.IV
		}
		if p.put != nil {
			s.ATMPutIV = p.put.IV
		}
	}
	return s, nil
}
