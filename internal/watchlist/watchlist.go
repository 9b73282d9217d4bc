// Package watchlist defines the static symbol list polled every cycle.
package watchlist

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Symbol maps a display name onto a brokerage instrument.
type Symbol struct {
	Name     string `yaml:"name" json:"name"`
	Exchange string `yaml:"exchange" json:"exchange"`
	Token    string `yaml:"token" json:"token"`
	// OptionName is the underlying name used by the option chain endpoint.
	// Empty disables the option chain for this symbol.
	OptionName string `yaml:"option_name,omitempty" json:"option_name,omitempty"`
	// OptionSegment is the derivatives segment in the scrip master (NFO, BFO).
	OptionSegment string `yaml:"option_segment,omitempty" json:"option_segment,omitempty"`
}

type file struct {
	Watchlist []Symbol `yaml:"watchlist"`
}

// Default is used when no watchlist file is configured.
func Default() []Symbol {
	return []Symbol{
		{Name: "NIFTY", Exchange: "NSE", Token: "99926000", OptionName: "NIFTY", OptionSegment: "NFO"},
		{Name: "SENSEX", Exchange: "BSE", Token: "99919000", OptionName: "SENSEX", OptionSegment: "BFO"},
		{Name: "RELIANCE", Exchange: "NSE", Token: "2885", OptionName: "RELIANCE", OptionSegment: "NFO"},
		{Name: "HDFCBANK", Exchange: "NSE", Token: "1333", OptionName: "HDFCBANK", OptionSegment: "NFO"},
	}
}

// Load reads a YAML watchlist. An empty path or a missing file yields Default.
//
//	watchlist:
//	  - name: NIFTY
//	    exchange: NSE
//	    token: "99926000"
//	    option_name: NIFTY
//	    option_segment: NFO
func Load(path string) ([]Symbol, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read watchlist: %w", err)
	}
	var f file
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse watchlist: %w", err)
	}
	if err := Validate(f.Watchlist); err != nil {
		return nil, err
	}
	return f.Watchlist, nil
}

// Validate checks that every symbol is addressable and names are unique.
func Validate(symbols []Symbol) error {
	if len(symbols) == 0 {
		return errors.New("watchlist is empty")
	}
	seen := make(map[string]struct{}, len(symbols))
	for i := range symbols {
		s := &symbols[i]
		s.Name = strings.TrimSpace(s.Name)
		s.Exchange = strings.ToUpper(strings.TrimSpace(s.Exchange))
		s.OptionSegment = strings.ToUpper(strings.TrimSpace(s.OptionSegment))
		if s.Name == "" || s.Exchange == "" || strings.TrimSpace(s.Token) == "" {
			return fmt.Errorf("watchlist entry %d: name, exchange and token are required", i)
		}
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("watchlist entry %d: duplicate name %q", i, s.Name)
		}
		seen[s.Name] = struct{}{}
	}
	return nil
}

// Filter keeps the symbols whose names appear in names, in list order.
// Matching ignores case. An empty names keeps everything.
func Filter(symbols []Symbol, names []string) ([]Symbol, error) {
	if len(names) == 0 {
		return symbols, nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[strings.ToUpper(strings.TrimSpace(n))] = false
	}
	var out []Symbol
	for _, s := range symbols {
		key := strings.ToUpper(s.Name)
		if _, ok := want[key]; ok {
			want[key] = true
			out = append(out, s)
		}
	}
	for n, found := range want {
		if !found {
			return nil, fmt.Errorf("watchlist has no symbol %q", n)
		}
	}
	return out, nil
}
