// Package subs loads the declarative instrument subscription list.
package subs

import (
	"fmt"

	"gopkg.in/ini.v1"

	"github.com/coachpo/befh/errs"
)

// Subscription is one resolved entry of the subscription file.
type Subscription struct {
	Exchange   string
	InstmtName string
	InstmtCode string
	// Extras holds venue-specific keys the loader does not interpret.
	Extras map[string]string
}

const (
	keyExchange   = "exchange"
	keyInstmtName = "instmt_name"
	keyInstmtCode = "instmt_code"
)

// Load parses the INI subscription file at path. Each section yields one
// subscription; unknown keys are preserved verbatim in Extras.
func Load(path string) ([]Subscription, error) {
	file, err := ini.Load(path)
	if err != nil {
		return nil, errs.New("", errs.CodeConfig,
			errs.WithMessage(fmt.Sprintf("load subscription file %s", path)),
			errs.WithCause(err))
	}

	var out []Subscription
	for _, section := range file.Sections() {
		if section.Name() == ini.DefaultSection {
			continue
		}
		sub, err := parseSection(section)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, nil
}

func parseSection(section *ini.Section) (Subscription, error) {
	sub := Subscription{Extras: make(map[string]string)}
	for _, key := range section.Keys() {
		switch key.Name() {
		case keyExchange:
			sub.Exchange = key.String()
		case keyInstmtName:
			sub.InstmtName = key.String()
		case keyInstmtCode:
			sub.InstmtCode = key.String()
		default:
			sub.Extras[key.Name()] = key.String()
		}
	}
	if sub.Exchange == "" || sub.InstmtName == "" || sub.InstmtCode == "" {
		return Subscription{}, errs.New(sub.Exchange, errs.CodeConfig,
			errs.WithMessage(fmt.Sprintf("section %s: exchange, instmt_name and instmt_code are required", section.Name())))
	}
	return sub, nil
}
