package main

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/kstaniek/go-froeling-server/internal/boiler"
)

// printState runs a one-shot boiler state query and prints the raw reply
// plus its decoded text lines.
func printState(ctx context.Context, s boiler.Sender) error {
	state, err := boiler.ReadState(ctx, s)
	if err != nil {
		return err
	}
	fmt.Printf("STATE: %s\n", hex.EncodeToString(state))
	for _, line := range boiler.StateText(state) {
		fmt.Println(line)
	}
	return nil
}

// printValues queries the default value catalog and prints one formatted
// temperature per entry.
func printValues(ctx context.Context, s boiler.Sender) error {
	addrs := make([]uint16, len(boiler.DefaultCatalog))
	for i, v := range boiler.DefaultCatalog {
		addrs[i] = v.Addr
	}
	values, err := boiler.ReadValues(ctx, s, addrs...)
	if err != nil {
		return err
	}
	fmt.Printf("VALUES: %s\n", hex.EncodeToString(values))
	for i, v := range boiler.DefaultCatalog {
		if 2*i+2 > len(values) {
			break
		}
		fmt.Printf("%s: %s\n", v.Label, boiler.FormatTemperature(values[2*i:2*i+2], true))
	}
	return nil
}
