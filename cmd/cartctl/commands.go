package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/urfave/cli/v2"

	"github.com/angelmondragon/cartstore/internal/cart"
	"github.com/angelmondragon/cartstore/internal/session"
)

type providerOpener func(ctx context.Context) (*session.Provider, func() error, error)

func newApp(out io.Writer, open providerOpener) *cli.App {
	sessionFlag := &cli.StringFlag{
		Name:     "session",
		Aliases:  []string{"s"},
		Usage:    "session id owning the cart",
		Required: true,
	}
	idFlag := &cli.StringFlag{Name: "id", Usage: "line item id", Required: true}

	return &cli.App{
		Name:      "cartctl",
		Usage:     "inspect and edit persisted carts",
		Writer:    out,
		ErrWriter: out,
		Commands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "print the cart with its totals",
				Flags:  []cli.Flag{sessionFlag},
				Action: withStore(open, out, func(_ context.Context, _ *cli.Context, _ *cart.Store) error { return nil }),
			},
			{
				Name:  "add",
				Usage: "add one unit of a product variant",
				Flags: []cli.Flag{
					sessionFlag,
					&cli.Int64Flag{Name: "product", Required: true},
					&cli.Int64Flag{Name: "variant", Required: true},
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "variant-name"},
					&cli.Float64Flag{Name: "price", Required: true, Action: requireFinite},
					&cli.StringFlag{Name: "image"},
				},
				Action: withStore(open, out, func(ctx context.Context, c *cli.Context, store *cart.Store) error {
					store.Add(ctx, cart.Candidate{
						ProductID:   c.Int64("product"),
						VariantID:   c.Int64("variant"),
						Name:        c.String("name"),
						VariantName: c.String("variant-name"),
						Price:       c.Float64("price"),
						Image:       c.String("image"),
					})
					return nil
				}),
			},
			{
				Name:  "set-quantity",
				Usage: "set the quantity of a line item; values below 1 are ignored",
				Flags: []cli.Flag{sessionFlag, idFlag, &cli.IntFlag{Name: "quantity", Required: true}},
				Action: withStore(open, out, func(ctx context.Context, c *cli.Context, store *cart.Store) error {
					store.UpdateQuantity(ctx, c.String("id"), c.Int("quantity"))
					return nil
				}),
			},
			{
				Name:  "remove",
				Usage: "remove a line item",
				Flags: []cli.Flag{sessionFlag, idFlag},
				Action: withStore(open, out, func(ctx context.Context, c *cli.Context, store *cart.Store) error {
					store.Remove(ctx, c.String("id"))
					return nil
				}),
			},
			{
				Name:  "clear",
				Usage: "empty the cart",
				Flags: []cli.Flag{sessionFlag},
				Action: withStore(open, out, func(ctx context.Context, _ *cli.Context, store *cart.Store) error {
					store.Clear(ctx)
					return nil
				}),
			},
		},
	}
}

type storeAction func(ctx context.Context, c *cli.Context, store *cart.Store) error

// withStore opens the session's cart, runs fn and prints the resulting view.
func withStore(open providerOpener, out io.Writer, fn storeAction) cli.ActionFunc {
	return func(c *cli.Context) (err error) {
		ctx := c.Context
		provider, closeStorage, err := open(ctx)
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		defer func() {
			provider.CloseAll(ctx)
			if cerr := closeStorage(); cerr != nil && err == nil {
				err = cerr
			}
		}()

		store, err := provider.Open(ctx, c.String("session"))
		if err != nil {
			return err
		}
		if err := fn(ctx, c, store); err != nil {
			return err
		}

		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(store.View())
	}
}

// requireFinite rejects NaN and infinities, which cannot be persisted as JSON.
func requireFinite(_ *cli.Context, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("--price must be a finite number, got %v", v)
	}
	return nil
}
