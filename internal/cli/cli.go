// Package cli implements the terminal storefront: a cart kept in local storage,
// priced on the client and handed to the server for checkout.
package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fjod/storefront/internal/catalog"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/pricing"
	"github.com/fjod/storefront/internal/service"
	"github.com/fjod/storefront/pkg/client"
)

var (
	ErrUnknownSKU     = errors.New("unknown sku")
	ErrCheckoutFailed = errors.New("checkout failed")
)

// Shop is the server side of the terminal client.
type Shop interface {
	Products(ctx context.Context, q client.ProductQuery) ([]domain.Product, error)
	FindBySKU(ctx context.Context, sku string) (domain.Product, bool, error)
	CreateCheckoutSession(ctx context.Context, lines []domain.CartLine) client.Result
}

type App struct {
	cart *service.CartStore
	shop Shop
	log  *zap.Logger

	unsubscribe func()
}

func NewApp(cart *service.CartStore, shop Shop, log *zap.Logger) *App {
	if log == nil {
		log = zap.NewNop()
	}
	return &App{cart: cart, shop: shop, log: log, unsubscribe: func() {}}
}

// NewRootCommand wires the subcommands. The badge is printed after every
// mutation through a cart subscription bound to the running command's output.
func (a *App) NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "shop",
		Short:         "Browse the catalog, manage your cart and check out",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentPreRun = func(cmd *cobra.Command, _ []string) {
		a.unsubscribe()
		out := cmd.OutOrStdout()
		a.unsubscribe = a.cart.Subscribe(func(lines []domain.CartLine) {
			printBadge(out, service.CountItems(lines))
		})
	}

	root.AddCommand(
		a.productsCommand(),
		a.addCommand(),
		a.updateCommand(),
		a.removeCommand(),
		a.clearCommand(),
		a.cartCommand(),
		a.countCommand(),
		a.checkoutCommand(),
	)
	return root
}

func (a *App) productsCommand() *cobra.Command {
	var q client.ProductQuery
	cmd := &cobra.Command{
		Use:   "products",
		Short: "List catalog products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if q.Sort != "" {
				if _, ok := catalog.ParseSortKey(q.Sort); !ok {
					return errors.Errorf("unknown sort %q (use price-asc, price-desc or name)", q.Sort)
				}
			}
			products, err := a.shop.Products(cmd.Context(), q)
			if err != nil {
				return errors.Wrap(err, "list products")
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "SKU\tNAME\tBRAND\tPRICE\tSTOCK")
			for _, p := range products {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					p.SKU, p.Name, p.Brand, pricing.FormatUSD(decimal.NewFromFloat(p.Price)), stockLabel(p.Stock))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&q.Search, "q", "", "search name, brand and tags")
	cmd.Flags().StringVar(&q.Tag, "tag", "", "only products with this tag")
	cmd.Flags().StringVar(&q.Sort, "sort", "", "price-asc, price-desc or name")
	return cmd
}

func (a *App) addCommand() *cobra.Command {
	var qty int
	cmd := &cobra.Command{
		Use:   "add <sku>",
		Short: "Add a product to the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, ok, err := a.shop.FindBySKU(ctx, args[0])
			if err != nil {
				return errors.Wrap(err, "look up product")
			}
			if !ok {
				return errors.Wrap(ErrUnknownSKU, args[0])
			}
			if p.Stock == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is out of stock\n", p.Name)
				return nil
			}

			if _, err := a.cart.Add(ctx, p, qty); err != nil {
				return errors.Wrap(err, "add to cart")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s\n", p.Name)
			return nil
		},
	}
	cmd.Flags().IntVar(&qty, "qty", 1, "quantity to add")
	return cmd
}

func (a *App) updateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "update <sku> <qty>",
		Short: "Set the quantity of a cart line (0 removes it)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := strconv.Atoi(args[1])
			if err != nil {
				return errors.Wrapf(err, "parse quantity %q", args[1])
			}
			if _, err := a.cart.UpdateQuantity(cmd.Context(), args[0], qty); err != nil {
				return errors.Wrap(err, "update cart")
			}
			return nil
		},
	}
}

func (a *App) removeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <sku>",
		Short: "Remove a line from the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.cart.Remove(cmd.Context(), args[0]); err != nil {
				return errors.Wrap(err, "remove from cart")
			}
			return nil
		},
	}
}

func (a *App) clearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.cart.Clear(cmd.Context()); err != nil {
				return errors.Wrap(err, "clear cart")
			}
			return nil
		},
	}
}

func (a *App) cartCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cart",
		Short: "Show cart lines and totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			writeCart(cmd.OutOrStdout(), pricing.Calculate(a.cart.Load(cmd.Context())))
			return nil
		},
	}
}

func (a *App) countCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the number of items in the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), a.cart.ItemCount(cmd.Context()))
			return nil
		},
	}
}

func (a *App) checkoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "checkout",
		Short: "Create a payment session and print its URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res := a.shop.CreateCheckoutSession(cmd.Context(), a.cart.Load(cmd.Context()))
			if !res.OK() {
				if res.Cause != nil {
					a.log.Debug("checkout failed", zap.Error(res.Cause))
				}
				return errors.Wrap(ErrCheckoutFailed, res.Error)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Complete your payment at:\n%s\n", res.URL)
			return nil
		},
	}
}

func writeCart(w io.Writer, t pricing.Totals) {
	if len(t.Lines) == 0 {
		fmt.Fprintln(w, "Your cart is empty.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SKU\tNAME\tQTY\tPRICE\tLINE")
	for _, l := range t.Lines {
		price := decimal.NewFromFloat(l.Price)
		fmt.Fprintf(tw, "%s\t%s\t%d/%d\t%s\t%s\n",
			l.SKU, l.Name, l.Qty, l.MaxQty, pricing.FormatUSD(price), pricing.FormatUSD(price.Mul(decimal.NewFromInt(int64(l.Qty)))))
	}
	fmt.Fprintln(tw)
	fmt.Fprintf(tw, "\t\t\tSubtotal\t%s\n", pricing.FormatUSD(t.Subtotal))
	fmt.Fprintf(tw, "\t\t\tTax\t%s\n", pricing.FormatUSD(t.Tax))
	if t.FreeShipping() {
		fmt.Fprintf(tw, "\t\t\tShipping\tFree\n")
	} else {
		fmt.Fprintf(tw, "\t\t\tShipping\t%s\n", pricing.FormatUSD(t.Shipping))
	}
	fmt.Fprintf(tw, "\t\t\tTotal\t%s\n", pricing.FormatUSD(t.Total))
	_ = tw.Flush()

	if t.FreeShippingRemaining.IsPositive() {
		fmt.Fprintf(w, "Add %s more for free shipping.\n", pricing.FormatUSD(t.FreeShippingRemaining))
	}
}

func printBadge(w io.Writer, count int) {
	if label := service.BadgeLabel(count); label != "" {
		fmt.Fprintf(w, "Cart: %s\n", label)
		return
	}
	fmt.Fprintln(w, "Cart: empty")
}

func stockLabel(stock int) string {
	if stock == 0 {
		return "sold out"
	}
	return strconv.Itoa(stock)
}
