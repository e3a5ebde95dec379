package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	catalogapp "github.com/dwikikusuma/pos-checkout/internal/catalog/app"
	catalogsql "github.com/dwikikusuma/pos-checkout/internal/catalog/infra/sqlstore"
	"github.com/dwikikusuma/pos-checkout/internal/catalog/infra/yamlfile"

	checkoutapp "github.com/dwikikusuma/pos-checkout/internal/checkout/app"
	checkout "github.com/dwikikusuma/pos-checkout/internal/checkout/domain"
	"github.com/dwikikusuma/pos-checkout/internal/checkout/infra/httpbackend"
	checkoutsql "github.com/dwikikusuma/pos-checkout/internal/checkout/infra/sqlstore"

	orderapp "github.com/dwikikusuma/pos-checkout/internal/order/app"
	ordersql "github.com/dwikikusuma/pos-checkout/internal/order/infra/sqlstore"

	"github.com/dwikikusuma/pos-checkout/pkg/dispatch"
)

func catalogService(cmd *cobra.Command, e *env) (*catalogapp.Service, error) {
	repo := catalogsql.NewProductRepo(e.db)
	if err := migrate(cmd.Context(), repo); err != nil {
		return nil, err
	}
	return catalogapp.NewService(repo, e.cfg.Catalog.FreshFor), nil
}

func catalogCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the local product catalog",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "import [file]",
		Short: "Import products from a YAML catalog file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			svc, err := catalogService(cmd, e)
			if err != nil {
				return err
			}
			n, err := yamlfile.Import(cmd.Context(), args[0], svc)
			if err != nil {
				return fmt.Errorf("import %s after %d products: %w", args[0], n, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d products\n", n)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get [sku]",
		Short: "Show one product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			svc, err := catalogService(cmd, e)
			if err != nil {
				return err
			}
			p, err := svc.FindBySKU(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), p)
		},
	})

	list := &cobra.Command{
		Use:   "list",
		Short: "List products",
		RunE: func(cmd *cobra.Command, args []string) error {
			query, _ := cmd.Flags().GetString("query")
			limit, _ := cmd.Flags().GetInt("limit")
			cursor, _ := cmd.Flags().GetString("cursor")

			e, err := open(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			svc, err := catalogService(cmd, e)
			if err != nil {
				return err
			}
			products, next, err := svc.ListProducts(cmd.Context(), query, limit, cursor)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SKU\tNAME\tPRICE")
			for _, p := range products {
				fmt.Fprintf(tw, "%s\t%s\t%d %s\n", p.SKU, p.Name, p.Price.Amount, p.Price.Currency)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if next != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "next cursor: %s\n", next)
			}
			return nil
		},
	}
	list.Flags().StringP("query", "q", "", "filter by name")
	list.Flags().IntP("limit", "n", 20, "maximum results")
	list.Flags().String("cursor", "", "continue after this cursor")
	cmd.AddCommand(list)

	return cmd
}

func queueCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and flush checkouts waiting for the backend",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List queued checkouts",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			repo := checkoutsql.NewQueueRepo(e.db)
			if err := migrate(cmd.Context(), repo); err != nil {
				return err
			}
			carts, err := repo.LoadQueue(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSESSION\tITEMS\tATTEMPTS\tFAILED AT")
			for _, c := range carts {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", c.ID, c.Cart.Session, len(c.Cart.Items), c.Attempts, c.FailedAt.Format("2006-01-02 15:04:05"))
			}
			return tw.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "sweep",
		Short: "Retry every queued checkout against the backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			repo := checkoutsql.NewQueueRepo(e.db)
			if err := migrate(cmd.Context(), repo); err != nil {
				return err
			}
			client, err := httpbackend.New(httpbackend.Config{
				URL:     e.cfg.Backend.URL,
				Project: e.cfg.Backend.Project,
				Token:   e.cfg.Backend.Token,
				Timeout: e.cfg.Backend.Timeout,
				Log:     e.log,
			})
			if err != nil {
				return err
			}

			q := dispatch.NewQueue()
			defer q.Close()

			rq := checkoutapp.NewRetryQueue(repo, client,
				checkout.PaymentMethod(e.cfg.Checkout.FallbackMethod),
				checkout.ParseMethods(e.cfg.Checkout.AcceptedMethods),
				q, e.log)
			if err := rq.Load(cmd.Context()); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rq.ProcessPendingCheckouts(cmd.Context()))
		},
	})

	return cmd
}

func ordersCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Show recorded orders",
	}

	orderService := func(cmd *cobra.Command, e *env) (*orderapp.Service, error) {
		repo := ordersql.NewOrderRepo(e.db)
		if err := migrate(cmd.Context(), repo); err != nil {
			return nil, err
		}
		return orderapp.NewService(repo), nil
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List orders, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			cursor, _ := cmd.Flags().GetString("cursor")

			e, err := open(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			svc, err := orderService(cmd, e)
			if err != nil {
				return err
			}
			orders, next, err := svc.ListOrders(cmd.Context(), limit, cursor)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTATUS\tMETHOD\tTOTAL\tCREATED")
			for _, o := range orders {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", o.ID, o.Status, o.PaymentMethod, o.TotalAmount, o.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if next != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "next cursor: %s\n", next)
			}
			return nil
		},
	}
	list.Flags().IntP("limit", "n", 20, "maximum results")
	list.Flags().String("cursor", "", "continue after this cursor")
	cmd.AddCommand(list)

	cmd.AddCommand(&cobra.Command{
		Use:   "get [id]",
		Short: "Show one order with its items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			svc, err := orderService(cmd, e)
			if err != nil {
				return err
			}
			o, err := svc.GetOrder(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), o)
		},
	})

	return cmd
}

func stateCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect the persisted checkout state",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the last saved checkout state",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			repo := checkoutsql.NewStateRepo(e.db, e.cfg.Shop.ID)
			if err := migrate(cmd.Context(), repo); err != nil {
				return err
			}
			saved, ok, err := repo.LoadState(cmd.Context())
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "no checkout state saved")
				return nil
			}
			return printJSON(cmd.OutOrStdout(), saved)
		},
	})

	return cmd
}
