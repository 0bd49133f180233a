package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/pedroavv1914/zappi-chatbot/internal/conversation"
	"github.com/pedroavv1914/zappi-chatbot/internal/db"
	"github.com/pedroavv1914/zappi-chatbot/internal/store"
	"github.com/spf13/cobra"
)

func newOrdersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Order history commands",
	}

	cmd.AddCommand(newOrdersListCmd())
	return cmd
}

func newOrdersListCmd() *cobra.Command {
	var (
		configPath string
		tenantName string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded orders, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrdersList(cmd, configPath, store.OrderFilter{Tenant: tenantName, Limit: limit})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Zappi config file")
	cmd.Flags().StringVar(&tenantName, "tenant", "", "only show orders for this establishment")
	cmd.Flags().IntVar(&limit, "limit", store.DefaultListLimit, "maximum number of orders to show")
	return cmd
}

func runOrdersList(cmd *cobra.Command, configPath string, filter store.OrderFilter) error {
	out := cmd.OutOrStdout()

	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	defer db.Close(gormDB)

	orders, err := store.NewOrderRecorder(gormDB).List(cmd.Context(), filter)
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		fmt.Fprintln(out, "No orders found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "REF\tTENANT\tCUSTOMER\tTYPE\tITEMS\tTOTAL\tCREATED")
	for _, o := range orders {
		lines, err := store.Lines(o)
		items := fmt.Sprintf("%d", len(lines))
		if err != nil {
			items = "?"
		}
		customer := o.CustomerName
		if customer == "" {
			customer = o.Identity
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			o.Ref, o.Tenant, customer, o.FulfillmentType, items,
			conversation.FormatPrice(o.Total), o.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	return w.Flush()
}
