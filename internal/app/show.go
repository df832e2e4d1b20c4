package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/shopspring/decimal"
)

// Show prints the stored orders and their cost totals.
func (a *App) Show(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	orders, err := store.ListOrders(ctx)
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		fmt.Fprintln(os.Stdout, "no orders found")
		return nil
	}

	totals, err := store.OrderTotals(ctx)
	if err != nil {
		return err
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Order\tSection\tCost USD\tCost RUB\tDelivery")

	for _, o := range orders {
		deliv := ""
		if o.DelivDate != nil {
			deliv = o.DelivDate.Format("2006-01-02")
		}
		fmt.Fprintf(
			writer,
			"%d\t%d\t%s\t%s\t%s\n",
			o.OrderNo,
			o.SecNo,
			formatCost(o.CostUSD),
			formatCost(o.CostRUB),
			deliv,
		)
	}

	fmt.Fprintf(writer, "Total\t\t%s\t%s\t\n", totals.TotalUSD.StringFixed(2), totals.TotalRUB.StringFixed(2))

	return writer.Flush()
}

func formatCost(d *decimal.Decimal) string {
	if d == nil {
		return "-"
	}
	return d.StringFixed(2)
}
