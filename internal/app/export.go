package app

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"order-sync-alerts/internal/storage"
)

// ExportOptions hold parameters for exporting stored orders.
type ExportOptions struct {
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// Export renders stored orders as CSV and/or a PNG cost chart over
// delivery dates.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

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
		a.Logger.Info().Msg("no orders to export")
		return nil
	}
	if len(orders) > opts.MaxPoints {
		orders = orders[:opts.MaxPoints]
	}

	if opts.CSVPath != "" {
		if err := writeCSV(opts.CSVPath, orders); err != nil {
			return err
		}
		a.Logger.Info().Str("path", opts.CSVPath).Int("rows", len(orders)).Msg("csv written")
	}

	if opts.PNGPath != "" {
		if err := writeChart(opts.PNGPath, orders); err != nil {
			return err
		}
		a.Logger.Info().Str("path", opts.PNGPath).Msg("chart written")
	}

	return nil
}

func writeCSV(path string, orders []storage.Order) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"order_no", "sec_no", "cost_usd", "cost_rub", "deliv_date"}); err != nil {
		return err
	}

	for _, o := range orders {
		record := []string{
			formatInt(o.OrderNo),
			formatInt(o.SecNo),
			"",
			"",
			"",
		}
		if o.CostUSD != nil {
			record[2] = o.CostUSD.String()
		}
		if o.CostRUB != nil {
			record[3] = o.CostRUB.String()
		}
		if o.DelivDate != nil {
			record[4] = o.DelivDate.Format("2006-01-02")
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// writeChart plots usd and rub costs against delivery dates. Rows without
// a delivery date or the respective cost are left off the series.
func writeChart(path string, orders []storage.Order) error {
	var usdTimes, rubTimes []time.Time
	var usdValues, rubValues []float64

	for _, o := range orders {
		if o.DelivDate == nil {
			continue
		}
		if o.CostUSD != nil {
			usdTimes = append(usdTimes, *o.DelivDate)
			usdValues = append(usdValues, o.CostUSD.InexactFloat64())
		}
		if o.CostRUB != nil {
			rubTimes = append(rubTimes, *o.DelivDate)
			rubValues = append(rubValues, o.CostRUB.InexactFloat64())
		}
	}

	if len(usdValues) < 2 && len(rubValues) < 2 {
		return errors.New("not enough dated orders to chart")
	}

	var series []chart.Series
	if len(usdValues) >= 2 {
		series = append(series, chart.TimeSeries{
			Name:    "cost_usd",
			XValues: usdTimes,
			YValues: usdValues,
		})
	}
	if len(rubValues) >= 2 {
		series = append(series, chart.TimeSeries{
			Name:    "cost_rub",
			XValues: rubTimes,
			YValues: rubValues,
			YAxis:   chart.YAxisSecondary,
		})
	}

	graph := chart.Chart{
		Title:  "Order costs by delivery date",
		Width:  1280,
		Height: 720,
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}
