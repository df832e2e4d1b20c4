package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	digestOrderNo   int64
	digestDelivDate string
)

var sendDigestCmd = &cobra.Command{
	Use:   "send-digest",
	Short: "Send a synthetic missed-deadline digest to verify bot wiring",
	RunE: func(cmd *cobra.Command, args []string) error {
		if digestOrderNo <= 0 {
			return fmt.Errorf("--order must be greater than zero")
		}

		deliv, err := time.Parse("2006-01-02", digestDelivDate)
		if err != nil {
			return fmt.Errorf("invalid --deliv-date value: %w", err)
		}

		return getApp().SendDigest(cmd.Context(), digestOrderNo, deliv)
	},
}

func init() {
	sendDigestCmd.Flags().Int64Var(&digestOrderNo, "order", 0, "Order number to include in the digest")
	sendDigestCmd.Flags().StringVar(&digestDelivDate, "deliv-date", "", "Delivery date (YYYY-MM-DD)")
}
