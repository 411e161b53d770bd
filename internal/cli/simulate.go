package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

var (
	simulateFX       float64
	simulateExchange float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "模拟一次 USDT 溢价并触发告警",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateFX <= 0 || simulateExchange <= 0 {
			return errors.New("--fx 与 --exchange 必须大于 0")
		}
		return getApp().SimulateAlert(cmd.Context(), simulateFX, simulateExchange)
	},
}

func init() {
	simulateCmd.Flags().Float64Var(&simulateFX, "fx", 0, "USD/KRW 汇率")
	simulateCmd.Flags().Float64Var(&simulateExchange, "exchange", 0, "交易所 USDT/KRW 价格")
}
