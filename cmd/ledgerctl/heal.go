package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func healCmd() *cobra.Command {
	var batch int

	cmd := &cobra.Command{
		Use:   "heal",
		Short: "巡检全部账户：补建缺失的推荐码映射，为无推荐码账户补发",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.Close()

			if batch <= 0 {
				batch = a.cfg.Feature.HealSweepBatch
			}

			report, err := a.svc.ReferralCode.HealAll(cmd.Context(), batch)
			if err != nil {
				return fmt.Errorf("巡检失败: %w", err)
			}

			fmt.Printf("扫描 %d 个账户，补发推荐码 %d 个，失败 %d 个\n",
				report.Scanned, report.CodesIssued, report.Failed)
			return nil
		},
	}

	cmd.Flags().IntVar(&batch, "batch", 0, "每批读取账户数（默认取配置 feature.heal_sweep_batch）")
	return cmd
}
